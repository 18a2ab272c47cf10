package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/stackdepth"
)

func newDecodeCmd(a *app) *cobra.Command {
	var subName string

	cmd := &cobra.Command{
		Use:   "decode [fixture|dir]...",
		Short: "Print the slot-form listing of each method",
		Long: `Decodes every method body of each fixture into explicit stack slots.
Contract subroutines on control-flow edges are decoded inline under the
context they are entered with, so their argument and result loads appear as
reads of the caller's stack.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFixtures(args)
			if err != nil {
				return err
			}
			texts, err := forEachFixture(cmd.Context(), a, files, func(_ context.Context, s *session) ([]byte, error) {
				subs, err := selectSubs(s, subName)
				if err != nil {
					return nil, err
				}
				d := stackdepth.NewDecoder(s.provider)
				var sb strings.Builder
				for _, sub := range subs {
					rec := &il.Recorder{}
					if err := stackdepth.Catch(func() { d.Trace(sub, nil, rec) }); err != nil {
						return nil, err
					}
					sb.WriteString(il.Disassemble(rec.Steps, sub.String()))
				}
				return []byte(sb.String()), nil
			})
			if err != nil {
				return err
			}
			return writeSections(cmd.OutOrStdout(), files, texts)
		},
	}
	cmd.Flags().StringVarP(&subName, "sub", "s", "", "decode only the named subroutine")
	return cmd
}
