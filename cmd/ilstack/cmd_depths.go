package main

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/report"
)

func newDepthsCmd(a *app) *cobra.Command {
	var subName string

	cmd := &cobra.Command{
		Use:   "depths [fixture|dir]...",
		Short: "Print the stack depth at every program point",
		Long: `Prints, for every method body of each fixture, the local and global
stack depth at every program point. Blocks ending in a call on the receiver
are marked. Use --sub to report a single subroutine of any kind.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFixtures(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			r := &report.Renderer{Color: report.UseColor(a.settings.Color, asFile(out))}

			texts, err := forEachFixture(cmd.Context(), a, files, func(_ context.Context, s *session) ([]byte, error) {
				subs, err := selectSubs(s, subName)
				if err != nil {
					return nil, err
				}
				tables, err := report.BuildAll(s.provider, subs)
				if err != nil {
					return nil, err
				}
				var buf bytes.Buffer
				rr := *r
				rr.Out = &buf
				if err := rr.RenderAll(tables); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			})
			if err != nil {
				return err
			}
			return writeSections(out, files, texts)
		},
	}
	cmd.Flags().StringVarP(&subName, "sub", "s", "", "report only the named subroutine")
	return cmd
}

// selectSubs returns the named subroutine, or every method body
func selectSubs(s *session, name string) ([]*cfg.Subroutine, error) {
	if name == "" {
		return s.fx.Roots(), nil
	}
	sub, err := s.fx.Sub(name)
	if err != nil {
		return nil, err
	}
	return []*cfg.Subroutine{sub}, nil
}

// writeSections prints one section per file, headed by the file name when
// there is more than one
func writeSections(w io.Writer, files []string, texts [][]byte) error {
	for i, text := range texts {
		if len(files) > 1 {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "# "+files[i]+"\n"); err != nil {
				return err
			}
		}
		if _, err := w.Write(text); err != nil {
			return err
		}
	}
	return nil
}

func asFile(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
