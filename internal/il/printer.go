package il

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a concrete trace
func Disassemble(steps []Step, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	var last string
	for i, s := range steps {
		sb.WriteString(fmt.Sprintf("%04d ", i))

		// Print the block only when it changes
		where := fmt.Sprintf("%s:%s", s.Point.Sub(), s.Point.Block)
		if where == last {
			sb.WriteString(fmt.Sprintf("%16s ", "|"))
		} else {
			sb.WriteString(fmt.Sprintf("%16s ", where))
		}
		last = where

		sb.WriteString(Format(s))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Format renders one step, e.g. "s2 = add s0, s1"
func Format(s Step) string {
	var sb strings.Builder
	if s.Dest >= 0 {
		sb.WriteString(fmt.Sprintf("s%d = ", s.Dest))
	}
	sb.WriteString(s.Name)
	if s.Old {
		sb.WriteString(".old")
	}
	if s.Imm != "" {
		sb.WriteByte(' ')
		sb.WriteString(s.Imm)
	}
	for i, src := range s.Srcs {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("s%d", src))
	}
	if s.Args != nil {
		sb.WriteByte(' ')
		sb.WriteString(s.Args.String())
	}
	return sb.String()
}

// Lines formats every step of a trace
func Lines(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = Format(s)
	}
	return out
}
