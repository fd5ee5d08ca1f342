package trace

import (
	"fmt"
	"strings"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// Frame is one node of the per-step explanation tree. It records an
// applied operator, its argument values, the outcome (or the propagated
// error), and the sub-evaluations that produced it - for a
// nondeterministic choice, only the chosen alternative appears.
type Frame struct {
	Op       string
	Args     []ir.Value
	Result   ir.Value // nil when the evaluation errored
	Err      string   // propagated error message, empty otherwise
	Children []*Frame
}

// Render writes an indented view of the frame tree, one operator per
// line, for verbose console output.
func (f *Frame) Render() string {
	var b strings.Builder
	f.renderInto(&b, 0)
	return b.String()
}

func (f *Frame) renderInto(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(f.Op)
	if len(f.Args) > 0 {
		b.WriteByte('(')
		for i, a := range f.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ir.Format(a))
		}
		b.WriteByte(')')
	}
	if f.Err != "" {
		fmt.Fprintf(b, " => error: %s", f.Err)
	} else if f.Result != nil {
		fmt.Fprintf(b, " => %s", ir.Format(f.Result))
	}
	b.WriteByte('\n')
	for _, c := range f.Children {
		c.renderInto(b, depth+1)
	}
}
