// Package report prints one line per tracked entity for humans.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"codeberg.org/mutker/followerctl/internal/errors"
)

// Entry is what the reporter needs to present one entity.
type Entry struct {
	Name    string
	Link    string
	Color   string
	Current int64
	Delta   int64
	// Err, when set, replaces the numbers with an error indicator.
	Err error
}

type Reporter struct {
	out io.Writer
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Write renders entries as an aligned table.
func (r *Reporter) Write(entries []Entry) error {
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		if e.Err != nil {
			code, ok := errors.CodeOf(e.Err)
			if !ok {
				code = errors.ErrInternal
			}
			fmt.Fprintf(tw, "%s\tunavailable (%s)\t\t\t%s\n", e.Name, code, e.Link)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", e.Name, e.Current, DeltaText(e.Delta), Mood(e.Delta), e.Link)
	}
	return tw.Flush()
}

// DeltaText formats the day's change with an explicit sign.
func DeltaText(delta int64) string {
	if delta >= 0 {
		return fmt.Sprintf("today +%d", delta)
	}
	return fmt.Sprintf("today %d", delta)
}

// Mood is a marker for how the day is going.
func Mood(delta int64) string {
	switch {
	case delta > 10:
		return "🎉"
	case delta >= 1:
		return "💖"
	default:
		return "💪"
	}
}
