package upgrade

import (
	"fmt"
	"strings"
)

// Replacement records one dependency request change.
type Replacement struct {
	Name   string
	From   string
	To     string
	Reason string // why a skipped replacement was not applied; may be empty

	ChangeType ChangeType
}

// Report lists the applied changes and the skipped (pinned) ones.
type Report struct {
	Changes []Replacement
	Skipped []Replacement
	Written []string // manifest paths written to disk
}

// Empty reports whether there is nothing to change or skip.
func (r *Report) Empty() bool {
	return len(r.Changes) == 0 && len(r.Skipped) == 0
}

// Lines renders the report for humans. Names are padded to the widest
// name, old requests right-aligned in ten columns.
func (r *Report) Lines() []string {
	return r.Format(nil)
}

// Format renders the report like Lines, passing every replacement line
// through decorate when it is set. Headings are left as is.
func (r *Report) Format(decorate func(rep Replacement, line string) string) []string {
	if r.Empty() {
		return []string{"Nothing to upgrade."}
	}
	width := 0
	for _, rs := range [][]Replacement{r.Changes, r.Skipped} {
		for _, rep := range rs {
			width = max(width, len(rep.Name))
		}
	}
	line := func(rep Replacement) string {
		text := formatReplacement(rep, width)
		if rep.Reason != "" {
			text += " (" + rep.Reason + ")"
		}
		if decorate != nil {
			text = decorate(rep, text)
		}
		return text
	}

	var lines []string
	if len(r.Changes) > 0 {
		lines = append(lines, "Changes:")
		for _, rep := range r.Changes {
			lines = append(lines, line(rep))
		}
	}
	if len(r.Skipped) > 0 {
		lines = append(lines, "Skipped:")
		for _, rep := range r.Skipped {
			lines = append(lines, line(rep))
		}
	}
	return lines
}

// String joins Lines with newlines.
func (r *Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

func formatReplacement(rep Replacement, width int) string {
	return fmt.Sprintf("  %-*s %10s -> %s", width, rep.Name, rep.From, rep.To)
}
