// Package tabdiff captures tab {url,title,status} snapshots and diffs them
// between iterations (spec.md §4.7). Long string changes are rendered
// through sergi/go-diff so the Context Builder can show the model a
// compact changed span instead of two full strings.
package tabdiff

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"rlm/internal/task"
)

const diffRenderThreshold = 80

// Differ holds the last captured snapshot and produces PageChanges against
// the next one. Tabs present on only one side are ignored — creation and
// closure are not page changes (spec.md §4.7).
type Differ struct {
	last task.Snapshot
}

// NewDiffer builds a Differ with no prior snapshot.
func NewDiffer() *Differ {
	return &Differ{}
}

// Capture records current as the new baseline and returns the changes
// relative to whatever was captured before (empty on the very first call).
func (d *Differ) Capture(current task.Snapshot) []task.PageChange {
	changes := d.diff(current)
	d.last = current
	return changes
}

func (d *Differ) diff(current task.Snapshot) []task.PageChange {
	if d.last == nil {
		return nil
	}
	var out []task.PageChange
	for id, next := range current {
		prev, ok := d.last[id]
		if !ok {
			continue // tab created since last snapshot: not a page change
		}
		if prev.URL != next.URL {
			out = append(out, task.PageChange{TabID: id, Field: task.FieldURL, Old: prev.URL, New: next.URL})
		}
		if prev.Title != next.Title {
			out = append(out, task.PageChange{TabID: id, Field: task.FieldTitle, Old: prev.Title, New: next.Title})
		}
		if prev.Status != next.Status {
			out = append(out, task.PageChange{TabID: id, Field: task.FieldStatus, Old: prev.Status, New: next.Status})
		}
	}
	return out
}

// RenderChange formats one PageChange for the prompt, collapsing long
// title/url pairs to a compact diff span instead of printing both in full.
func RenderChange(c task.PageChange) string {
	if len(c.Old) < diffRenderThreshold && len(c.New) < diffRenderThreshold {
		return fmt.Sprintf("tab %s %s: %q -> %q", c.TabID, c.Field, c.Old, c.New)
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(c.Old, c.New, false)
	return fmt.Sprintf("tab %s %s changed: %s", c.TabID, c.Field, dmp.DiffPrettyText(diffs))
}
