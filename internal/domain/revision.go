package domain

import (
	"encoding/json"
	"time"
)

// TrackerRevision is an immutable, time-ordered snapshot of a tracker's
// extracted content. Revisions are append-only within the engine; they
// are removed only by explicit user request, max_revisions trimming
// (oldest first), or tracker deletion.
type TrackerRevision struct {
	ID        string
	TrackerID string
	CreatedAt time.Time
	Data      RevisionData

	// Diff is computed on demand by Store.List when ListOptions.CalculateDiff
	// is set; it is never persisted (see canon.go / store.go). Nil unless
	// requested.
	Diff *string
}

// RevisionData carries the original extracted value plus the ordered list
// of mods (formatter/extractor transformations) applied on top of it.
type RevisionData struct {
	Original json.RawMessage
	Mods     []json.RawMessage
}

// Value returns the effective value of this revision: the last mod if any
// were applied, otherwise the original.
func (d RevisionData) Value() json.RawMessage {
	if len(d.Mods) > 0 {
		return d.Mods[len(d.Mods)-1]
	}
	return d.Original
}
