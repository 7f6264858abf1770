package revisions

import (
	"encoding/json"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffValues computes a stable textual diff between the canonical JSON
// renderings of two revision values. This is computed purely for response
// shaping (the calculate_diff option on revision listing); it is never
// persisted, per the "diff calculation" design note.
func diffValues(older, newer json.RawMessage) (string, error) {
	oldCanon, err := canonicalize(older)
	if err != nil {
		return "", err
	}
	newCanon, err := canonicalize(newer)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(oldCanon), string(newCanon), false)
	return dmp.DiffPrettyText(diffs), nil
}
