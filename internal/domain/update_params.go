package domain

import "time"

// TrackerUpdateParams carries a partial update to a Tracker. Only fields
// named in UpdateMask are applied; this distinguishes "untouched" (field
// absent from the mask) from "cleared" (field present, pointer nil) from
// "replaced" (field present, pointer non-nil) — see the "optional-vs-
// absent in updates" design note.
type TrackerUpdateParams struct {
	UpdateMask []string

	Name    *string
	Enabled *bool
	Tags    *[]string
	Target  *TrackerTarget
	Config  *TrackerConfig
	Actions *[]Action
}

var updateTrackerValidFields = map[string]struct{}{
	"name":    {},
	"enabled": {},
	"tags":    {},
	"target":  {},
	"config":  {},
	"actions": {},
}

// Validate checks that UpdateMask contains only known fields, that
// required-when-present fields carry a non-nil value, and — when config
// carrying a JobConfig is masked — that the job's cron pattern isn't
// scheduled more frequently than minScheduleInterval allows. cronGap
// reports the smallest gap between a cron pattern's occurrences starting
// now; callers wire it to scheduler.MinInterval (domain cannot import
// internal/scheduler without an import cycle). cronGap is never invoked
// unless config+job is present in the mask.
func (p TrackerUpdateParams) Validate(minScheduleInterval time.Duration, cronGap func(pattern string) (time.Duration, error)) error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	maskSet := make(map[string]bool, len(p.UpdateMask))
	for _, field := range p.UpdateMask {
		if _, ok := updateTrackerValidFields[field]; !ok {
			return wrapUnknownField(field)
		}
		maskSet[field] = true
	}

	if maskSet["name"] && p.Name == nil {
		return ErrNameRequired
	}
	if maskSet["target"] && p.Target == nil {
		return ErrTargetRequired
	}
	if maskSet["config"] && p.Config != nil && p.Config.Job != nil {
		gap, err := cronGap(p.Config.Job.CronPattern)
		if err != nil {
			return NewEngineError(KindClient, err)
		}
		if gap < minScheduleInterval {
			return ErrCronTooFrequent
		}
	}

	return nil
}

func wrapUnknownField(field string) error {
	return NewEngineError(KindClient, &unknownFieldError{field: field})
}

type unknownFieldError struct{ field string }

func (e *unknownFieldError) Error() string {
	return ErrUnknownField.Error() + ": " + e.field
}

func (e *unknownFieldError) Unwrap() error { return ErrUnknownField }
