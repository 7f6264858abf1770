package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerUpdateParamsValidate(t *testing.T) {
	name := "new-name"

	tests := []struct {
		name    string
		params  TrackerUpdateParams
		wantErr error
	}{
		{
			name:    "empty mask",
			params:  TrackerUpdateParams{},
			wantErr: ErrEmptyUpdateMask,
		},
		{
			name: "unknown field",
			params: TrackerUpdateParams{
				UpdateMask: []string{"nope"},
			},
			wantErr: ErrUnknownField,
		},
		{
			name: "name masked but nil",
			params: TrackerUpdateParams{
				UpdateMask: []string{"name"},
			},
			wantErr: ErrNameRequired,
		},
		{
			name: "target masked but nil",
			params: TrackerUpdateParams{
				UpdateMask: []string{"target"},
			},
			wantErr: ErrTargetRequired,
		},
		{
			name: "happy path",
			params: TrackerUpdateParams{
				UpdateMask: []string{"name"},
				Name:       &name,
			},
			wantErr: nil,
		},
		{
			name: "enabled can be cleared (no nil-check required)",
			params: TrackerUpdateParams{
				UpdateMask: []string{"enabled"},
				Enabled:    nil,
			},
			wantErr: nil,
		},
		{
			name: "config masked with too-frequent cron pattern",
			params: TrackerUpdateParams{
				UpdateMask: []string{"config"},
				Config: &TrackerConfig{
					Job: &JobConfig{CronPattern: "@hourly"},
				},
			},
			wantErr: ErrCronTooFrequent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cronGap := func(pattern string) (time.Duration, error) {
				return time.Second, nil // far below any reasonable minimum
			}
			err := tt.params.Validate(time.Minute, cronGap)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
