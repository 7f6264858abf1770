package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDurationParsesComponents(t *testing.T) {
	cases := map[string]time.Duration{
		"PT1H":       time.Hour,
		"PT30M":      30 * time.Minute,
		"PT1H30M":    90 * time.Minute,
		"PT1H30M15S": time.Hour + 30*time.Minute + 15*time.Second,
		"PT0S":       0,
	}
	for in, want := range cases {
		d, err := NewDuration(in)
		require.NoErrorf(t, err, "NewDuration(%q)", in)
		assert.Equalf(t, want, d.Value(), "NewDuration(%q)", in)
	}
}

func TestNewDurationRejectsInvalidInput(t *testing.T) {
	cases := map[string]error{
		"":       ErrDurationEmpty,
		"1H30M":  ErrInvalidDurationFormat,
		"P1D":    ErrInvalidDurationFormat,
		"PTX":    ErrInvalidDurationFormat,
		"PT1H30": ErrInvalidDurationFormat,
	}
	for in, wantErr := range cases {
		_, err := NewDuration(in)
		assert.ErrorIsf(t, err, wantErr, "NewDuration(%q)", in)
	}
}

func TestFormatDurationISO8601RoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second, 90 * time.Second, time.Hour + 30*time.Minute} {
		s := FormatDurationISO8601(d)
		got, err := NewDuration(s)
		require.NoErrorf(t, err, "NewDuration(%q)", s)
		assert.Equalf(t, d, got.Value(), "round trip %v -> %q", d, s)
	}
}
