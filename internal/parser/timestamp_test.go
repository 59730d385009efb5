package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vessel-cbm-monitor/internal/models"
)

func TestSerialDate(t *testing.T) {
	tests := []struct {
		serial float64
		want   string
	}{
		{1, "1900-01-01"},
		{59, "1900-02-28"},
		{60, "1900-02-29"},
		{61, "1900-03-01"},
		{45000, "2023-03-15"},
		{45000.75, "2023-03-15"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SerialDate(tt.serial).String(), "serial %v", tt.serial)
	}
}

func TestResolvePhantomLeapDayNormalizes(t *testing.T) {
	r := NewResolver(nil)
	got, ok := r.Resolve(models.NumberCell(60), models.Cell{})
	require.True(t, ok)
	assert.Equal(t, time.Date(1900, time.March, 1, 0, 0, 0, 0, time.UTC), got)

	next, ok := r.Resolve(models.NumberCell(61), models.Cell{})
	require.True(t, ok)
	assert.Equal(t, next, got)
}

func TestResolveSerialWithFractionalTime(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name  string
		clock models.Cell
		want  time.Time
	}{
		{"noon", models.NumberCell(0.5), time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"half past eight", models.NumberCell(8.5 / 24), time.Date(2023, 3, 15, 8, 30, 0, 0, time.UTC)},
		{"text clock", models.TextCell("14:05"), time.Date(2023, 3, 15, 14, 5, 0, 0, time.UTC)},
		{"text clock with seconds", models.TextCell("06:07:08"), time.Date(2023, 3, 15, 6, 7, 8, 0, time.UTC)},
		{"text clock with millis", models.TextCell("08:30:00.000"), time.Date(2023, 3, 15, 8, 30, 0, 0, time.UTC)},
		{"text clock pm", models.TextCell("8:30 PM"), time.Date(2023, 3, 15, 20, 30, 0, 0, time.UTC)},
		{"text clock midnight am", models.TextCell("12:15 am"), time.Date(2023, 3, 15, 0, 15, 0, 0, time.UTC)},
		{"text clock noon pm", models.TextCell("12:45:10 PM"), time.Date(2023, 3, 15, 12, 45, 10, 0, time.UTC)},
		{"unparseable clock", models.TextCell("xx:30"), time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"no clock", models.Cell{}, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The date fraction is discarded before the clock overlays.
			got, ok := r.Resolve(models.NumberCell(45000.9), tt.clock)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveText(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T10:00:00Z", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
		{"2024-03-05 10:15:30", time.Date(2024, 3, 5, 10, 15, 30, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"05/03/2024 07:45", time.Date(2024, 3, 5, 7, 45, 0, 0, time.UTC)},
		{"12/25/2024", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"2024/03/05 23:59:59", time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(models.TextCell(tt.in), models.Cell{})
		require.True(t, ok, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}
}

func TestResolveClockOverridesTextTime(t *testing.T) {
	r := NewResolver(nil)
	got, ok := r.Resolve(models.TextCell("2024-03-05 10:00:00"), models.TextCell("06:00"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC), got)
}

func TestResolveTimeCell(t *testing.T) {
	r := NewResolver(nil)
	in := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := r.Resolve(models.TimeCell(in), models.Cell{})
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestResolveUnresolvable(t *testing.T) {
	r := NewResolver(nil)
	for _, c := range []models.Cell{{}, models.TextCell("not a date"), models.TextCell("31/31/2024"), models.TextCell("  ")} {
		_, ok := r.Resolve(c, models.NumberCell(0.5))
		assert.False(t, ok, "%+v", c)
	}
}

func TestResolveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*3600)
	r := NewResolver(loc)
	assert.Equal(t, loc, r.Location())

	got, ok := r.Resolve(models.NumberCell(45000), models.NumberCell(0.25))
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 3, 15, 2, 0, 0, 0, time.UTC), got.UTC())
}
