package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDaysDefaultsToWeekdays(t *testing.T) {
	days, err := ParseDays("")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, days)
}

func TestParseDaysSortsAndDeduplicates(t *testing.T) {
	days, err := ParseDays("6, 1,1,3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 6}, days)
}

func TestParseDaysRejectsGarbage(t *testing.T) {
	_, err := ParseDays("mon,tue")
	require.Error(t, err)

	_, err = ParseDays("9")
	require.Error(t, err)
}

func TestLoadAppliesTimetableDefaults(t *testing.T) {
	t.Setenv("TIMETABLE_SCHOOL_DAYS", "0,1,2,3,4")
	t.Setenv("TIMETABLE_SWEEP_MODE", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, cfg.Timetable.SchoolDays)
	assert.Equal(t, SweepModeIndexed, cfg.Timetable.SweepMode)
	assert.Greater(t, cfg.Timetable.GenerationLockTTL.Seconds(), 0.0)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}
