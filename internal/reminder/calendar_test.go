package reminder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWednesdays(t *testing.T) {
	wednesdays := Wednesdays(2024)

	// 2024 starts on a Monday, the first Wednesday is Jan 3rd
	require.NotEmpty(t, wednesdays)
	assert.Equal(t, "2024-01-03", wednesdays[0].Format(dateLayout))

	for _, d := range wednesdays {
		assert.Equal(t, time.Wednesday, d.Weekday())
		assert.Equal(t, 2024, d.Year())
	}

	// 52 or 53 Wednesdays per year
	assert.GreaterOrEqual(t, len(wednesdays), 52)
	assert.LessOrEqual(t, len(wednesdays), 53)
}

func TestWednesdaysFirstIsInYear(t *testing.T) {
	for year := 2020; year <= 2030; year++ {
		wednesdays := Wednesdays(year)
		require.NotEmpty(t, wednesdays)
		assert.Equal(t, year, wednesdays[0].Year())
	}
}

func TestWritePlanAlternatesComponents(t *testing.T) {
	dir := t.TempDir()

	err := WritePlan(dir, []string{"osbuild-composer", "osbuild"}, 2024)
	require.NoError(t, err)

	composer, err := LoadSchedule(dir, "osbuild-composer", 2024)
	require.NoError(t, err)
	osbuild, err := LoadSchedule(dir, "osbuild", 2024)
	require.NoError(t, err)

	// every Wednesday is assigned to exactly one component
	for _, d := range Wednesdays(2024) {
		date := d.Format(dateLayout)
		_, inComposer := composer[date]
		_, inOsbuild := osbuild[date]

		assert.NotEqualf(t, inComposer, inOsbuild,
			"date %s must be scheduled for exactly one component", date)
	}
}

func TestLoadSchedule(t *testing.T) {
	dir := t.TempDir()

	plan := "2024-01-03: alice\n2024-01-17: \n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-osbuild.yaml"), []byte(plan), 0o644))

	schedule, err := LoadSchedule(dir, "osbuild", 2024)
	require.NoError(t, err)

	assert.Equal(t, "alice", schedule["2024-01-03"])
	assert.Equal(t, "", schedule["2024-01-17"])
	assert.Equal(t, []string{"2024-01-03", "2024-01-17"}, schedule.SortedDates())
}

func TestLoadScheduleMissingFile(t *testing.T) {
	_, err := LoadSchedule(t.TempDir(), "osbuild", 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadScheduleInvalidDate(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-osbuild.yaml"), []byte("someday: alice\n"), 0o644))

	_, err := LoadSchedule(dir, "osbuild", 2024)
	require.Error(t, err)
}
