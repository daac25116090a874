// Package reminder sends chat reminders for a release calendar.
//
// The calendar is one YAML file per component and year, mapping release
// dates (always Wednesdays) to the foreperson driving the release:
//
//	2024-01-03: alice
//	2024-01-17:
//
// An empty value means nobody picked up the release yet.
package reminder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Wednesdays returns all Wednesdays of a year in order.
func Wednesdays(year int) []time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Wednesday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset)

	var result []time.Time
	for d.Year() == year {
		result = append(result, d)
		d = d.AddDate(0, 0, 7)
	}

	return result
}

// WritePlan writes the yearly release plan files for the components.
// Release Wednesdays alternate between the components so that only one
// component is released per week.
// Existing plan files are overwritten.
func WritePlan(dir string, components []string, year int) error {
	for ci, component := range components {
		var lines strings.Builder

		i := ci
		for _, d := range Wednesdays(year) {
			if i%2 == 1 {
				lines.WriteString(d.Format(dateLayout) + ": \n")
			}
			i++
		}

		path := planPath(dir, component, year)
		if err := os.WriteFile(path, []byte(lines.String()), 0o644); err != nil {
			return fmt.Errorf("writing plan file %s failed: %w", path, err)
		}
	}

	return nil
}

// Schedule maps release dates (formatted as 2006-01-02) to the foreperson
// driving the release, which may be empty.
type Schedule map[string]string

// SortedDates returns the release dates of the schedule in ascending order.
func (s Schedule) SortedDates() []string {
	result := make([]string, 0, len(s))
	for date := range s {
		result = append(result, date)
	}

	sort.Strings(result)

	return result
}

// LoadSchedule reads the release schedule of a component for a year.
// A missing plan file is an error, it must be created first via WritePlan.
func LoadSchedule(dir, component string, year int) (Schedule, error) {
	path := planPath(dir, component, year)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("release plan %s does not exist, create it first with --year", path)
		}

		return nil, err
	}

	var schedule Schedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("parsing plan file %s failed: %w", path, err)
	}

	for date := range schedule {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("plan file %s contains invalid date %q: %w", path, date, err)
		}
	}

	return schedule, nil
}

func planPath(dir, component string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%d-%s.yaml", year, component))
}
