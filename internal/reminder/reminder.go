package reminder

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/osbuild/fedora-bot/internal/logfields"
)

const (
	developerGuideURL = "https://www.osbuild.org/guides/developer-guide/releasing.html"
	internalGuideURL  = "https://osbuild.pages.redhat.com/internal-guides/releasing.html"
)

// Notifier sends fire-and-forget chat messages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Bot sends release reminders based on the yearly release plans.
type Bot struct {
	dir        string
	components []string
	nicks      map[string]string
	notifier   Notifier
	logger     *zap.Logger
}

func New(dir string, components []string, nicks map[string]string, notifier Notifier) *Bot {
	return &Bot{
		dir:        dir,
		components: components,
		nicks:      nicks,
		notifier:   notifier,
		logger:     zap.L().Named("reminder"),
	}
}

// LoadNicks reads the chat-nick mapping (real name to user id) from a YAML
// file. An empty path yields an empty mapping, forepersons are then
// mentioned by their plain name.
func LoadNicks(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var nicks map[string]string
	if err := yaml.Unmarshal(data, &nicks); err != nil {
		return nil, fmt.Errorf("parsing nicks file %s failed: %w", path, err)
	}

	return nicks, nil
}

// RemindUpcoming sends the reminders that are due today: one for a release
// scheduled today and one heads-up for a release scheduled in two days.
// The bot is expected to be invoked by the scheduler on Mondays and
// Wednesdays.
func (b *Bot) RemindUpcoming(ctx context.Context, today time.Time) error {
	headsUpDate := today.AddDate(0, 0, 2)

	err := b.remindOn(ctx, headsUpDate,
		fmt.Sprintf("*This Wednesday* (%s) we have scheduled an", headsUpDate.Format(dateLayout)))
	if err != nil {
		return err
	}

	return b.remindOn(ctx, today, "*Today* we have scheduled an")
}

func (b *Bot) remindOn(ctx context.Context, target time.Time, prefix string) error {
	targetDate := target.Format(dateLayout)

	for _, component := range b.components {
		schedule, err := LoadSchedule(b.dir, component, target.Year())
		if err != nil {
			return err
		}

		foreperson, scheduled := schedule[targetDate]
		if !scheduled {
			continue
		}

		b.logger.Info(
			"release scheduled, sending reminder",
			logfields.Component(component),
			logfields.Event("release_reminder_sent"),
			zap.String("release_date", targetDate),
			zap.String("foreperson", foreperson),
		)

		instructions := strings.Join([]string{
			fmt.Sprintf("*1.* Create an upstream release (<%s|read the docs>)", developerGuideURL),
			fmt.Sprintf("*2.* Watch this channel for the CS9/RHEL9 merge requests (<%s|read the docs>)", internalGuideURL),
			"*3.* Once everything is green, merge the CS9 merge request and watch this channel for the RHEL8 pull request.",
			"In between, either enjoy the update messages from Koji, Bodhi and Brew or have some :popcorn:",
		}, "\n")

		b.notifier.Notify(ctx, fmt.Sprintf(
			"%s <https://github.com/osbuild/%s/releases|%s release> by %s\n%s",
			prefix, component, component, b.mention(foreperson), instructions,
		))
	}

	return nil
}

// MonthlyOverview sends one message listing all releases scheduled in the
// month of today.
func (b *Bot) MonthlyOverview(ctx context.Context, today time.Time) error {
	var overview []string

	monthPrefix := today.Format("2006-01")

	for _, component := range b.components {
		schedule, err := LoadSchedule(b.dir, component, today.Year())
		if err != nil {
			return err
		}

		for _, date := range schedule.SortedDates() {
			if !strings.HasPrefix(date, monthPrefix) {
				continue
			}

			overview = append(overview, fmt.Sprintf(
				"%s: %s release by %s\n", date, component, b.mention(schedule[date]),
			))
		}
	}

	if len(overview) == 0 {
		b.logger.Info(
			"no releases scheduled this month",
			logfields.Event("monthly_overview_empty"),
		)

		return nil
	}

	sort.Strings(overview)

	b.notifier.Notify(ctx, fmt.Sprintf(
		":rocket: *Upcoming releases for %s* :rocket:\n%s",
		strings.Join(b.components, " and "), strings.Join(overview, ""),
	))

	return nil
}

// mention converts a foreperson name to a chat mention when the name
// matches a known nick, otherwise the plain name is returned.
func (b *Bot) mention(foreperson string) string {
	if foreperson == "" {
		return "nobody yet"
	}

	for name, userID := range b.nicks {
		if strings.Contains(name, foreperson) {
			return fmt.Sprintf("<@%s>", userID)
		}
	}

	return foreperson
}
