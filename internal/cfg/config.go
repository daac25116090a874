// Package cfg loads the bot configuration from a TOML file.
package cfg

import (
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml"
)

const (
	defLogFormat     = "logfmt"
	defLogLevel      = "info"
	defPagureBaseURL = "https://src.fedoraproject.org"
	defBotAuthor     = "packit"
)

type Config struct {
	LogFormat         string `toml:"log_format"`
	LogTimeKey        string `toml:"log_time_key"`
	LogLevel          string `toml:"log_level"`
	MetricsListenAddr string `toml:"metrics_listen_addr"`

	PagureBaseURL   string `toml:"pagure_base_url"`
	PagureAPIToken  string `toml:"pagure_api_token"`
	BotAuthor       string `toml:"bot_author"`
	SlackWebhookURL string `toml:"slack_webhook_url"`

	FedoraUser     string `toml:"fedora_user"`
	FedoraPassword string `toml:"fedora_password"`

	Components []*Component `toml:"component"`
}

// Component describes one package that is managed through the release
// pipeline.
type Component struct {
	Name string `toml:"name"`

	// ExpectedFlags is the number of CI flags that must be reported on a
	// pull request before a merge decision is made. It is configured by
	// the operator and never inferred from observed flags.
	ExpectedFlags int `toml:"expected_flags"`

	// RequiredFlags optionally names the CI flags that must all be
	// present and successful. When set it takes precedence over
	// ExpectedFlags and unrelated extra flags are ignored.
	RequiredFlags []string `toml:"required_flags"`

	// PRFilterQuery is an optional jq expression evaluated against the
	// JSON representation of a pull request. Only pull requests for
	// which the query returns true are considered for merging.
	PRFilterQuery string `toml:"pr_filter_query"`

	// RPMRelease is the release part of the NVR that is looked up in
	// koji and bodhi.
	RPMRelease string `toml:"rpm_release"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = defLogFormat
	}

	if c.LogLevel == "" {
		c.LogLevel = defLogLevel
	}

	if c.PagureBaseURL == "" {
		c.PagureBaseURL = defPagureBaseURL
	}

	if c.BotAuthor == "" {
		c.BotAuthor = defBotAuthor
	}

	for _, comp := range c.Components {
		if comp.RPMRelease == "" {
			comp.RPMRelease = "1"
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Components) == 0 {
		return errors.New("configuration defines no components, nothing to do")
	}

	if c.PagureBaseURL == "" {
		return errors.New("pagure_base_url is unset")
	}

	if c.BotAuthor == "" {
		return errors.New("bot_author is unset")
	}

	for i, comp := range c.Components {
		if comp.Name == "" {
			return fmt.Errorf("component %d: name is unset", i)
		}

		if comp.ExpectedFlags < 0 {
			return fmt.Errorf("component %s: expected_flags must be >=0", comp.Name)
		}

		if comp.ExpectedFlags == 0 && len(comp.RequiredFlags) == 0 {
			return fmt.Errorf("component %s: expected_flags is 0 and required_flags is empty, pull requests would be merged without any passed checks", comp.Name)
		}
	}

	return nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
