package cfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleCfg = `
log_format = "logfmt"
log_level = "debug"

pagure_base_url = "https://src.fedoraproject.org"
pagure_api_token = "secret"
bot_author = "packit"
slack_webhook_url = "https://hooks.slack.example/abc"

[[component]]
name = "osbuild"
expected_flags = 3

[[component]]
name = "osbuild-composer"
expected_flags = 2
required_flags = ["rpm-build", "installation"]
pr_filter_query = ".user.name == \"packit\""
`

func TestLoad(t *testing.T) {
	config, err := Load(strings.NewReader(exampleCfg))
	require.NoError(t, err)

	assert.Equal(t, "logfmt", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "packit", config.BotAuthor)
	assert.Equal(t, "secret", config.PagureAPIToken)

	require.Len(t, config.Components, 2)
	assert.Equal(t, "osbuild", config.Components[0].Name)
	assert.Equal(t, 3, config.Components[0].ExpectedFlags)
	assert.Equal(t, []string{"rpm-build", "installation"}, config.Components[1].RequiredFlags)
	assert.Equal(t, `.user.name == "packit"`, config.Components[1].PRFilterQuery)
}

func TestLoadFailsWithoutComponents(t *testing.T) {
	_, err := Load(strings.NewReader(`bot_author = "packit"`))
	require.Error(t, err)
}

func TestLoadFailsOnZeroExpectedFlags(t *testing.T) {
	cfg := `
pagure_base_url = "https://src.fedoraproject.org"
bot_author = "packit"

[[component]]
name = "osbuild"
expected_flags = 0
`
	_, err := Load(strings.NewReader(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected_flags is 0")
}

func TestLoadFailsOnUnnamedComponent(t *testing.T) {
	cfg := `
pagure_base_url = "https://src.fedoraproject.org"
bot_author = "packit"

[[component]]
expected_flags = 1
`
	_, err := Load(strings.NewReader(cfg))
	require.Error(t, err)
}
