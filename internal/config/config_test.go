package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/chairtools/chairstat/internal/config"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	config.ConfigureEnv(v)

	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default().Invitations, cfg.Invitations)
	assert.Equal(t, config.Default().API, cfg.API)
	assert.Empty(t, cfg.Recommend.Tracks)
	assert.Equal(t, 3, cfg.Progress.RequiredReviews)
	assert.Equal(t, "urgent_papers.tsv", cfg.Progress.OutputFile)
	assert.Equal(t, []venue.Role{venue.RoleAreaChairs, venue.RoleReviewers}, cfg.Roles())
	assert.ErrorContains(t, cfg.Validate(true), "venue is required")
	assert.NoError(t, cfg.Validate(false))
}

func TestLoad_File(t *testing.T) {
	v := newViper(t, `
venue: /aclweb.org/ACL/ARR/2023/December/
invitations:
  load: Max_Load
  active_submission: ""
capacity:
  roles: [Reviewers]
  missing_load: default
  default_load: 2
progress:
  required_reviews: 4
api:
  timeout: 10s
  retry:
    max_attempts: 5
    initial_delay: 1s
serve:
  refresh_interval: 5m
`)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(true))

	assert.Equal(t, "aclweb.org/ACL/ARR/2023/December", cfg.Venue)
	assert.Equal(t, 4, cfg.Progress.RequiredReviews)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.API.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.API.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.API.Retry.MaxDelay, "unset nested keys keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Serve.RefreshInterval)
	assert.Equal(t, stats.CapacityPolicy{Missing: stats.MissingLoadDefault, DefaultLoad: 2}, cfg.CapacityPolicy())

	model := cfg.VenueModel()
	assert.Equal(t, "Max_Load", model.LoadInvitation)
	assert.Equal(t, "", model.ActiveSubmissionInvitation)
	assert.Equal(t, "Submission", model.SubmissionInvitation)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CHAIRSTAT_VENUE", "host/Conf/2024")
	t.Setenv("CHAIRSTAT_PROGRESS_REQUIRED_REVIEWS", "2")
	t.Setenv("CHAIRSTAT_TOKEN", "abc")

	cfg, err := config.Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "host/Conf/2024", cfg.Venue)
	assert.Equal(t, 2, cfg.Progress.RequiredReviews)
	assert.Equal(t, "abc", cfg.Token)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Venue = "v"
	cfg.Progress.RequiredReviews = 0
	cfg.Capacity.MissingLoad = "zero"
	cfg.Capacity.DefaultLoad = -1
	cfg.API.PageSize = 0
	cfg.API.RequestsPerSecond = -1

	err := cfg.Validate(true)
	require.Error(t, err)
	for _, want := range []string{
		"progress.required_reviews must be positive",
		"capacity.missing_load: unknown missing load policy",
		"capacity.default_load must not be negative",
		"api.page_size must be positive",
		"api.requests_per_second must not be negative",
	} {
		assert.ErrorContains(t, err, want)
	}
	assert.NotContains(t, err.Error(), "venue is required")
}

func TestSchema(t *testing.T) {
	data, err := config.Schema()
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	props := gjson.GetBytes(data, "properties")
	assert.True(t, props.Get("venue").Exists())
	assert.True(t, props.Get("progress.properties.required_reviews").Exists())
	assert.Equal(t, "string", props.Get("api.properties.timeout.type").String())
	assert.Equal(t, "chairstat configuration", gjson.GetBytes(data, "title").String())
}
