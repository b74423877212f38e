// Package cfg loads the automerge configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/optimaxdev/automerge-semantic-release/internal/eventloop"
	"github.com/optimaxdev/automerge-semantic-release/internal/releasebranch"
)

const (
	DefaultLogFormat                 = "logfmt"
	DefaultLogTimeKey                = "time_iso8601"
	DefaultLogLevel                  = "info"
	DefaultRefPrefix                 = releasebranch.DefaultRefPrefix
	DefaultHTTPListenAddr            = ":8085"
	DefaultHTTPGithubWebhookEndpoint = "/listener/github"
	DefaultHTTPMetricsEndpoint       = "/metrics"
	DefaultRetryTimeout              = "2m"
	DefaultEventFilter               = eventloop.DefaultFilterQuery
)

type Config struct {
	GithubAPIToken   string `toml:"github_api_token" yaml:"github_api_token" comment:"token used to authenticate at the GitHub API"`
	GithubAPIURL     string `toml:"github_api_url" yaml:"github_api_url" comment:"REST API URL, only needed for GitHub Enterprise"`
	GithubGraphQLURL string `toml:"github_graphql_url" yaml:"github_graphql_url" comment:"GraphQL API URL, only needed for GitHub Enterprise"`

	AutomergePRLabel string `toml:"automerge_pr_label" yaml:"automerge_pr_label" comment:"label added to pull requests created for merge conflicts"`
	RemoteName       string `toml:"remote_name" yaml:"remote_name"`
	RefPrefix        string `toml:"ref_prefix" yaml:"ref_prefix"`
	DryRun           bool   `toml:"dry_run" yaml:"dry_run" comment:"simulate all changes on GitHub"`
	RetryTimeout     string `toml:"retry_timeout" yaml:"retry_timeout" comment:"max. duration to retry failed GitHub API calls, 0 disables retries"`

	LogFormat  string `toml:"log_format" yaml:"log_format" comment:"logfmt, console or json"`
	LogTimeKey string `toml:"log_time_key" yaml:"log_time_key"`
	LogLevel   string `toml:"log_level" yaml:"log_level"`

	HTTPListenAddr            string `toml:"http_server_listen_addr" yaml:"http_server_listen_addr"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint" yaml:"github_webhook_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret" yaml:"github_webhook_secret"`
	HTTPMetricsEndpoint       string `toml:"prometheus_metrics_endpoint" yaml:"prometheus_metrics_endpoint"`
	EventFilter               string `toml:"event_filter" yaml:"event_filter" comment:"jq query, events for that it evaluates to true trigger a run"`
}

// Default returns a Config with all optional settings set to their default
// values.
func Default() *Config {
	var c Config
	c.setDefaults()

	return &c
}

func (c *Config) setDefaults() {
	setDefault(&c.LogFormat, DefaultLogFormat)
	setDefault(&c.LogTimeKey, DefaultLogTimeKey)
	setDefault(&c.LogLevel, DefaultLogLevel)
	setDefault(&c.RefPrefix, DefaultRefPrefix)
	setDefault(&c.RetryTimeout, DefaultRetryTimeout)
	setDefault(&c.HTTPListenAddr, DefaultHTTPListenAddr)
	setDefault(&c.HTTPGithubWebhookEndpoint, DefaultHTTPGithubWebhookEndpoint)
	setDefault(&c.HTTPMetricsEndpoint, DefaultHTTPMetricsEndpoint)
	setDefault(&c.EventFilter, DefaultEventFilter)
}

func setDefault(field *string, val string) {
	if strings.TrimSpace(*field) == "" {
		*field = val
	}
}

// LoadFile loads a TOML or YAML configuration file, the format is chosen by
// the file extension.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return Load(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %q, supported are: .toml, .yaml, .yml", ext)
	}
}

// Load reads a TOML configuration.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.setDefaults()

	return &result, nil
}

// LoadYAML reads a YAML configuration.
func LoadYAML(reader io.Reader) (*Config, error) {
	var result Config

	err := yaml.NewDecoder(reader).Decode(&result)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	result.setDefaults()

	return &result, nil
}

// ApplyActionInputs overwrites settings with the inputs of a GitHub Actions
// step. Empty values are ignored.
func (c *Config) ApplyActionInputs(token, automergePRLabel, remoteName string) {
	if token != "" {
		c.GithubAPIToken = token
	}

	if automergePRLabel != "" {
		c.AutomergePRLabel = automergePRLabel
	}

	if remoteName != "" {
		c.RemoteName = remoteName
	}
}

// RetryTimeoutDuration returns the parsed RetryTimeout.
func (c *Config) RetryTimeoutDuration() (time.Duration, error) {
	if c.RetryTimeout == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.RetryTimeout)
	if err != nil {
		return 0, fmt.Errorf("retry_timeout: %w", err)
	}

	if d < 0 {
		return 0, fmt.Errorf("retry_timeout: must be positive, is %s", d)
	}

	return d, nil
}

// Validate returns an error if a setting has an invalid value.
func (c *Config) Validate() error {
	if c.GithubAPIToken == "" {
		return errors.New("github_api_token is empty")
	}

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value: %q, supported are: logfmt, console, json", c.LogFormat)
	}

	if _, err := c.RetryTimeoutDuration(); err != nil {
		return err
	}

	if (c.GithubAPIURL == "") != (c.GithubGraphQLURL == "") {
		return errors.New("github_api_url and github_graphql_url must be set both or none")
	}

	return nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
