package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads and merges configuration from global and project sources.
// Environment variables prefixed with TASKBRIDGE_ override file values
// (e.g. TASKBRIDGE_PROVIDERS_ISSUETRACKER_API_TOKEN).
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil // Return defaults if no home dir
	}

	cwd, err := os.Getwd()
	if err != nil {
		return cfg, nil // Return defaults if no cwd
	}

	// Global config first, project config overrides
	if err := loadFile(GlobalConfigPath(home), cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := loadFile(filepath.Join(cwd, ".taskbridge", "config.yaml"), cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	expandPaths(cfg)

	return cfg, nil
}

// LoadFile loads configuration from a single explicit file path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	expandPaths(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("TASKBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	overrides := map[string]*string{
		"server.addr":   &cfg.Server.Addr,
		"database.path": &cfg.Database.Path,

		"providers.issuetracker.base_url":    &cfg.Providers.IssueTracker.BaseURL,
		"providers.issuetracker.email":       &cfg.Providers.IssueTracker.Email,
		"providers.issuetracker.api_token":   &cfg.Providers.IssueTracker.APIToken,
		"providers.issuetracker.project_key": &cfg.Providers.IssueTracker.ProjectKey,

		"providers.todolist.base_url":     &cfg.Providers.TodoList.BaseURL,
		"providers.todolist.access_token": &cfg.Providers.TodoList.AccessToken,
		"providers.todolist.list_id":      &cfg.Providers.TodoList.ListID,

		"providers.boardcard.base_url": &cfg.Providers.BoardCard.BaseURL,
		"providers.boardcard.token":    &cfg.Providers.BoardCard.Token,
		"providers.boardcard.list_id":  &cfg.Providers.BoardCard.ListID,

		"providers.boarditem.base_url":        &cfg.Providers.BoardItem.BaseURL,
		"providers.boarditem.api_token":       &cfg.Providers.BoardItem.APIToken,
		"providers.boarditem.board_id":        &cfg.Providers.BoardItem.BoardID,
		"providers.boarditem.group_id":        &cfg.Providers.BoardItem.GroupID,
		"providers.boarditem.status_column":   &cfg.Providers.BoardItem.StatusColumn,
		"providers.boarditem.date_column":     &cfg.Providers.BoardItem.DateColumn,
		"providers.boarditem.priority_column": &cfg.Providers.BoardItem.PriorityColumn,
	}
	for key, target := range overrides {
		if s := v.GetString(key); s != "" {
			*target = s
		}
	}
	if n := v.GetInt("sync.timeout_seconds"); n > 0 {
		cfg.Sync.TimeoutSeconds = n
	}
}

func expandPaths(cfg *Config) {
	if strings.HasPrefix(cfg.Database.Path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Database.Path = filepath.Join(home, cfg.Database.Path[1:])
		}
	}
}

// Dump renders the configuration as YAML with credentials redacted.
func Dump(cfg *Config) (string, error) {
	redacted := *cfg
	redacted.Providers.IssueTracker.APIToken = redact(cfg.Providers.IssueTracker.APIToken)
	redacted.Providers.TodoList.AccessToken = redact(cfg.Providers.TodoList.AccessToken)
	redacted.Providers.BoardCard.Token = redact(cfg.Providers.BoardCard.Token)
	redacted.Providers.BoardItem.APIToken = redact(cfg.Providers.BoardItem.APIToken)

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath(home string) string {
	return filepath.Join(home, ".taskbridge", "config.yaml")
}
