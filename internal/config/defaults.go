package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".taskbridge", "taskbridge.db"),
		},
		Sync: SyncConfig{
			TimeoutSeconds: 15,
		},
	}
}

// WriteDefault writes a commented starter configuration to a file
func WriteDefault(path string) error {
	content := `# TaskBridge Configuration
server:
  addr: ":8090"

database:
  path: ~/.taskbridge/taskbridge.db

sync:
  timeout_seconds: 15

# Provider credentials. Leave a section empty to keep that provider
# disconnected; status checks report it as not configured.
providers:
  issuetracker:
    base_url: ""        # e.g. https://yourteam.atlassian.net
    email: ""
    api_token: ""
    project_key: ""
  todolist:
    access_token: ""
    list_id: ""
  boardcard:
    token: ""
    list_id: ""
  boarditem:
    api_token: ""
    board_id: ""
    group_id: ""
    status_column: "status"
    date_column: "date"
    priority_column: "priority"
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}
