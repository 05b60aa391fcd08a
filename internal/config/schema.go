package config

// Config is the full TaskBridge configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DatabaseConfig configures the task store.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SyncConfig configures batch sync behavior.
type SyncConfig struct {
	// TimeoutSeconds bounds every single provider call so one slow provider
	// can never stall a batch indefinitely.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ProvidersConfig holds credentials and destinations for all four providers.
// A fully zero-valued section means "not connected", which is a normal state,
// not an error.
type ProvidersConfig struct {
	IssueTracker IssueTrackerConfig `yaml:"issuetracker" mapstructure:"issuetracker"`
	TodoList     TodoListConfig     `yaml:"todolist" mapstructure:"todolist"`
	BoardCard    BoardCardConfig    `yaml:"boardcard" mapstructure:"boardcard"`
	BoardItem    BoardItemConfig    `yaml:"boarditem" mapstructure:"boarditem"`
}

// IssueTrackerConfig configures the REST + Basic-Auth issue tracker.
type IssueTrackerConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Email      string `yaml:"email" mapstructure:"email"`
	APIToken   string `yaml:"api_token" mapstructure:"api_token"`
	ProjectKey string `yaml:"project_key" mapstructure:"project_key"`
}

// Configured reports whether credentials are present.
func (c IssueTrackerConfig) Configured() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

// TodoListConfig configures the Graph-style to-do provider. The access token
// is supplied by the credential-store collaborator; token refresh is out of
// scope here.
type TodoListConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	ListID      string `yaml:"list_id" mapstructure:"list_id"`
}

// Configured reports whether credentials are present.
func (c TodoListConfig) Configured() bool {
	return c.AccessToken != ""
}

// BoardCardConfig configures the card-board provider.
type BoardCardConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
	ListID  string `yaml:"list_id" mapstructure:"list_id"`
}

// Configured reports whether credentials are present.
func (c BoardCardConfig) Configured() bool {
	return c.Token != ""
}

// BoardItemConfig configures the GraphQL item-board provider.
type BoardItemConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	APIToken       string `yaml:"api_token" mapstructure:"api_token"`
	BoardID        string `yaml:"board_id" mapstructure:"board_id"`
	GroupID        string `yaml:"group_id" mapstructure:"group_id"`
	StatusColumn   string `yaml:"status_column" mapstructure:"status_column"`
	DateColumn     string `yaml:"date_column" mapstructure:"date_column"`
	PriorityColumn string `yaml:"priority_column" mapstructure:"priority_column"`
}

// Configured reports whether credentials are present.
func (c BoardItemConfig) Configured() bool {
	return c.APIToken != ""
}
