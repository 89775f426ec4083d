package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/convivia-lab/convivia/pkg/domain/model"
)

// SchoolConfig is one school entry of the TOML configuration file.
type SchoolConfig struct {
	ID               string `toml:"id"`
	Name             string `toml:"name"`
	Bucket           string `toml:"bucket"`
	SlackChannel     string `toml:"slack_channel"`
	NotionDatabaseID string `toml:"notion_database_id"`
}

// Validate checks if the SchoolConfig is valid
func (s *SchoolConfig) Validate() error {
	if s.ID == "" {
		return goerr.Wrap(ErrMissingSchoolID, "school entry without id")
	}
	if s.Name == "" {
		return goerr.Wrap(ErrMissingSchoolName, "school entry without name", goerr.V(SchoolIDKey, s.ID))
	}
	return nil
}

// AppConfig represents the application configuration
type AppConfig struct {
	Schools []SchoolConfig `toml:"school"`

	path string
}

// Flags returns CLI flags for the application configuration
func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to the school configuration TOML file",
			Category:    "Config",
			Sources:     cli.EnvVars("CONVIVIA_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	seen := make(map[string]bool)
	for i, school := range a.Schools {
		if err := school.Validate(); err != nil {
			return goerr.Wrap(err, "invalid school entry", goerr.V(SchoolIndexKey, i))
		}
		if seen[school.ID] {
			return goerr.Wrap(ErrDuplicateSchoolID, "school configured twice", goerr.V(SchoolIDKey, school.ID))
		}
		seen[school.ID] = true
	}
	return nil
}

// Configure loads the TOML file behind the --config flag and builds the
// school registry. Without a config file the registry is empty, which
// disables every school-scoped operation.
func (a *AppConfig) Configure() (*model.SchoolRegistry, error) {
	if a.path != "" {
		loaded, err := LoadAppConfiguration(a.path)
		if err != nil {
			return nil, err
		}
		a.Schools = loaded.Schools
	}

	return a.ToRegistry(), nil
}

// ToRegistry converts the configuration into a SchoolRegistry
func (a *AppConfig) ToRegistry() *model.SchoolRegistry {
	registry := model.NewSchoolRegistry()
	for _, school := range a.Schools {
		registry.Register(&model.SchoolEntry{
			School: model.School{
				ID:   school.ID,
				Name: school.Name,
			},
			Bucket:         school.Bucket,
			SlackChannelID: school.SlackChannel,
		})
	}
	return registry
}

// NotionDatabases returns the per-school Notion database IDs, skipping
// schools without one.
func (a *AppConfig) NotionDatabases() map[string]string {
	dbs := make(map[string]string)
	for _, school := range a.Schools {
		if school.NotionDatabaseID != "" {
			dbs[school.ID] = school.NotionDatabaseID
		}
	}
	return dbs
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "cannot read config", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}
