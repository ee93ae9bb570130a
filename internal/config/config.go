// Package config loads the service configuration from a YAML file. Environment variables in the
// form ${NAME} are expanded before parsing, so the file can take values such as the database
// password from the environment. A .env file in the working directory is loaded first if present.
//
// Default values come from `default` struct tags and validation rules from `validate` tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gitlab.com/dirk.krummacker/contacts-api/internal/filestore"
	"gitlab.com/dirk.krummacker/contacts-api/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// Config is the root of the service configuration.
type Config struct {
	HTTP     HTTP              `yaml:"http"`
	Database repository.Config `yaml:"database"`
	Storage  filestore.Config  `yaml:"storage"`
	Log      logger.Config     `yaml:"log"`
}

// HTTP holds the settings of the REST API.
type HTTP struct {
	Port int `yaml:"port" validate:"min=1,max=65535" default:"8080"`

	// Logging switches the HTTP request log on or off.
	Logging string `yaml:"logging" default:"on"`

	// AllowedOrigins lists the origins accepted by CORS. "*" allows every origin.
	AllowedOrigins []string `yaml:"allowedOrigins" default:"[\"*\"]"`

	// MaxUploadBytes limits the size of an uploaded contact image.
	MaxUploadBytes int64 `yaml:"maxUploadBytes" validate:"min=1" default:"10485760"`
}

// RequestLogging reports whether HTTP requests shall be logged.
func (h HTTP) RequestLogging() bool {
	return !strings.EqualFold(h.Logging, "off")
}

// Load reads, defaults and validates the configuration in the file at path.
func Load(path string) (Config, error) {
	var cfg Config

	// A missing .env file is the normal case outside of local development.
	_ = godotenv.Load()

	data, err := os.ReadFile(path) // nosemgrep
	if err != nil {
		return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("could not set default values: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate checks the configuration against its validation tags and reports all failed fields.
func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("could not validate config: %w", err)
	}
	failed := make([]string, 0, len(errs))
	for _, e := range errs {
		tag := e.Tag()
		if e.Param() != "" {
			tag += "=" + e.Param()
		}
		failed = append(failed, e.Namespace()+": "+tag)
	}
	return fmt.Errorf("invalid config fields: %s", strings.Join(failed, ", "))
}

// String renders the configuration as YAML. Fields tagged `mask:"true"` are masked.
func (c Config) String() string {
	out, err := yaml.Marshal(masked(c))
	if err != nil {
		return fmt.Sprintf("could not render config: %v", err)
	}
	return string(out)
}
