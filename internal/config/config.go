package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the run configuration, populated from flags, environment
// variables (BOOKEVAL_*) and an optional YAML config file, in that
// precedence order.
type Config struct {
	Environment string `mapstructure:"environment"`

	// Remote endpoint used when no model path is given; requests go
	// straight to this base URL without leasing a device.
	APIBase string `mapstructure:"api_base"`
	APIKey  string `mapstructure:"api_key"`

	// ModelsDir holds one subdirectory per model to serve; ModelName and
	// ModelPath select a single model instead.
	ModelsDir string `mapstructure:"models_dir"`
	ModelName string `mapstructure:"model_name"`
	ModelPath string `mapstructure:"model_path"`

	OutputDir string `mapstructure:"output_dir"`

	// GPUIDs is the fixed set of exclusive device tokens.
	GPUIDs    []int `mapstructure:"gpu_ids"`
	PortStart int   `mapstructure:"port_start"`

	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	// Threads bounds the record-level fan-out within one backend session,
	// independent of the device count.
	Threads int `mapstructure:"threads"`

	Progress bool `mapstructure:"progress"`

	Serving ServingConfig `mapstructure:"serving"`
}

// ServingConfig controls how backend server processes are launched and
// torn down.
type ServingConfig struct {
	// Command is the argv prefix of the serving process; model path,
	// served model name and port are appended per instance.
	Command []string `mapstructure:"command"`

	HealthPath   string        `mapstructure:"health_path"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

var config *Config

// BindFlags binds every flag in the set to the config key it sets. Flag
// names use hyphens; config keys use underscores, so a plain BindPFlags
// would register keys no mapstructure tag ever matches.
func BindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// LoadEnvAndConfigFiles loads the optional .env and config files and wires
// viper's environment binding. Called from the root command before any
// subcommand runs.
func LoadEnvAndConfigFiles() error {
	if envFile := viper.GetString("env_file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	setDefaults()

	if configFile := viper.GetString("config_file"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("bookeval")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	return nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}
	return config
}

func MustGetConfig() *Config {
	return GetConfig()
}
