package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvtan/jigsaw/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// SessionsTable is the DynamoDB table used by the optional encode
	// session registry.
	SessionsTable string `yaml:"sessions_table"`
	// Stores lists default fragment store locations. A location is either
	// a local directory, "s3://bucket[/prefix]" or "gs://bucket[/prefix]".
	Stores []string `yaml:"stores"`
	// Session carries the per-run slicing and naming settings resolved
	// from flags, environment and config file.
	Session domain.SessionConfig
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags.
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	return &Config{
		LogLevel:      viper.GetString("log_level"),
		SessionsTable: viper.GetString("sessions_table"),
		Stores:        viper.GetStringSlice("stores"),
		Session:       sessionFromViper(),
	}, nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values. The session defaults match
// the historical CLI defaults of the original tool.
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("sessions_table", "encode_sessions")
	viper.SetDefault("slicer", string(domain.SlicerEven))
	viper.SetDefault("blocksize", 32768)
	viper.SetDefault("filenamelength", 30)
	viper.SetDefault("hashlength", 16)
	viper.SetDefault("verbose", 2)
}

// sessionFromViper builds the typed, immutable per-run settings from the
// resolved viper state.
func sessionFromViper() domain.SessionConfig {
	cfg := domain.DefaultSessionConfig()

	if viper.GetString("slicer") == string(domain.SlicerUneven) {
		cfg.Slicer = domain.SlicerUneven
	}
	if v := viper.GetInt64("blocksize"); v > 0 {
		cfg.BlockSize = v
	}
	if v := viper.GetInt("filenamelength"); v > 0 {
		cfg.FilenameLength = v
	}
	if v := viper.GetInt("hashlength"); v > 0 {
		cfg.HashLength = v
	}
	if v := viper.GetInt("verbose"); v > 0 {
		cfg.Verbose = v
	}
	if v := viper.GetInt("parity"); v > 0 {
		cfg.ParityShards = v
	}
	cfg.Strict = viper.GetBool("strict")
	cfg.Quiet = viper.GetBool("quiet")
	return cfg
}

// AWSConfig loads the shared AWS SDK configuration. It is only called when a
// command actually touches S3 or DynamoDB, so purely local runs need no
// cloud credentials.
func AWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return cfg, nil
}
