package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/config"
	"github.com/quipkit/quipkit/internal/core/engine"
	apperrors "github.com/quipkit/quipkit/internal/errors"
	"github.com/quipkit/quipkit/internal/observability"
	"github.com/quipkit/quipkit/internal/output"
	"github.com/quipkit/quipkit/internal/quip"
)

var (
	cfgFile      string
	verbose      bool
	apiToken     string
	apiBaseURL   string
	noAutoLimit  bool
	outputFormat string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Rate-limit aware command line client for the Quip automation API",
	Long: `quipkit reads and writes threads, folders, users and messages through the
Quip automation API. Every request honours the service's rate limit headers,
waiting before a call when the remaining quota runs low.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/quipkit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API access token (env QUIPKIT_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "base-url", "", "API base URL (env QUIPKIT_API_BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&noAutoLimit, "no-auto-limit", false, "do not wait before requests when quota runs low")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output-format", "o", "table", "output format: table, json, markdown")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.Reset()

	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		if appConfigDir := config.DefaultConfigDir(); appConfigDir != "" {
			viper.AddConfigPath(appConfigDir)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	configErr := viper.ReadInConfig()

	// Initialize CLI logger once the configured level is known
	observability.InitCLILogger(config.AppName, verbose, viper.GetString("logging.level"))

	if configErr == nil {
		observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
		return
	}

	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(configErr, &notFound):
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	case cfgFile != "" && errors.Is(configErr, os.ErrNotExist):
		ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Config file not found", configErr)
	default:
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Error reading config file", configErr)
	}
}

// loadConfig resolves configuration with command line flags applied last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("token") {
		viper.Set("api.token", apiToken)
	}
	if flags.Changed("base-url") {
		viper.Set("api.base_url", apiBaseURL)
	}
	if noAutoLimit {
		viper.Set("rate_limit.auto", false)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(err.Error())
	}
	return cfg, nil
}

// newClient builds an API client from the resolved configuration. Rate limit
// notifications are logged for the lifetime of the command.
func newClient(cmd *cobra.Command) (*quip.Client, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.API.Token == "" {
		return nil, nil, apperrors.NewConfigInvalidError("API token is required: use --token, QUIPKIT_API_TOKEN or api.token")
	}

	client := quip.New(quip.Options{
		BaseURL:          cfg.API.BaseURL,
		Token:            cfg.API.Token,
		Timeout:          cfg.API.Timeout,
		UserAgent:        fmt.Sprintf("%s/%s", config.AppName, versionInfo.Version),
		Classifier:       engine.FixedWindowClassifier(cfg.Window()),
		DisableAutoLimit: !cfg.RateLimit.Auto,
		MaxPages:         cfg.Export.MaxPages,
		Logger:           observability.CLILogger,
	})
	observability.WatchRateLimits(observability.CLILogger, client.Coordinator)

	return client, cfg, nil
}

func resolveOutputFormat() (output.Format, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return "", apperrors.NewInvalidInputError(err.Error())
	}
	return format, nil
}

// render writes doc to the command's output in the selected format.
func render(cmd *cobra.Command, doc output.Document) error {
	format, err := resolveOutputFormat()
	if err != nil {
		return err
	}
	text, err := output.Render(format, doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
