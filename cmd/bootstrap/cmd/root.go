package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/installer"
	"github.com/oshokin/runtime-bootstrap/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string
	// logFile overrides the configured log file.
	logFile string
	// overrides are the install settings given on the command line.
	overrides installFlags
	// exitCode is the code reported by the last install run.
	exitCode int

	// rootCmd installs the runtime when needed and hands off to it.
	rootCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Install the runtime on first start and launch it",
		Long: "Checks whether the runtime is installed. If not, downloads its archive from the first " +
			"working mirror, extracts it, moves it into place and installs dependencies. " +
			"Then launches the runtime entry point and exits with its exit code.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			options := &installer.Options{
				Config:   cfg,
				Progress: cmd.ErrOrStderr(),
			}

			exitCode, err = installer.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the bootstrap CLI and exits with the installer's or the runtime's exit code.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "bootstrap:", err)
	}

	os.Exit(exitCodeFor(err, exitCode))
}

// exitCodeFor picks the process exit code: the failure's code when there is
// an error, otherwise the code the runtime returned.
func exitCodeFor(err error, handoffCode int) int {
	if err != nil {
		return installer.ExitCode(err)
	}

	return handoffCode
}

// loadConfig reads the settings, applies command-line overrides and configures logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	overrides.apply(cmd, cfg)

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	if err = logger.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}

	return cfg, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename,
		"path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this rotated file")

	overrides.bind(rootCmd)

	rootCmd.AddCommand(checksumCmd, initConfigCmd, statusCmd)
}
