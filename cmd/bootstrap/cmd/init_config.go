package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/packager"
)

var (
	// forceInit overwrites an existing settings file.
	forceInit bool

	// initConfigCmd writes the default settings file.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Setup(logLevel, logFile); err != nil {
				return err
			}

			path := configPath
			if len(args) == 1 {
				path = args[0]
			}

			return packager.InitConfig(cmd.Context(), path, forceInit)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initConfigCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}
