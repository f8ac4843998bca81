package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/packager"
)

var (
	// pinChecksum stores the computed digest in the settings file.
	pinChecksum bool

	// checksumCmd prints the digest the installer verifies archives against.
	checksumCmd = &cobra.Command{
		Use:   "checksum <archive>",
		Short: "Print the base64 SHA-512 checksum of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Setup(logLevel, logFile); err != nil {
				return err
			}

			options := &packager.Options{
				ArchivePath: args[0],
				ConfigPath:  configPath,
				Pin:         pinChecksum,
				Output:      cmd.OutOrStdout(),
			}

			return packager.Run(cmd.Context(), options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	checksumCmd.Flags().BoolVar(&pinChecksum, "pin", false, "store the checksum in the configuration file")
}
