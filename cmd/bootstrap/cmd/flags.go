package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bootstrap/internal/config"
)

// installFlags are command-line overrides of the install settings.
// Only flags the user actually set replace configured values.
type installFlags struct {
	targetDir       string
	archivePath     string
	collisionPolicy string
	skipNetwork     bool
	skipExtraction  bool
	retries         uint64
}

// bind registers the flags as persistent so subcommands such as status see them too.
func (f *installFlags) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.targetDir, "target-dir", "t", "", "directory the runtime is installed into")
	flags.StringVarP(&f.archivePath, "archive", "a", "", "local archive to install instead of downloading")
	flags.StringVar(&f.collisionPolicy, "collision-policy", "",
		"what to do with an incomplete target: refuse or rebuild")
	flags.BoolVar(&f.skipNetwork, "skip-network", false, "do not download, use --archive instead")
	flags.BoolVar(&f.skipExtraction, "skip-extraction", false, "assume the archive tree is already in the target")
	flags.Uint64Var(&f.retries, "retries", 0, "extra attempts per mirror and transport")
}

func (f *installFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("target-dir") {
		cfg.TargetDir = f.targetDir
	}

	if flags.Changed("archive") {
		cfg.ArchivePath = f.archivePath
		// A local archive implies no download.
		cfg.SkipNetwork = true
	}

	if flags.Changed("collision-policy") {
		cfg.CollisionPolicy = config.CollisionPolicy(f.collisionPolicy)
	}

	if flags.Changed("skip-network") {
		cfg.SkipNetwork = f.skipNetwork
	}

	if flags.Changed("skip-extraction") {
		cfg.SkipExtraction = f.skipExtraction
	}

	if flags.Changed("retries") {
		cfg.Retries = f.retries
	}
}
