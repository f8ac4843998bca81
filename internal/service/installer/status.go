package installer

import (
	"context"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	domain "github.com/oshokin/runtime-bootstrap/internal/domain/install"
	"github.com/oshokin/runtime-bootstrap/internal/repository/marker"
)

// Report describes the install target without changing it.
type Report struct {
	// Target is the install target directory.
	Target string
	// State classifies the target.
	State domain.TargetState
	// Record is the marker content when the target is installed and the marker is readable.
	Record *domain.Record
}

// Status inspects the install target described by cfg.
func Status(ctx context.Context, cfg *config.Config) (*Report, error) {
	if cfg == nil {
		return nil, errConfigNotSet
	}

	tracker := marker.NewFileTracker(cfg.TargetDir, cfg.MarkerFile)

	state, err := tracker.TargetState(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target: cfg.TargetDir,
		State:  state,
	}

	if state != domain.TargetInstalled {
		return report, nil
	}

	// The record is informational; an unreadable one does not change the state.
	if record, loadErr := tracker.Load(ctx); loadErr == nil {
		report.Record = record
	}

	return report, nil
}
