package install

import "time"

// State is a step of the install state machine.
type State int

// Install states in the order a fresh install walks through them.
const (
	StateStart State = iota
	StateCheckInstalled
	StateFetching
	StateVerifying
	StateExtracting
	StateNormalizing
	StateDepInstall
	StateMarkSuccess
	StateHandoff
	StateEnd
)

//nolint:gochecknoglobals // Lookup table for String.
var stateNames = map[State]string{
	StateStart:          "START",
	StateCheckInstalled: "CHECK_INSTALLED",
	StateFetching:       "FETCHING",
	StateVerifying:      "VERIFYING",
	StateExtracting:     "EXTRACTING",
	StateNormalizing:    "NORMALIZING",
	StateDepInstall:     "DEP_INSTALL",
	StateMarkSuccess:    "MARK_SUCCESS",
	StateHandoff:        "HANDOFF",
	StateEnd:            "END",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// TargetState describes what is found at the install target on disk.
type TargetState int

const (
	// TargetAbsent means the target directory does not exist.
	TargetAbsent TargetState = iota
	// TargetIncomplete means the directory exists but has no success marker.
	TargetIncomplete
	// TargetInstalled means the success marker is present.
	TargetInstalled
)

func (s TargetState) String() string {
	switch s {
	case TargetAbsent:
		return "absent"
	case TargetIncomplete:
		return "incomplete"
	case TargetInstalled:
		return "installed"
	default:
		return "unknown"
	}
}

// Actor identifies who performed the install.
type Actor struct {
	// Hostname is the machine name where the install ran.
	Hostname string `yaml:"hostname"`
	// Username is the system user who ran it.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Record is the informational token stored in the success marker.
// Only the marker's existence is authoritative; the record is never validated.
type Record struct {
	// InstalledAt is when the marker was written.
	InstalledAt time.Time `yaml:"installed_at"`
	// Version is the bootstrapper version that performed the install.
	Version string `yaml:"version"`
	// Source is the URL or local path the archive came from.
	Source string `yaml:"source,omitempty"`
	// DependencyExitCode is the exit status of the dependency install step.
	DependencyExitCode int `yaml:"dependency_exit_code"`
	// Actor is the user and host that ran the install.
	Actor *Actor `yaml:"actor,omitempty"`
}

// Clone returns a copy of the record that shares no pointers with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Actor = r.Actor.Clone()

	return &cloned
}
