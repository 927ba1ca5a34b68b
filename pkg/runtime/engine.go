// Package runtime drives the container engine the Flow Runner
// dispatches docker.run ops to.
package runtime

import (
	"context"
	"time"
)

// RunSpec describes one docker.run op's container workload.
type RunSpec struct {
	ID       string
	Image    string
	Commands []string
	Env      []string
	WorkDir  string
}

// RunResult is what a completed run produced.
type RunResult struct {
	ExitCode int
	LogPath  string
}

// Engine is the container engine driver, the out-of-scope
// collaborator spec section 2 calls the Container Engine. RunImage
// blocks until the container exits or ctx is cancelled, folding
// pull/create/start/wait/log-capture into one call since the Flow
// Runner never needs the intermediate states.
type Engine interface {
	RunImage(ctx context.Context, spec RunSpec) (RunResult, error)
	Reachable(ctx context.Context) bool
	GCVolumes(ctx context.Context, olderThan time.Duration) error
}
