package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
)

const (
	// DefaultNamespace is the containerd namespace this node's
	// containers run in.
	DefaultNamespace = "meridian"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdEngine implements Engine using containerd.
type ContainerdEngine struct {
	client    *containerd.Client
	namespace string
	logDir    string
}

// NewContainerdEngine connects to the containerd socket at
// socketPath, within namespace, writing captured container logs
// under logDir.
func NewContainerdEngine(socketPath, namespace, logDir string) (*ContainerdEngine, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("containerd engine: connect %s: %w", socketPath, err)
	}

	return &ContainerdEngine{client: client, namespace: namespace, logDir: logDir}, nil
}

// Close closes the containerd client connection.
func (e *ContainerdEngine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Reachable probes whether the containerd daemon answers a version
// call, grounding the Health Monitor's "container engine unreachable"
// reason.
func (e *ContainerdEngine) Reachable(ctx context.Context) bool {
	_, err := e.client.Version(ctx)
	return err == nil
}

// RunImage pulls spec.Image if needed, creates and starts a
// container running spec.Commands, waits for it to exit, and
// captures its combined stdout/stderr to a log file under logDir.
func (e *ContainerdEngine) RunImage(ctx context.Context, spec RunSpec) (RunResult, error) {
	ctx = namespaces.WithNamespace(ctx, e.namespace)

	image, err := e.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = e.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return RunResult{}, fmt.Errorf("containerd engine: pull %s: %w", spec.Image, err)
		}
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithProcessArgs(spec.Commands...),
		oci.WithEnv(spec.Env),
	}
	if spec.WorkDir != "" {
		opts = append(opts, oci.WithProcessCwd(spec.WorkDir))
	}

	container, err := e.client.NewContainer(
		ctx,
		spec.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return RunResult{}, fmt.Errorf("containerd engine: create container %s: %w", spec.ID, err)
	}
	defer container.Delete(ctx, containerd.WithSnapshotCleanup)

	logPath := filepath.Join(e.logDir, spec.ID+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("containerd engine: open log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, logFile, logFile)))
	if err != nil {
		return RunResult{}, fmt.Errorf("containerd engine: create task: %w", err)
	}
	defer task.Delete(ctx)

	statusC, err := task.Wait(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("containerd engine: wait task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return RunResult{}, fmt.Errorf("containerd engine: start task: %w", err)
	}

	select {
	case status := <-statusC:
		return RunResult{ExitCode: int(status.ExitCode()), LogPath: logPath}, status.Error()
	case <-ctx.Done():
		_ = task.Kill(ctx, 9)
		return RunResult{LogPath: logPath}, fmt.Errorf("containerd engine: %w", ctx.Err())
	}
}

// GCVolumes removes leftover snapshots for containers older than
// olderThan, run by Settlement after a flow concludes so stopped
// containers don't accumulate disk usage across jobs.
func (e *ContainerdEngine) GCVolumes(ctx context.Context, olderThan time.Duration) error {
	ctx = namespaces.WithNamespace(ctx, e.namespace)

	containers, err := e.client.Containers(ctx)
	if err != nil {
		return fmt.Errorf("containerd engine: list containers: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	for _, c := range containers {
		info, err := c.Info(ctx)
		if err != nil {
			continue
		}
		if info.CreatedAt.Before(cutoff) {
			_ = c.Delete(ctx, containerd.WithSnapshotCleanup)
		}
	}
	return nil
}
