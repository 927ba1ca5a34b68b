package main

import (
	"context"
	"fmt"

	"github.com/meridian-network/node/pkg/flow"
	gitops "github.com/meridian-network/node/pkg/git"
	"github.com/meridian-network/node/pkg/runtime"
	"github.com/meridian-network/node/pkg/types"
)

// opHandlers builds the full set of Flow op handlers any job type can
// reference: git.ensure-repo, git.checkout, docker.run, wrap-up.
// wrapUp is supplied separately since it needs the Blob Client.
func opHandlers(engine *runtime.ContainerdEngine, workDir func(flowID string) string, wrapUp flow.OpHandler) map[string]flow.OpHandler {
	return map[string]flow.OpHandler{
		"git.ensure-repo": func(ctx context.Context, f *types.Flow, op types.Op) (any, error) {
			url, _ := op.Args["url"].(string)
			dir := workDir(f.ID)
			if err := gitops.EnsureRepo(url, dir); err != nil {
				return nil, err
			}
			return dir, nil
		},
		"git.checkout": func(ctx context.Context, f *types.Flow, op types.Op) (any, error) {
			commit, _ := op.Args["commit"].(string)
			dir := workDir(f.ID)
			if err := gitops.Checkout(dir, commit); err != nil {
				return nil, err
			}
			return commit, nil
		},
		"docker.run": dockerRunHandler(engine, workDir),
		"wrap-up":    wrapUp,
	}
}

// toStringSlice normalizes an Op arg that may be []string (built
// in-process) or []any (decoded from the Flow Store's JSON) into a
// plain []string.
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func dockerRunHandler(engine *runtime.ContainerdEngine, workDir func(flowID string) string) flow.OpHandler {
	return func(ctx context.Context, f *types.Flow, op types.Op) (any, error) {
		image, _ := op.Args["image"].(string)

		spec := runtime.RunSpec{
			ID:       f.ID,
			Image:    image,
			Commands: toStringSlice(op.Args["commands"]),
		}

		if _, usesRepo := f.State[types.StateRepo]; usesRepo {
			spec.WorkDir = workDir(f.ID)
		}

		result, err := engine.RunImage(ctx, spec)
		if err != nil {
			return nil, err
		}
		if result.ExitCode != 0 {
			return nil, fmt.Errorf("container exited with status %d (log: %s)", result.ExitCode, result.LogPath)
		}
		return result.LogPath, nil
	}
}
