package flow

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/meridian-network/node/pkg/cid"
	"github.com/meridian-network/node/pkg/types"
)

// Builder turns a decoded job document into an executable Flow.
// Implementations are registered per types.JobType so the Flow
// Builder component can dispatch on the document's declared type
// without a type switch of its own.
type Builder interface {
	Build(jobAddr, runAddr string, doc types.JobDocument) (types.Flow, error)
}

var registry = map[types.JobType]Builder{
	types.JobTypePipeline: pipelineBuilder{},
	types.JobTypeGithub:   repoBuilder{repoKind: types.JobTypeGithub},
	types.JobTypeGitlab:   repoBuilder{repoKind: types.JobTypeGitlab},
}

// BuilderFor returns the registered Builder for jobType, or false if
// no builder is registered for it.
func BuilderFor(jobType types.JobType) (Builder, bool) {
	b, ok := registry[jobType]
	return b, ok
}

// stableID content-hashes a Flow's jobAddr/runAddr/ops so the same
// job document for the same job and run always yields the same Flow
// ID, letting the Flow
// Store and Flow Runner recognize a resumed flow as identical to the
// one that was interrupted.
func stableID(jobAddr, runAddr string, ops []types.Op) (string, error) {
	payload := struct {
		JobAddr string     `json:"job_addr"`
		RunAddr string     `json:"run_addr"`
		Ops     []types.Op `json:"ops"`
	}{jobAddr, runAddr, ops}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("flow: marshal for id: %w", err)
	}

	digest := sha256.Sum256(data)
	return cid.Encode(digest), nil
}

type pipelineBuilder struct{}

func (pipelineBuilder) Build(jobAddr, runAddr string, doc types.JobDocument) (types.Flow, error) {
	ops := []types.Op{
		{
			ID:   "docker.run",
			Kind: "docker.run",
			Args: map[string]any{
				"image":    doc.Pipeline.Image,
				"commands": doc.Pipeline.Commands,
			},
		},
		{
			ID:   "wrap-up",
			Kind: "wrap-up",
			Deps: []string{"docker.run"},
		},
	}

	id, err := stableID(jobAddr, runAddr, ops)
	if err != nil {
		return types.Flow{}, err
	}

	return types.Flow{
		ID:  id,
		Ops: ops,
		State: map[string]any{
			types.StateJobType: string(types.JobTypePipeline),
			types.StateJobAddr: jobAddr,
			types.StateRunAddr: runAddr,
		},
		Results: map[string]types.OpResult{},
	}, nil
}

// repoBuilder handles both Github and Gitlab job documents: the
// document shapes are identical, only the repo host differs, and
// that distinction matters to nothing downstream of git.ensure-repo.
type repoBuilder struct {
	repoKind types.JobType
}

func (b repoBuilder) Build(jobAddr, runAddr string, doc types.JobDocument) (types.Flow, error) {
	ops := []types.Op{
		{
			ID:   "git.ensure-repo",
			Kind: "git.ensure-repo",
			Args: map[string]any{"url": doc.URL},
		},
		{
			ID:   "git.checkout",
			Kind: "git.checkout",
			Args: map[string]any{"commit": doc.Commit},
			Deps: []string{"git.ensure-repo"},
		},
		{
			ID:   "docker.run",
			Kind: "docker.run",
			Args: map[string]any{
				"image":    doc.Pipeline.Image,
				"commands": doc.Pipeline.Commands,
			},
			Deps: []string{"git.checkout"},
		},
		{
			ID:   "wrap-up",
			Kind: "wrap-up",
			Deps: []string{"docker.run"},
		},
	}

	id, err := stableID(jobAddr, runAddr, ops)
	if err != nil {
		return types.Flow{}, err
	}

	return types.Flow{
		ID:  id,
		Ops: ops,
		State: map[string]any{
			types.StateJobType:   string(b.repoKind),
			types.StateJobAddr:   jobAddr,
			types.StateRunAddr:   runAddr,
			types.StateRepo:      doc.URL,
			types.StateCommitSHA: doc.Commit,
		},
		Results: map[string]types.OpResult{},
	}, nil
}
