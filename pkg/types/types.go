// Package types holds the data shapes shared across the node: the
// on-chain records it reads (Market, Run, Job), the off-chain job and
// result documents, and the local Flow it derives and executes.
package types

import "time"

// Market is the on-chain queue a node waits in. Read-only from the
// node's perspective.
type Market struct {
	Address       string
	Queue         []string // ordered node addresses waiting
	JobTimeout    time.Duration
	NodeAccessKey string // collection address gating node entry
}

// Run binds a node to a job once claimed. Created on enter, destroyed
// on finish or quit.
type Run struct {
	Address string
	Node    string
	Job     string
	Payer   string
	Time    time.Time
}

// JobState is the on-chain lifecycle stage of a Job.
type JobState string

const (
	JobQueued   JobState = "queued"
	JobRunning  JobState = "running"
	JobFinished JobState = "finished"
)

// Job is the on-chain record referencing a content-addressed job
// document.
type Job struct {
	Address string
	Market  string
	IPFSJob [32]byte // digest backing the job document's CID
	State   JobState
}

// JobType selects which FlowBuilder materializes a JobDocument.
type JobType string

const (
	JobTypePipeline JobType = "Pipeline"
	JobTypeGithub   JobType = "Github"
	JobTypeGitlab   JobType = "Gitlab"
)

// PipelineSpec is the container workload a job document describes.
type PipelineSpec struct {
	Image    string
	Commands []string
}

// JobDocument is decoded from the blob at a Job's CID.
type JobDocument struct {
	Type     JobType
	URL      string
	Commit   string
	Pipeline PipelineSpec
	State    map[string]any
}

// OpStatus is the recorded outcome of a Flow operation.
type OpStatus string

const (
	OpOK    OpStatus = "ok"
	OpError OpStatus = "error"
)

// Op is one step of a Flow's executable plan.
type Op struct {
	ID   string
	Kind string // "git.ensure-repo", "git.checkout", "docker.run", "wrap-up"
	Args map[string]any
	Deps []string
}

// OpResult is the recorded outcome of one Op.
type OpResult struct {
	Status OpStatus
	Value  any
	Cause  string // set when Status == OpError: the failed upstream op's ID, or the op's own error message
}

// Flow is the local, content-hashed executable plan derived from a
// job document. At most one Flow is active per node process.
type Flow struct {
	ID      string
	Ops     []Op
	State   map[string]any
	Results map[string]OpResult
	Expires *time.Time
}

// Finished reports whether the flow's terminal wrap-up op has
// recorded the uploaded result CID.
func (f *Flow) Finished() bool {
	r, ok := f.Results[ResultIPFSKey]
	return ok && r.Status == OpOK
}

// Expired reports whether the flow carries a deadline that has
// passed.
func (f *Flow) Expired(now time.Time) bool {
	return f.Expires != nil && now.After(*f.Expires)
}

// ResultIPFSKey is the results map key wrap-up writes the uploaded
// result document's CID to.
const ResultIPFSKey = "result/ipfs"

// State keys Flow Builder embeds into every Flow it produces.
const (
	StateJobType   = "nosana/job-type"
	StateJobAddr   = "input/job-addr"
	StateRunAddr   = "input/run-addr"
	StateRepo      = "input/repo"
	StateCommitSHA = "input/commit-sha"
)

// ResultDocument is the JSON document wrap-up uploads to the blob
// store, referenced afterward by the finish transaction's CID.
type ResultDocument struct {
	NosID      string              `json:"nos-id"`
	FinishedAt int64               `json:"finished-at"`
	Results    map[string]OpResult `json:"results"`
}

// HealthSnapshot is the point-in-time balances/credentials the
// Health Monitor observed.
type HealthSnapshot struct {
	SOLBalance float64
	NOSBalance float64
	NFTCount   int
}

// TxStatus is the outcome of polling a submitted transaction.
type TxStatus string

const (
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
	TxTimeout   TxStatus = "timeout"
)

// TxOutcome is the result of Market Client's AwaitTx.
type TxOutcome struct {
	Status    TxStatus
	Signature string
}
