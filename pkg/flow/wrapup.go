package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-network/node/pkg/types"
)

// ResultUploader is the subset of the Blob Client the wrap-up op
// needs: publish the finished job's result document and return its
// CID.
type ResultUploader interface {
	PutJSON(ctx context.Context, v any) (string, error)
}

// Now returns the current time. A field rather than time.Now
// directly so the handler stays deterministic under test.
type Now func() time.Time

// LogReader reads back the contents a docker.run op captured to its
// log file, so wrap-up can inline them instead of the bare path.
type LogReader func(path string) ([]byte, error)

// selectedOpIDs are the only op results wrap-up folds into the result
// document; anything else a flow records (state-only bookkeeping) is
// not part of the published document.
var selectedOpIDs = []string{"git.ensure-repo", "git.checkout", "docker.run"}

// WrapUpHandler builds the terminal wrap-up OpHandler: it selects
// {git.ensure-repo, git.checkout, docker.run} from the flow's
// results, replaces docker.run's log-file path with the file's
// contents, uploads the composite ResultDocument, and records the
// resulting CID under types.ResultIPFSKey — the signal Flow.Finished
// checks for.
func WrapUpHandler(uploader ResultUploader, now Now, readLog LogReader) OpHandler {
	return func(ctx context.Context, f *types.Flow, op types.Op) (any, error) {
		selected := make(map[string]types.OpResult, len(selectedOpIDs))
		for _, id := range selectedOpIDs {
			res, ok := f.Results[id]
			if !ok {
				continue
			}

			if id == "docker.run" && res.Status == types.OpOK {
				logPath, _ := res.Value.(string)
				contents, err := readLog(logPath)
				if err != nil {
					return nil, fmt.Errorf("wrap-up: read docker.run log %s: %w", logPath, err)
				}
				res.Value = string(contents)
			}

			selected[id] = res
		}

		doc := types.ResultDocument{
			NosID:      f.ID,
			FinishedAt: now().Unix(),
			Results:    selected,
		}

		cidStr, err := uploader.PutJSON(ctx, doc)
		if err != nil {
			return nil, err
		}

		f.Results[types.ResultIPFSKey] = types.OpResult{Status: types.OpOK, Value: cidStr}
		return cidStr, nil
	}
}
