// Package settlement decides and submits the on-chain outcome of a
// concluded Flow — finish, quit, or no action yet — the Settlement
// component from spec section 4.7.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/metrics"
	"github.com/meridian-network/node/pkg/types"
)

// MarketClient is the subset of pkg/market.Client Settlement needs.
type MarketClient interface {
	FinishJob(ctx context.Context, jobAddress, resultCID string) (types.TxOutcome, error)
	QuitJob(ctx context.Context, jobAddress string) (types.TxOutcome, error)
}

// VolumeReclaimer is the subset of pkg/runtime.Engine Settlement
// needs: free the container snapshot disk a finished run left
// behind.
type VolumeReclaimer interface {
	GCVolumes(ctx context.Context, olderThan time.Duration) error
}

// Settlement submits the chain transaction a concluded Flow calls
// for.
type Settlement struct {
	Market  MarketClient
	Volumes VolumeReclaimer
	Now     func() time.Time
}

// Outcome is what ProcessFlow decided and did.
type Outcome string

const (
	// OutcomeNone means the flow is still running; nothing to settle
	// yet.
	OutcomeNone Outcome = "none"
	// OutcomeRetry means a settlement transaction was submitted but
	// not observed confirmed (failed or timed out); the local active
	// flow is kept and settlement is retried next tick.
	OutcomeRetry    Outcome = "retry"
	OutcomeFinished Outcome = "finished"
	OutcomeQuit     Outcome = "quit"
)

// ProcessFlow inspects f against now and, if it has concluded,
// submits the matching settlement transaction:
//
//   - f.Finished(): submit FinishJob with the uploaded result CID.
//   - f.Expired(now) and not finished: submit QuitJob.
//   - otherwise: still running, no action.
//
// The local active flow is only treated as settled once the
// transaction is observed confirmed; a failed or timed-out tx
// reports OutcomeRetry so the caller keeps the flow_id and tries
// again next tick instead of clearing it. Volumes are reclaimed only
// after a confirmed settlement transaction, so a retry can run
// against still-present container state.
func (s *Settlement) ProcessFlow(ctx context.Context, jobAddr string, f types.Flow) (Outcome, error) {
	logger := log.WithFlowID(f.ID)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	if f.Finished() {
		resultCID, _ := f.Results[types.ResultIPFSKey].Value.(string)

		timer := metrics.NewTimer()
		outcome, err := s.Market.FinishJob(ctx, jobAddr, resultCID)
		timer.ObserveDuration(metrics.SettlementDuration)
		metrics.SettlementsTotal.WithLabelValues("finish", string(outcome.Status)).Inc()
		if err != nil {
			return OutcomeNone, fmt.Errorf("settlement: finish job %s: %w", jobAddr, err)
		}
		if outcome.Status != types.TxConfirmed {
			logger.Warn().Str("job", jobAddr).Str("status", string(outcome.Status)).Msg("finish tx not confirmed, will retry")
			return OutcomeRetry, nil
		}

		logger.Info().Str("job", jobAddr).Str("result_cid", resultCID).Msg("job finished and settled")
		_ = s.Volumes.GCVolumes(ctx, time.Hour)
		return OutcomeFinished, nil
	}

	if f.Expired(now()) {
		timer := metrics.NewTimer()
		outcome, err := s.Market.QuitJob(ctx, jobAddr)
		timer.ObserveDuration(metrics.SettlementDuration)
		metrics.SettlementsTotal.WithLabelValues("quit", string(outcome.Status)).Inc()
		if err != nil {
			return OutcomeNone, fmt.Errorf("settlement: quit job %s: %w", jobAddr, err)
		}
		if outcome.Status != types.TxConfirmed {
			logger.Warn().Str("job", jobAddr).Str("status", string(outcome.Status)).Msg("quit tx not confirmed, will retry")
			return OutcomeRetry, nil
		}

		logger.Warn().Str("job", jobAddr).Msg("run expired before flow finished, quitting job")
		_ = s.Volumes.GCVolumes(ctx, time.Hour)
		return OutcomeQuit, nil
	}

	return OutcomeNone, nil
}
