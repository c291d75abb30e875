package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/state"
	"github.com/riskibarqy/draftwire/internal/validate"
)

// OpsService holds the destructive operator actions. Every call is
// logged at warning level because each one rewrites draft state.
type OpsService struct {
	store     *state.Store
	validator *validate.Validator
	logger    *logging.Logger
}

func NewOpsService(store *state.Store, validator *validate.Validator, logger *logging.Logger) *OpsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &OpsService{store: store, validator: validator, logger: logger}
}

// Rollback restores the snapshot at index. Negative indices count back
// from the newest snapshot, so -1 is the most recent one.
func (s *OpsService) Rollback(ctx context.Context, index int) (state.Summary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OpsService.Rollback")
	defer span.End()

	if !s.store.RollbackToSnapshot(index) {
		return state.Summary{}, fmt.Errorf("%w: snapshot index=%d", ErrNotFound, index)
	}

	summary := s.store.Summary()
	s.logger.WarnContext(ctx, "draft state rolled back",
		"snapshot_index", index,
		"current_pick", summary.CurrentPick,
		"completed_picks", summary.CompletedPicks,
	)
	return summary, nil
}

// HealOutcome is the status-surface read model for a heal pass.
type HealOutcome struct {
	Healed        bool           `json:"healed"`
	SnapshotIndex int            `json:"snapshotIndex"`
	Checked       int            `json:"checked"`
	Result        ValidationView `json:"result"`
}

// Heal validates the live state and, when it is broken, restores the
// newest snapshot that still passes validation.
func (s *OpsService) Heal(ctx context.Context) (HealOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OpsService.Heal")
	defer span.End()

	report, err := s.validator.Heal(s.store)
	outcome := HealOutcome{
		Healed:        report.Healed,
		SnapshotIndex: report.SnapshotIndex,
		Checked:       report.Checked,
		Result: ValidationView{
			Valid:       report.Result.Valid,
			Errors:      report.Result.Errors,
			Warnings:    report.Result.Warnings,
			Suggestions: report.Result.Suggestions,
		},
	}
	if err != nil {
		return outcome, fmt.Errorf("heal draft state: %w", err)
	}
	if outcome.Healed {
		s.logger.WarnContext(ctx, "draft state healed from snapshot",
			"snapshot_index", outcome.SnapshotIndex,
			"snapshots_checked", outcome.Checked,
		)
	}
	return outcome, nil
}
