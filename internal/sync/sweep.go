package sync

import (
	"context"
	"time"

	"github.com/evetools/slacksync/internal/audit"
	"github.com/evetools/slacksync/internal/ids"
	"github.com/evetools/slacksync/internal/obs"
)

// Sweeper runs a full synchronization pass: discovery first, then a
// sequential reconciliation of every associated user. Identities are
// deliberately not reconciled in parallel; each platform call blocks, so a
// slow remote call stalls the remainder of the sweep. That ceiling is
// acceptable for a low-frequency batch job.
type Sweeper struct {
	discovery    *Discovery
	reconciler   *Reconciler
	associations AssociationStore
	logger       obs.Logger
}

// NewSweeper wires a sweeper. logger may be nil.
func NewSweeper(discovery *Discovery, reconciler *Reconciler, associations AssociationStore, logger obs.Logger) *Sweeper {
	return &Sweeper{
		discovery:    discovery,
		reconciler:   reconciler,
		associations: associations,
		logger:       obs.OrNop(logger),
	}
}

// UserError records a reconciliation that failed before producing a result.
type UserError struct {
	SlackID string
	Err     error
}

// SweepReport is the outcome of one sweep. A sweep that hits errors still
// completes with a partial result plus the explicit error list.
type SweepReport struct {
	SweepID    string
	Members    int
	Associated int
	Results    []Result
	UserErrors []UserError
}

// Sweep performs one full pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	sweepID := ids.New()
	ctx = audit.WithSweepID(ctx, sweepID)
	report := SweepReport{SweepID: sweepID}
	start := time.Now()

	discovered, err := s.discovery.Run(ctx)
	if err != nil {
		return report, err
	}
	report.Members = discovered.Members
	report.Associated = discovered.Associated

	associations, err := s.associations.List(ctx)
	if err != nil {
		return report, err
	}

	for _, association := range associations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := s.reconciler.Reconcile(ctx, association.SlackID)
		if err != nil {
			report.UserErrors = append(report.UserErrors, UserError{SlackID: association.SlackID, Err: err})
			continue
		}
		report.Results = append(report.Results, result)
	}

	obs.ObserveSweep(time.Since(start))
	s.logger.Log("sweep complete", map[string]any{
		"sweep_id":   sweepID,
		"members":    report.Members,
		"reconciled": len(report.Results),
		"failures":   len(report.UserErrors),
	})
	return report, nil
}
