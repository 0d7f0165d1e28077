package sync

import (
	"context"

	"github.com/evetools/slacksync/internal/jobs"
)

// scopeReconcile is the dedup scope for single-user reconciliation jobs.
const scopeReconcile = "conversations.sync"

// Service exposes on-demand reconciliation as deduplicated background jobs.
type Service struct {
	queue        *jobs.Queue
	reconciler   *Reconciler
	associations AssociationStore
}

func NewService(queue *jobs.Queue, reconciler *Reconciler, associations AssociationStore) *Service {
	return &Service{
		queue:        queue,
		reconciler:   reconciler,
		associations: associations,
	}
}

// EnqueueSync schedules one reconciliation for the Slack user. Repeated
// requests while a job is active get the existing job id back.
func (s *Service) EnqueueSync(ctx context.Context, slackUserID string) (string, jobs.Refusal, error) {
	association, err := s.associations.FindBySlackID(ctx, slackUserID)
	if err != nil {
		return "", jobs.RefusalNone, err
	}
	return s.queue.EnqueueUnique(ctx, jobs.Spec{
		OwnerID:  association.UserID,
		APIScope: scopeReconcile,
		Task: func(taskCtx context.Context) error {
			_, err := s.reconciler.Reconcile(taskCtx, slackUserID)
			return err
		},
	})
}
