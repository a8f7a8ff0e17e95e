package usecase

import (
	"context"
	"time"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

// DecisionCommit is one conditional write against an entity. Exactly one of
// the member decision pair or VenueApproval is set. Status carries the
// evaluated next status so the decision and the derived status commit in the
// same transaction.
type DecisionCommit struct {
	EntityID        string
	ExpectedVersion int64
	Status          domain.Status

	AccountID string
	Decision  domain.Decision

	VenueApproval bool
}

// EntityRepository defines persistence for collaborative entities. All writes
// are conditional on the entity's current version and return
// domain.ConflictError on a mismatch.
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	Get(ctx context.Context, id string) (domain.Entity, error)
	CommitDecision(ctx context.Context, commit DecisionCommit) (domain.Entity, error)
	// RefreshStatus re-derives a parent's status after a nested band
	// transition, without touching any consensus entry.
	RefreshStatus(ctx context.Context, id string, status domain.Status, expectedVersion int64) (domain.Entity, error)
	// ParentShowIDs lists shows carrying the given band as a nested
	// sub-entry.
	ParentShowIDs(ctx context.Context, bandEntityID string) ([]string, error)
}

// CandidateRepository defines persistence for backline candidates and their
// plurality votes.
type CandidateRepository interface {
	Create(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error)
	Get(ctx context.Context, id string) (domain.Candidate, error)
	ListByShow(ctx context.Context, showID string) ([]domain.Candidate, error)
	// AddVote is insert-or-ignore keyed on (candidate, voter).
	AddVote(ctx context.Context, candidateID string, voterAccountID string) (domain.Candidate, error)
}

// NotificationRepository defines persistence for materialized notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification domain.Notification) (domain.Notification, error)
	Get(ctx context.Context, id string) (domain.Notification, error)
	ListByRecipient(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error)
	MarkHandled(ctx context.Context, id string) error
	// MarkInvitationHandled retires the pending invitation addressed to one
	// account for one entity. It is a no-op when none is pending.
	MarkInvitationHandled(ctx context.Context, entityID, accountID string) error
}

// IdentityResolver maps a typed persona reference to its canonical account.
type IdentityResolver interface {
	Resolve(ctx context.Context, ref backline.PersonaRef) (backline.Account, error)
}

// Publisher emits realtime events for committed writes.
type Publisher interface {
	Publish(ctx context.Context, topic string, event backline.Event) error
}

// FanoutBatch is one notification broadcast request.
type FanoutBatch struct {
	Type       domain.NotificationType
	Sender     *string
	SenderName string
	Recipients []string
	EntityID   string
	EntityType domain.EntityType
	EntityName string
	ExpiresAt  *time.Time
}

// FanoutResult reports one recipient send. Failures are isolated and never
// abort the batch.
type FanoutResult struct {
	Recipient      string
	NotificationID string
	Err            error
}

// Fanout materializes per-recipient notification records for a batch.
type Fanout interface {
	Deliver(ctx context.Context, batch FanoutBatch) []FanoutResult
}
