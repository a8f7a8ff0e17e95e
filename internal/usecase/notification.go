package usecase

import (
	"context"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

const (
	defaultInboxLimit = 40
	maxInboxLimit     = 100
)

type NotificationUsecase struct {
	repo     NotificationRepository
	identity IdentityResolver
}

func NewNotificationUsecase(repo NotificationRepository, identity IdentityResolver) *NotificationUsecase {
	return &NotificationUsecase{repo: repo, identity: identity}
}

// ListForRecipient returns an account's notifications newest first. The
// sequence is restartable via offset.
func (uc *NotificationUsecase) ListForRecipient(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.ListByRecipient(ctx, accountID, limit, offset)
}

// ListForActor resolves the acting persona and lists its inbox.
func (uc *NotificationUsecase) ListForActor(ctx context.Context, actorRef backline.PersonaRef, limit, offset int) ([]domain.Notification, error) {
	account, err := uc.identity.Resolve(ctx, actorRef)
	if err != nil {
		return nil, domain.UnauthorizedError{Actor: actorRef.String()}
	}
	return uc.ListForRecipient(ctx, account.ID, limit, offset)
}

// MarkHandled acknowledges one notification for its recipient. Repeated
// calls are no-ops.
func (uc *NotificationUsecase) MarkHandled(ctx context.Context, accountID, notificationID string) error {
	notification, err := uc.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.Recipient != accountID {
		return domain.UnauthorizedError{Actor: accountID}
	}
	return uc.repo.MarkHandled(ctx, notificationID)
}

// MarkHandledByActor resolves the acting persona before acknowledging.
func (uc *NotificationUsecase) MarkHandledByActor(ctx context.Context, actorRef backline.PersonaRef, notificationID string) error {
	account, err := uc.identity.Resolve(ctx, actorRef)
	if err != nil {
		return domain.UnauthorizedError{Actor: actorRef.String()}
	}
	return uc.MarkHandled(ctx, account.ID, notificationID)
}
