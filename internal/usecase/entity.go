package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

var tracer = otel.Tracer("usecase")

// InvitationTTL bounds how long a pending invitation stays actionable.
const InvitationTTL = 14 * 24 * time.Hour

const parentRefreshRetries = 3

// ErrVenueApproveOnly is returned when a venue submits anything other than
// an approval. The venue gate is a boolean: a venue that declines simply
// never approves.
var ErrVenueApproveOnly = fmt.Errorf("venue decision supports approval only")

// MemberInput is one invited roster entry. Ref is the persona the invitation
// is addressed through; BandEntityID marks a show sub-entry that is a nested
// band, answered by the band's creator.
type MemberInput struct {
	Ref          backline.PersonaRef
	BandEntityID *string
}

// CreateInput is the validated input for creating a collaborative entity.
type CreateInput struct {
	Type       domain.EntityType
	Name       string
	CreatorRef backline.PersonaRef
	Members    []MemberInput

	// Show only.
	VenueRef *backline.PersonaRef
}

type EntityUsecase struct {
	repo          EntityRepository
	notifications NotificationRepository
	identity      IdentityResolver
	fanout        Fanout
	signal        Publisher
}

func NewEntityUsecase(
	repo EntityRepository,
	notifications NotificationRepository,
	identity IdentityResolver,
	fanout Fanout,
	signal Publisher,
) *EntityUsecase {
	return &EntityUsecase{
		repo:          repo,
		notifications: notifications,
		identity:      identity,
		fanout:        fanout,
		signal:        signal,
	}
}

// Create registers a new collaborative entity. The creator is always
// pre-approved, so an entity whose roster is just its creator activates
// immediately.
func (uc *EntityUsecase) Create(ctx context.Context, input CreateInput) (domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "Entity.Usecase.Create")
	defer span.End()

	if !input.Type.Valid() {
		return domain.Entity{}, fmt.Errorf("invalid entity type: %s", input.Type)
	}
	if input.Name == "" {
		return domain.Entity{}, fmt.Errorf("entity name is required")
	}

	creator, err := uc.identity.Resolve(ctx, input.CreatorRef)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, errors.Wrap(err, "failed to resolve creator")
	}

	entity := domain.Entity{
		ID:        uuid.New().String(),
		Type:      input.Type,
		Name:      input.Name,
		CreatorID: creator.ID,
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Members: []domain.Member{{
			PersonaRef: input.CreatorRef.String(),
			AccountID:  creator.ID,
			Decision:   domain.DecisionApproved,
		}},
	}

	for _, m := range input.Members {
		member, err := uc.resolveMember(ctx, m)
		if err != nil {
			span.RecordError(err)
			return domain.Entity{}, err
		}
		if _, exists := entity.MemberByAccount(member.AccountID); exists {
			continue
		}
		entity.Members = append(entity.Members, member)
	}

	if input.Type == domain.EntityTypeShow {
		promoter := creator.ID
		entity.PromoterAccountID = &promoter

		if input.VenueRef == nil {
			return domain.Entity{}, fmt.Errorf("show requires a venue")
		}
		venue, err := uc.identity.Resolve(ctx, *input.VenueRef)
		if err != nil {
			span.RecordError(err)
			return domain.Entity{}, errors.Wrap(err, "failed to resolve venue")
		}
		entity.VenueAccountID = &venue.ID
	}

	entity.Status = Evaluate(entity)

	created, err := uc.repo.Create(ctx, entity)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, err
	}

	uc.publish(ctx, domain.EventEntityCreated, created)

	if created.Status == domain.StatusActive {
		uc.broadcastActivation(ctx, created)
		return created, nil
	}

	uc.sendInvitations(ctx, created)
	return created, nil
}

// Get returns one entity by id.
func (uc *EntityUsecase) Get(ctx context.Context, id string) (domain.Entity, error) {
	return uc.repo.Get(ctx, id)
}

// ApplyDecision applies one actor's decision to one entity. The write is
// conditional on expectedVersion; stale callers receive
// domain.ConflictError and must re-read and retry. Re-submitting an
// identical decision is a no-op; reversing a cast decision is refused with
// domain.AlreadyDecidedError.
func (uc *EntityUsecase) ApplyDecision(
	ctx context.Context,
	entityID string,
	actorRef backline.PersonaRef,
	decision domain.Decision,
	expectedVersion int64,
) (domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "Entity.Usecase.ApplyDecision")
	defer span.End()

	if decision != domain.DecisionApproved && decision != domain.DecisionRejected {
		return domain.Entity{}, fmt.Errorf("invalid decision: %s", decision)
	}

	actor, err := uc.identity.Resolve(ctx, actorRef)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, domain.UnauthorizedError{Actor: actorRef.String()}
	}

	entity, err := uc.repo.Get(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}

	if entity.Status.Terminal() {
		return domain.Entity{}, domain.AlreadyDecidedError{EntityID: entityID}
	}

	member, isMember := entity.MemberByAccount(actor.ID)
	isVenue := entity.VenueAccountID != nil && *entity.VenueAccountID == actor.ID

	switch {
	case isMember:
		if member.Decision == decision {
			return entity, nil
		}
		if member.Decision != domain.DecisionUndecided {
			return domain.Entity{}, domain.AlreadyDecidedError{EntityID: entityID}
		}
	case isVenue:
		if decision != domain.DecisionApproved {
			return domain.Entity{}, ErrVenueApproveOnly
		}
		if entity.VenueDecision {
			return entity, nil
		}
	default:
		return domain.Entity{}, domain.UnauthorizedError{Actor: actorRef.String()}
	}

	prospective := cloneEntity(entity)
	commit := DecisionCommit{
		EntityID:        entityID,
		ExpectedVersion: expectedVersion,
	}
	if isMember {
		for i := range prospective.Members {
			if prospective.Members[i].AccountID == actor.ID {
				prospective.Members[i].Decision = decision
			}
		}
		commit.AccountID = actor.ID
		commit.Decision = decision
	} else {
		prospective.VenueDecision = true
		commit.VenueApproval = true
	}
	commit.Status = Evaluate(prospective)

	committed, err := uc.repo.CommitDecision(ctx, commit)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, err
	}

	if isMember {
		if err := uc.notifications.MarkInvitationHandled(ctx, entityID, actor.ID); err != nil {
			slog.WarnContext(ctx, "failed to retire invitation",
				slog.String("entity", entityID),
				slog.String("error", err.Error()),
				slog.String("module", "entity"),
			)
		}
	}

	uc.publish(ctx, domain.EventEntityUpdated, committed)
	uc.transition(ctx, entity.Status, committed, &actor.ID)

	if isMember && decision == domain.DecisionApproved && committed.Status == domain.StatusPending {
		uc.deliver(ctx, FanoutBatch{
			Type:       domain.NotificationAcceptance,
			Sender:     &actor.ID,
			SenderName: actor.DisplayName,
			Recipients: []string{committed.CreatorID},
			EntityID:   committed.ID,
			EntityType: committed.Type,
			EntityName: committed.Name,
		})
	}

	return committed, nil
}

// Resubmit clones a rejected entity into a fresh pending one. Rejected
// entities are permanent records; resubmission never mutates the original.
func (uc *EntityUsecase) Resubmit(ctx context.Context, entityID string, actorRef backline.PersonaRef) (domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "Entity.Usecase.Resubmit")
	defer span.End()

	actor, err := uc.identity.Resolve(ctx, actorRef)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, domain.UnauthorizedError{Actor: actorRef.String()}
	}

	old, err := uc.repo.Get(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}
	if old.Status != domain.StatusRejected {
		return domain.Entity{}, fmt.Errorf("only rejected entities can be resubmitted")
	}
	if old.CreatorID != actor.ID {
		return domain.Entity{}, domain.UnauthorizedError{Actor: actorRef.String()}
	}

	fresh := cloneEntity(old)
	fresh.ID = uuid.New().String()
	fresh.Version = 1
	fresh.CreatedAt = time.Now().UTC()
	fresh.VenueDecision = false
	for i := range fresh.Members {
		if fresh.Members[i].AccountID == fresh.CreatorID {
			fresh.Members[i].Decision = domain.DecisionApproved
		} else {
			fresh.Members[i].Decision = domain.DecisionUndecided
		}
	}
	fresh.Status = Evaluate(fresh)

	created, err := uc.repo.Create(ctx, fresh)
	if err != nil {
		span.RecordError(err)
		return domain.Entity{}, err
	}

	uc.publish(ctx, domain.EventEntityCreated, created)
	if created.Status == domain.StatusActive {
		uc.broadcastActivation(ctx, created)
	} else {
		uc.sendInvitations(ctx, created)
	}
	return created, nil
}

func (uc *EntityUsecase) resolveMember(ctx context.Context, input MemberInput) (domain.Member, error) {
	if input.BandEntityID != nil {
		band, err := uc.repo.Get(ctx, *input.BandEntityID)
		if err != nil {
			return domain.Member{}, err
		}
		if band.Type != domain.EntityTypeBand {
			return domain.Member{}, fmt.Errorf("nested member %s is not a band", band.ID)
		}
		status := band.Status
		return domain.Member{
			PersonaRef:   input.Ref.String(),
			AccountID:    band.CreatorID,
			Decision:     domain.DecisionUndecided,
			BandEntityID: input.BandEntityID,
			BandStatus:   &status,
		}, nil
	}

	account, err := uc.identity.Resolve(ctx, input.Ref)
	if err != nil {
		return domain.Member{}, errors.Wrapf(err, "failed to resolve member %s", input.Ref)
	}
	return domain.Member{
		PersonaRef: input.Ref.String(),
		AccountID:  account.ID,
		Decision:   domain.DecisionUndecided,
	}, nil
}

// transition runs post-commit side effects for a status change. The entity
// write is already durable; notification failures are reported per recipient
// and never roll anything back.
func (uc *EntityUsecase) transition(ctx context.Context, before domain.Status, e domain.Entity, sender *string) {
	if before == e.Status {
		return
	}

	switch e.Status {
	case domain.StatusActive:
		uc.broadcastActivation(ctx, e)
	case domain.StatusRejected:
		uc.deliver(ctx, FanoutBatch{
			Type:       domain.NotificationRejection,
			Sender:     sender,
			Recipients: []string{e.CreatorID},
			EntityID:   e.ID,
			EntityType: e.Type,
			EntityName: e.Name,
		})
		uc.publish(ctx, domain.EventEntityRejected, e)
	}

	if e.Type == domain.EntityTypeBand && e.Status.Terminal() {
		uc.refreshParentShows(ctx, e.ID)
	}
}

func (uc *EntityUsecase) broadcastActivation(ctx context.Context, e domain.Entity) {
	uc.deliver(ctx, FanoutBatch{
		Type:       domain.NotificationActivated,
		Recipients: e.RecipientAccounts(),
		EntityID:   e.ID,
		EntityType: e.Type,
		EntityName: e.Name,
	})
	uc.publish(ctx, domain.EventEntityActivated, e)
}

func (uc *EntityUsecase) sendInvitations(ctx context.Context, e domain.Entity) {
	var invitees []string
	for _, m := range e.Members {
		if m.AccountID != e.CreatorID {
			invitees = append(invitees, m.AccountID)
		}
	}
	if len(invitees) == 0 {
		return
	}

	expires := time.Now().UTC().Add(InvitationTTL)
	uc.deliver(ctx, FanoutBatch{
		Type:       domain.NotificationInvitation,
		Sender:     &e.CreatorID,
		Recipients: invitees,
		EntityID:   e.ID,
		EntityType: e.Type,
		EntityName: e.Name,
		ExpiresAt:  &expires,
	})
}

// refreshParentShows re-derives the status of shows carrying the band as a
// nested sub-entry. Each refresh is its own optimistic write with a short
// retry budget; a show that keeps conflicting converges on its next
// decision anyway.
func (uc *EntityUsecase) refreshParentShows(ctx context.Context, bandEntityID string) {
	showIDs, err := uc.repo.ParentShowIDs(ctx, bandEntityID)
	if err != nil {
		slog.WarnContext(ctx, "failed to list parent shows",
			slog.String("band", bandEntityID),
			slog.String("error", err.Error()),
			slog.String("module", "entity"),
		)
		return
	}

	for _, showID := range showIDs {
		for attempt := 0; attempt < parentRefreshRetries; attempt++ {
			show, err := uc.repo.Get(ctx, showID)
			if err != nil {
				break
			}
			if show.Status.Terminal() {
				break
			}
			next := Evaluate(show)
			if next == show.Status {
				break
			}

			committed, err := uc.repo.RefreshStatus(ctx, showID, next, show.Version)
			if err != nil {
				if errors.Is(err, domain.ErrConflict) {
					continue
				}
				break
			}
			uc.publish(ctx, domain.EventEntityUpdated, committed)
			uc.transition(ctx, show.Status, committed, nil)
			break
		}
	}
}

func (uc *EntityUsecase) deliver(ctx context.Context, batch FanoutBatch) {
	for _, result := range uc.fanout.Deliver(ctx, batch) {
		if result.Err != nil {
			slog.WarnContext(ctx, "notification delivery failed",
				slog.String("recipient", result.Recipient),
				slog.String("type", string(batch.Type)),
				slog.String("error", result.Err.Error()),
				slog.String("module", "entity"),
			)
		}
	}
}

func (uc *EntityUsecase) publish(ctx context.Context, eventType string, e domain.Entity) {
	event := backline.Event{
		Topic:     backline.EntityTopic(e.ID),
		Type:      eventType,
		EntityID:  e.ID,
		Version:   e.Version,
		Timestamp: time.Now().UTC(),
		Body:      e,
	}
	if err := uc.signal.Publish(ctx, event.Topic, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			slog.String("topic", event.Topic),
			slog.String("type", eventType),
			slog.String("error", err.Error()),
			slog.String("module", "entity"),
		)
	}
}

func cloneEntity(e domain.Entity) domain.Entity {
	clone := e
	clone.Members = make([]domain.Member, len(e.Members))
	copy(clone.Members, e.Members)
	return clone
}
