package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

// ApplyInput registers one act as a backline candidate under a show.
// EntityID binds a band-type candidate to its backline application entity;
// solo candidates carry no internal consensus and activate immediately.
type ApplyInput struct {
	ShowID       string
	ApplicantRef backline.PersonaRef
	Name         string
	EntityID     *string
}

type CandidateUsecase struct {
	repo     CandidateRepository
	entities EntityRepository
	identity IdentityResolver
	fanout   Fanout
	signal   Publisher
}

func NewCandidateUsecase(
	repo CandidateRepository,
	entities EntityRepository,
	identity IdentityResolver,
	fanout Fanout,
	signal Publisher,
) *CandidateUsecase {
	return &CandidateUsecase{
		repo:     repo,
		entities: entities,
		identity: identity,
		fanout:   fanout,
		signal:   signal,
	}
}

// Apply creates a candidate for a show's backline slot and notifies the
// show's promoter.
func (uc *CandidateUsecase) Apply(ctx context.Context, input ApplyInput) (domain.Candidate, error) {
	ctx, span := tracer.Start(ctx, "Candidate.Usecase.Apply")
	defer span.End()

	if input.Name == "" {
		return domain.Candidate{}, fmt.Errorf("candidate name is required")
	}

	applicant, err := uc.identity.Resolve(ctx, input.ApplicantRef)
	if err != nil {
		span.RecordError(err)
		return domain.Candidate{}, domain.UnauthorizedError{Actor: input.ApplicantRef.String()}
	}

	show, err := uc.entities.Get(ctx, input.ShowID)
	if err != nil {
		return domain.Candidate{}, err
	}
	if show.Type != domain.EntityTypeShow {
		return domain.Candidate{}, domain.NotFoundError{Resource: "show"}
	}

	candidate := domain.Candidate{
		ID:        uuid.New().String(),
		ShowID:    show.ID,
		Type:      domain.CandidateSolo,
		Name:      input.Name,
		Status:    domain.StatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if input.EntityID != nil {
		application, err := uc.entities.Get(ctx, *input.EntityID)
		if err != nil {
			return domain.Candidate{}, err
		}
		if application.Type != domain.EntityTypeBacklineApplication {
			return domain.Candidate{}, fmt.Errorf("entity %s is not a backline application", application.ID)
		}
		candidate.Type = domain.CandidateBand
		candidate.EntityID = input.EntityID
		candidate.Status = candidateStatus(application.Status)
	}

	created, err := uc.repo.Create(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		return domain.Candidate{}, err
	}

	uc.publishCandidate(ctx, created)

	if show.PromoterAccountID != nil {
		for _, result := range uc.fanout.Deliver(ctx, FanoutBatch{
			Type:       domain.NotificationBacklinePosted,
			Sender:     &applicant.ID,
			SenderName: applicant.DisplayName,
			Recipients: []string{*show.PromoterAccountID},
			EntityID:   show.ID,
			EntityType: show.Type,
			EntityName: created.Name,
		}) {
			if result.Err != nil {
				slog.WarnContext(ctx, "notification delivery failed",
					slog.String("recipient", result.Recipient),
					slog.String("error", result.Err.Error()),
					slog.String("module", "candidate"),
				)
			}
		}
	}

	return created, nil
}

// CastVote records one voter's plurality vote. Voting is open to any
// resolvable persona and idempotent per voter: repeats never move the tally.
func (uc *CandidateUsecase) CastVote(ctx context.Context, showID, candidateID string, voterRef backline.PersonaRef) (domain.Candidate, error) {
	ctx, span := tracer.Start(ctx, "Candidate.Usecase.CastVote")
	defer span.End()

	voter, err := uc.identity.Resolve(ctx, voterRef)
	if err != nil {
		span.RecordError(err)
		return domain.Candidate{}, domain.UnauthorizedError{Actor: voterRef.String()}
	}

	candidate, err := uc.repo.Get(ctx, candidateID)
	if err != nil {
		return domain.Candidate{}, err
	}
	if candidate.ShowID != showID {
		return domain.Candidate{}, domain.NotFoundError{Resource: "candidate"}
	}

	updated, err := uc.repo.AddVote(ctx, candidateID, voter.ID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to record vote"))
		return domain.Candidate{}, err
	}

	uc.publishCandidate(ctx, updated)
	return updated, nil
}

// List returns a show's candidates ranked by vote count descending. Ranking
// is informational only; a band candidate can lead the tally and still be
// pending on its own consensus.
func (uc *CandidateUsecase) List(ctx context.Context, showID string) ([]domain.Candidate, error) {
	show, err := uc.entities.Get(ctx, showID)
	if err != nil {
		return nil, err
	}
	if show.Type != domain.EntityTypeShow {
		return nil, domain.NotFoundError{Resource: "show"}
	}
	return uc.repo.ListByShow(ctx, showID)
}

func (uc *CandidateUsecase) publishCandidate(ctx context.Context, c domain.Candidate) {
	event := backline.Event{
		Topic:     backline.EntityTopic(c.ShowID),
		Type:      domain.EventCandidateUpdated,
		EntityID:  c.ShowID,
		Timestamp: time.Now().UTC(),
		Body:      c,
	}
	if err := uc.signal.Publish(ctx, event.Topic, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			slog.String("topic", event.Topic),
			slog.String("error", err.Error()),
			slog.String("module", "candidate"),
		)
	}
}

// candidateStatus maps an application entity's consensus status onto the
// candidate's visible status. Candidates never show rejected; a rejected
// application just stays pending in the lineup.
func candidateStatus(s domain.Status) domain.Status {
	if s == domain.StatusActive {
		return domain.StatusActive
	}
	return domain.StatusPending
}
