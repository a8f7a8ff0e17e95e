package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/infra/database/models"
	"github.com/totegamma/backline/internal/usecase"
)

type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) Create(ctx context.Context, candidate domain.Candidate) (domain.Candidate, error) {
	record := models.Candidate{
		ID:       candidate.ID,
		ShowID:   candidate.ShowID,
		Type:     string(candidate.Type),
		Name:     candidate.Name,
		EntityID: candidate.EntityID,
	}
	err := r.db.WithContext(ctx).Create(&record).Error
	if err != nil {
		return domain.Candidate{}, err
	}
	return r.Get(ctx, candidate.ID)
}

func (r *CandidateRepository) Get(ctx context.Context, id string) (domain.Candidate, error) {
	var record models.Candidate
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Candidate{}, domain.NotFoundError{Resource: "candidate"}
		}
		return domain.Candidate{}, err
	}

	candidates, err := r.hydrate(ctx, []models.Candidate{record})
	if err != nil {
		return domain.Candidate{}, err
	}
	return candidates[0], nil
}

func (r *CandidateRepository) ListByShow(ctx context.Context, showID string) ([]domain.Candidate, error) {
	var records []models.Candidate
	err := r.db.WithContext(ctx).
		Where("show_id = ?", showID).
		Order("cdate ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	candidates, err := r.hydrate(ctx, records)
	if err != nil {
		return nil, err
	}

	// Stable rank: vote count descending, creation order as tiebreaker.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].VoteCount > candidates[j-1].VoteCount; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	return candidates, nil
}

func (r *CandidateRepository) AddVote(ctx context.Context, candidateID string, voterAccountID string) (domain.Candidate, error) {
	vote := models.CandidateVote{
		CandidateID: candidateID,
		VoterID:     voterAccountID,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&vote).Error
	if err != nil {
		return domain.Candidate{}, err
	}
	return r.Get(ctx, candidateID)
}

// hydrate attaches vote counts and, for band candidates, the bound
// application entity's consensus status.
func (r *CandidateRepository) hydrate(ctx context.Context, records []models.Candidate) ([]domain.Candidate, error) {
	ids := make([]string, 0, len(records))
	var entityIDs []string
	for _, record := range records {
		ids = append(ids, record.ID)
		if record.EntityID != nil {
			entityIDs = append(entityIDs, *record.EntityID)
		}
	}

	counts := make(map[string]int64)
	if len(ids) > 0 {
		type voteCount struct {
			CandidateID string
			Count       int64
		}
		var rows []voteCount
		err := r.db.WithContext(ctx).Model(&models.CandidateVote{}).
			Select("candidate_id", "count(*) as count").
			Where("candidate_id IN ?", ids).
			Group("candidate_id").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.CandidateID] = row.Count
		}
	}

	statuses := make(map[string]domain.Status)
	if len(entityIDs) > 0 {
		var entities []models.Entity
		err := r.db.WithContext(ctx).
			Select("id", "status").
			Where("id IN ?", entityIDs).
			Find(&entities).Error
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			statuses[e.ID] = domain.Status(e.Status)
		}
	}

	candidates := make([]domain.Candidate, 0, len(records))
	for _, record := range records {
		candidate := domain.Candidate{
			ID:        record.ID,
			ShowID:    record.ShowID,
			Type:      domain.CandidateType(record.Type),
			Name:      record.Name,
			Status:    domain.StatusActive,
			EntityID:  record.EntityID,
			VoteCount: counts[record.ID],
			CreatedAt: record.CDate,
		}
		if record.EntityID != nil {
			if statuses[*record.EntityID] != domain.StatusActive {
				candidate.Status = domain.StatusPending
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

var _ usecase.CandidateRepository = (*CandidateRepository)(nil)
