package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/infra/database/models"
	"github.com/totegamma/backline/internal/usecase"
)

type EntityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

func (r *EntityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	record := models.Entity{
		ID:                entity.ID,
		Type:              string(entity.Type),
		Status:            string(entity.Status),
		Name:              entity.Name,
		CreatorID:         entity.CreatorID,
		Version:           entity.Version,
		VenueDecision:     entity.VenueDecision,
		VenueAccountID:    entity.VenueAccountID,
		PromoterAccountID: entity.PromoterAccountID,
	}
	for i, m := range entity.Members {
		record.Members = append(record.Members, models.EntityMember{
			EntityID:     entity.ID,
			AccountID:    m.AccountID,
			PersonaRef:   m.PersonaRef,
			Decision:     string(m.Decision),
			Position:     i,
			BandEntityID: m.BandEntityID,
		})
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if err != nil {
		return domain.Entity{}, err
	}

	return r.Get(ctx, entity.ID)
}

func (r *EntityRepository) Get(ctx context.Context, id string) (domain.Entity, error) {
	var record models.Entity
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Entity{}, domain.NotFoundError{Resource: "entity"}
		}
		return domain.Entity{}, err
	}

	return r.hydrate(ctx, record)
}

func (r *EntityRepository) CommitDecision(ctx context.Context, commit usecase.DecisionCommit) (domain.Entity, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"version": gorm.Expr("version + 1"),
			"status":  string(commit.Status),
		}
		if commit.VenueApproval {
			updates["venue_decision"] = true
		}

		res := tx.Model(&models.Entity{}).
			Where("id = ? AND version = ?", commit.EntityID, commit.ExpectedVersion).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Entity{}).
				Where("id = ?", commit.EntityID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.NotFoundError{Resource: "entity"}
			}
			return domain.ConflictError{
				EntityID:        commit.EntityID,
				ExpectedVersion: commit.ExpectedVersion,
			}
		}

		if commit.AccountID != "" {
			res := tx.Model(&models.EntityMember{}).
				Where("entity_id = ? AND account_id = ?", commit.EntityID, commit.AccountID).
				Update("decision", string(commit.Decision))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.NotFoundError{Resource: "member"}
			}
		}

		return nil
	})
	if err != nil {
		return domain.Entity{}, err
	}

	return r.Get(ctx, commit.EntityID)
}

func (r *EntityRepository) RefreshStatus(ctx context.Context, id string, status domain.Status, expectedVersion int64) (domain.Entity, error) {
	res := r.db.WithContext(ctx).Model(&models.Entity{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"version": gorm.Expr("version + 1"),
			"status":  string(status),
		})
	if res.Error != nil {
		return domain.Entity{}, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Entity{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return domain.Entity{}, err
		}
		if count == 0 {
			return domain.Entity{}, domain.NotFoundError{Resource: "entity"}
		}
		return domain.Entity{}, domain.ConflictError{EntityID: id, ExpectedVersion: expectedVersion}
	}

	return r.Get(ctx, id)
}

func (r *EntityRepository) ParentShowIDs(ctx context.Context, bandEntityID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.EntityMember{}).
		Distinct("entity_members.entity_id").
		Joins("JOIN entities ON entities.id = entity_members.entity_id").
		Where("entity_members.band_entity_id = ? AND entities.type = ?", bandEntityID, string(domain.EntityTypeShow)).
		Pluck("entity_members.entity_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// hydrate maps a stored entity to the domain, resolving nested band
// statuses so the evaluator sees the two-layer roster in one read.
func (r *EntityRepository) hydrate(ctx context.Context, record models.Entity) (domain.Entity, error) {
	entity := domain.Entity{
		ID:                record.ID,
		Type:              domain.EntityType(record.Type),
		Status:            domain.Status(record.Status),
		Name:              record.Name,
		CreatorID:         record.CreatorID,
		Version:           record.Version,
		VenueDecision:     record.VenueDecision,
		VenueAccountID:    record.VenueAccountID,
		PromoterAccountID: record.PromoterAccountID,
		CreatedAt:         record.CDate,
	}

	var bandIDs []string
	for _, m := range record.Members {
		if m.BandEntityID != nil {
			bandIDs = append(bandIDs, *m.BandEntityID)
		}
	}

	bandStatuses := make(map[string]domain.Status)
	if len(bandIDs) > 0 {
		var bands []models.Entity
		err := r.db.WithContext(ctx).
			Select("id", "status").
			Where("id IN ?", bandIDs).
			Find(&bands).Error
		if err != nil {
			return domain.Entity{}, err
		}
		for _, b := range bands {
			bandStatuses[b.ID] = domain.Status(b.Status)
		}
	}

	for _, m := range record.Members {
		member := domain.Member{
			PersonaRef:   m.PersonaRef,
			AccountID:    m.AccountID,
			Decision:     domain.Decision(m.Decision),
			BandEntityID: m.BandEntityID,
		}
		if m.BandEntityID != nil {
			if status, ok := bandStatuses[*m.BandEntityID]; ok {
				member.BandStatus = &status
			}
		}
		entity.Members = append(entity.Members, member)
	}

	return entity, nil
}

var _ usecase.EntityRepository = (*EntityRepository)(nil)
