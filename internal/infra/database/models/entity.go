package models

import (
	"time"
)

type Entity struct {
	ID                string         `json:"id" gorm:"primaryKey;type:text"`
	Type              string         `json:"type" gorm:"type:text;not null;index"`
	Status            string         `json:"status" gorm:"type:text;not null;index"`
	Name              string         `json:"name" gorm:"type:text;not null"`
	CreatorID         string         `json:"creatorID" gorm:"type:text;not null;index"`
	Version           int64          `json:"version" gorm:"type:bigint;not null;default:1"`
	VenueDecision     bool           `json:"venueDecision" gorm:"type:boolean;not null;default:false"`
	VenueAccountID    *string        `json:"venueAccountID" gorm:"type:text"`
	PromoterAccountID *string        `json:"promoterAccountID" gorm:"type:text"`
	Members           []EntityMember `json:"members" gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE;"`
	CDate             time.Time      `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type EntityMember struct {
	EntityID     string  `json:"entityID" gorm:"primaryKey;type:text"`
	AccountID    string  `json:"accountID" gorm:"primaryKey;type:text;index"`
	PersonaRef   string  `json:"personaRef" gorm:"type:text;not null"`
	Decision     string  `json:"decision" gorm:"type:text;not null;default:'undecided'"`
	Position     int     `json:"position" gorm:"type:integer;not null"`
	BandEntityID *string `json:"bandEntityID" gorm:"type:text;index"`
}
