package models

import (
	"time"
)

type Candidate struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	ShowID   string    `json:"showID" gorm:"type:text;not null;index"`
	Show     Entity    `json:"-" gorm:"foreignKey:ShowID;references:ID;constraint:OnDelete:CASCADE;"`
	Type     string    `json:"type" gorm:"type:text;not null"`
	Name     string    `json:"name" gorm:"type:text;not null"`
	EntityID *string   `json:"entityID" gorm:"type:text;index"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type CandidateVote struct {
	CandidateID string    `json:"candidateID" gorm:"primaryKey;type:text"`
	Candidate   Candidate `json:"-" gorm:"foreignKey:CandidateID;references:ID;constraint:OnDelete:CASCADE;"`
	VoterID     string    `json:"voterID" gorm:"primaryKey;type:text"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
