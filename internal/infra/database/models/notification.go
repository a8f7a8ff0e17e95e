package models

import (
	"time"
)

type Notification struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text"`
	Type           string     `json:"type" gorm:"type:text;not null;index"`
	Sender         *string    `json:"sender" gorm:"type:text"`
	Recipient      string     `json:"recipient" gorm:"type:text;not null;index;uniqueIndex:uniq_notification_dedupe"`
	DedupeKey      string     `json:"-" gorm:"type:text;not null;uniqueIndex:uniq_notification_dedupe"`
	Title          string     `json:"title" gorm:"type:text;not null"`
	Message        string     `json:"message" gorm:"type:text"`
	EntityID       string     `json:"entityID" gorm:"type:text;index"`
	Payload        string     `json:"payload" gorm:"type:json"`
	IsRead         bool       `json:"isRead" gorm:"type:boolean;not null;default:false"`
	ActionRequired bool       `json:"actionRequired" gorm:"type:boolean;not null;default:false"`
	ExpiresAt      *time.Time `json:"expiresAt" gorm:"type:timestamp with time zone"`
	CDate          time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
