package domain

import "time"

// EntityType discriminates collaborative entities.
type EntityType string

const (
	EntityTypeBand                EntityType = "band"
	EntityTypeAlbum               EntityType = "album"
	EntityTypeBacklineApplication EntityType = "backline_application"
	EntityTypeShow                EntityType = "show"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeBand, EntityTypeAlbum, EntityTypeBacklineApplication, EntityTypeShow:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a collaborative entity.
// Active and Rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusActive || s == StatusRejected
}

// Decision is one member's tri-state consensus entry.
type Decision string

const (
	DecisionUndecided Decision = "undecided"
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionUndecided, DecisionApproved, DecisionRejected:
		return true
	default:
		return false
	}
}

// Member is one roster entry. PersonaRef is the typed reference the member
// was invited under; AccountID is its canonical resolution. BandEntityID is
// set only on Show sub-entries that are nested bands, and BandStatus carries
// that band's own status as loaded alongside the parent.
type Member struct {
	PersonaRef   string   `json:"personaRef"`
	AccountID    string   `json:"accountID"`
	Decision     Decision `json:"decision"`
	BandEntityID *string  `json:"bandEntityID,omitempty"`
	BandStatus   *Status  `json:"bandStatus,omitempty"`
}

// Approved reports whether this roster entry counts as approved in the
// outer consensus. A nested band must be internally active on top of its
// member-level approval.
func (m Member) Approved() bool {
	if m.Decision != DecisionApproved {
		return false
	}
	if m.BandEntityID != nil {
		return m.BandStatus != nil && *m.BandStatus == StatusActive
	}
	return true
}

// Entity is a collaborative record requiring multi-party approval before
// activation. Its consensus map is carried inside Members; status is always
// derived from it, never set independently.
type Entity struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	Status    Status     `json:"status"`
	Name      string     `json:"name"`
	CreatorID string     `json:"creatorID"`
	Version   int64      `json:"version"`
	Members   []Member   `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`

	// Show only.
	VenueDecision     bool    `json:"venueDecision,omitempty"`
	VenueAccountID    *string `json:"venueAccountID,omitempty"`
	PromoterAccountID *string `json:"promoterAccountID,omitempty"`
}

// MemberByAccount returns the roster entry for a canonical account.
func (e Entity) MemberByAccount(accountID string) (Member, bool) {
	for _, m := range e.Members {
		if m.AccountID == accountID {
			return m, true
		}
	}
	return Member{}, false
}

// RecipientAccounts is the deduplicated canonical account set notified on
// activation: every member plus any bound external party.
func (e Entity) RecipientAccounts() []string {
	seen := make(map[string]bool)
	var recipients []string

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		recipients = append(recipients, id)
	}

	add(e.CreatorID)
	for _, m := range e.Members {
		add(m.AccountID)
	}
	if e.PromoterAccountID != nil {
		add(*e.PromoterAccountID)
	}
	if e.VenueAccountID != nil {
		add(*e.VenueAccountID)
	}
	return recipients
}
