package backline

import (
	"time"
)

// PersonaKind is the typed capability through which one canonical account acts.
type PersonaKind string

const (
	PersonaSpotter PersonaKind = "spotter"
	PersonaArtist  PersonaKind = "artist"
	PersonaVenue   PersonaKind = "venue"
)

// PersonaRef is a typed actor reference. It is never a valid notification
// recipient; the identity resolver maps it to a canonical account first.
type PersonaRef struct {
	Kind PersonaKind `json:"kind"`
	ID   string      `json:"id"`
}

// Account is the canonical identity record returned by the identity resolver.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Event is the realtime payload published after every committed write.
// Version carries the entity's version after the write so that subscribers
// can apply events idempotently and in non-decreasing version order.
type Event struct {
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
	EntityID  string    `json:"entityID,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"body,omitempty"`
}

// BacklineEndpoint describes one exposed operation in the well-known document.
type BacklineEndpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

// WellKnownBackline is served at /.well-known/backline for discovery.
type WellKnownBackline struct {
	Version   string                      `json:"version"`
	Domain    string                      `json:"domain"`
	Endpoints map[string]BacklineEndpoint `json:"endpoints"`
}
