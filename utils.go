package backline

import (
	"fmt"
	"strings"
)

// ParsePersonaRef parses a "kind:id" actor reference.
func ParsePersonaRef(s string) (PersonaRef, error) {
	kind, id, found := strings.Cut(s, ":")
	if !found || id == "" {
		return PersonaRef{}, fmt.Errorf("invalid persona reference: %s", s)
	}

	switch PersonaKind(kind) {
	case PersonaSpotter, PersonaArtist, PersonaVenue:
		return PersonaRef{Kind: PersonaKind(kind), ID: id}, nil
	default:
		return PersonaRef{}, fmt.Errorf("unknown persona kind: %s", kind)
	}
}

// ComposePersonaRef is the inverse of ParsePersonaRef.
func ComposePersonaRef(kind PersonaKind, id string) string {
	return string(kind) + ":" + id
}

func (p PersonaRef) String() string {
	return ComposePersonaRef(p.Kind, p.ID)
}

// EntityTopic is the realtime channel carrying updates for one entity.
func EntityTopic(entityID string) string {
	return "entity:" + entityID
}

// AccountTopic is the realtime channel carrying notifications for one account.
func AccountTopic(accountID string) string {
	return "account:" + accountID
}
