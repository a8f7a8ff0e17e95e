package usecase

import (
	"github.com/totegamma/backline/internal/domain"
)

// Evaluate derives an entity's status from its consensus roster. It is the
// only place status is computed; callers persist whatever it returns.
//
// An empty roster activates trivially. Otherwise the entity is active when
// every roster entry counts as approved (for shows this additionally
// requires the venue gate), rejected as soon as any entry is rejected, and
// pending in between. A nested band sub-entry counts as approved only when
// its member-level decision is approved and the band itself is internally
// active; a band that is internally rejected can never approve, so it counts
// as rejected in the outer roster.
func Evaluate(e domain.Entity) domain.Status {
	venueGate := e.Type != domain.EntityTypeShow || e.VenueDecision

	if len(e.Members) == 0 {
		if venueGate {
			return domain.StatusActive
		}
		return domain.StatusPending
	}

	allApproved := true
	anyRejected := false
	for _, m := range e.Members {
		if !m.Approved() {
			allApproved = false
		}
		if m.Decision == domain.DecisionRejected {
			anyRejected = true
		}
		if m.BandEntityID != nil && m.BandStatus != nil && *m.BandStatus == domain.StatusRejected {
			anyRejected = true
		}
	}

	if allApproved && venueGate {
		return domain.StatusActive
	}
	if anyRejected {
		return domain.StatusRejected
	}
	return domain.StatusPending
}
