package domain

const (
	RequesterPersonaCtxKey = "bl-requesterPersona"
	RequesterAccountCtxKey = "bl-requesterAccount"
)

const (
	RequesterPersonaHeader = "bl-requester-persona"
)

// Realtime event types published on committed writes.
const (
	EventEntityCreated     = "entity.created"
	EventEntityUpdated     = "entity.updated"
	EventEntityActivated   = "entity.activated"
	EventEntityRejected    = "entity.rejected"
	EventCandidateUpdated  = "candidate.updated"
	EventNotificationAdded = "notification.added"
)
