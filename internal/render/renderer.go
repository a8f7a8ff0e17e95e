package render

import (
	"fmt"

	"github.com/totegamma/backline/internal/domain"
)

const (
	genericTitle = "Notification"
	genericBody  = "You have a new notification."
)

// Input is one render request for a notification about an entity event.
type Input struct {
	Type       domain.NotificationType
	SenderName string
	EntityType domain.EntityType
	EntityName string
}

// Output is the copy stored on a materialized notification.
type Output struct {
	Title   string
	Message string
}

// Render produces deterministic copy for one notification. Text depends only
// on the input values so that identical events always render identically.
func Render(input Input) Output {
	entity := entityLabel(input.EntityType)
	sender := input.SenderName
	if sender == "" {
		sender = "A collaborator"
	}

	switch input.Type {
	case domain.NotificationInvitation:
		return Output{
			Title:   fmt.Sprintf("Invitation: %s", input.EntityName),
			Message: fmt.Sprintf("You have been invited to join the %s %q. Approve or decline to respond.", entity, input.EntityName),
		}
	case domain.NotificationAcceptance:
		return Output{
			Title:   fmt.Sprintf("%s accepted", sender),
			Message: fmt.Sprintf("%s approved the %s %q.", sender, entity, input.EntityName),
		}
	case domain.NotificationRejection:
		return Output{
			Title:   fmt.Sprintf("%s was declined", input.EntityName),
			Message: fmt.Sprintf("The %s %q was declined by a member and will not go live.", entity, input.EntityName),
		}
	case domain.NotificationActivated:
		return Output{
			Title:   fmt.Sprintf("%s is live", input.EntityName),
			Message: fmt.Sprintf("Everyone approved: the %s %q is now active.", entity, input.EntityName),
		}
	case domain.NotificationBacklinePosted:
		return Output{
			Title:   fmt.Sprintf("New backline applicant: %s", input.EntityName),
			Message: fmt.Sprintf("%s applied for the backline slot as %q.", sender, input.EntityName),
		}
	default:
		return Output{Title: genericTitle, Message: genericBody}
	}
}

func entityLabel(t domain.EntityType) string {
	switch t {
	case domain.EntityTypeBand:
		return "band"
	case domain.EntityTypeAlbum:
		return "album"
	case domain.EntityTypeBacklineApplication:
		return "backline application"
	case domain.EntityTypeShow:
		return "show"
	default:
		return "project"
	}
}
