package render

import (
	"strings"
	"testing"

	"github.com/totegamma/backline/internal/domain"
)

func TestRenderDeterministic(t *testing.T) {
	input := Input{
		Type:       domain.NotificationInvitation,
		SenderName: "Alice",
		EntityType: domain.EntityTypeBand,
		EntityName: "Night Static",
	}
	first := Render(input)
	second := Render(input)
	if first != second {
		t.Fatalf("identical inputs must render identically: %+v vs %+v", first, second)
	}
}

func TestRenderPerType(t *testing.T) {
	cases := []struct {
		name   string
		input  Input
		wantIn string
	}{
		{
			name:   "invitation names the entity",
			input:  Input{Type: domain.NotificationInvitation, EntityType: domain.EntityTypeAlbum, EntityName: "Basement Tapes"},
			wantIn: "Basement Tapes",
		},
		{
			name:   "acceptance names the sender",
			input:  Input{Type: domain.NotificationAcceptance, SenderName: "Bob", EntityType: domain.EntityTypeBand, EntityName: "Night Static"},
			wantIn: "Bob",
		},
		{
			name:   "activation mentions the entity kind",
			input:  Input{Type: domain.NotificationActivated, EntityType: domain.EntityTypeShow, EntityName: "Friday Night"},
			wantIn: "show",
		},
		{
			name:   "rejection names the entity",
			input:  Input{Type: domain.NotificationRejection, EntityType: domain.EntityTypeBand, EntityName: "Night Static"},
			wantIn: "Night Static",
		},
		{
			name:   "backline application names the applicant act",
			input:  Input{Type: domain.NotificationBacklinePosted, SenderName: "Alice", EntityType: domain.EntityTypeShow, EntityName: "Alice Unplugged"},
			wantIn: "Alice Unplugged",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Render(tc.input)
			if out.Title == "" || out.Message == "" {
				t.Fatalf("expected copy for %s, got %+v", tc.input.Type, out)
			}
			if !strings.Contains(out.Title+out.Message, tc.wantIn) {
				t.Fatalf("expected %q in rendered copy, got %+v", tc.wantIn, out)
			}
		})
	}
}

func TestRenderAnonymousSender(t *testing.T) {
	out := Render(Input{
		Type:       domain.NotificationAcceptance,
		EntityType: domain.EntityTypeBand,
		EntityName: "Night Static",
	})
	if !strings.Contains(out.Message, "A collaborator") {
		t.Fatalf("expected anonymous sender fallback, got %q", out.Message)
	}
}

func TestRenderUnknownTypeFallsBack(t *testing.T) {
	out := Render(Input{Type: domain.NotificationType("mystery")})
	if out.Title != genericTitle || out.Message != genericBody {
		t.Fatalf("expected generic fallback, got %+v", out)
	}
}
