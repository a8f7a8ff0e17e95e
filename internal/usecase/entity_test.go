package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

// --- mocks ---

type mockEntityRepo struct {
	entities map[string]domain.Entity
	parents  map[string][]string
	commits  int
	refreshs int
}

func newMockEntityRepo() *mockEntityRepo {
	return &mockEntityRepo{
		entities: make(map[string]domain.Entity),
		parents:  make(map[string][]string),
	}
}

func (m *mockEntityRepo) Create(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	m.entities[e.ID] = e
	return e, nil
}

func (m *mockEntityRepo) Get(ctx context.Context, id string) (domain.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return domain.Entity{}, domain.NotFoundError{Resource: "entity"}
	}

	// hydrate nested band statuses, like the real repository
	members := make([]domain.Member, len(e.Members))
	copy(members, e.Members)
	for i := range members {
		if members[i].BandEntityID == nil {
			continue
		}
		if band, ok := m.entities[*members[i].BandEntityID]; ok {
			status := band.Status
			members[i].BandStatus = &status
		}
	}
	e.Members = members
	return e, nil
}

func (m *mockEntityRepo) CommitDecision(ctx context.Context, commit DecisionCommit) (domain.Entity, error) {
	e, ok := m.entities[commit.EntityID]
	if !ok {
		return domain.Entity{}, domain.NotFoundError{Resource: "entity"}
	}
	if e.Version != commit.ExpectedVersion {
		return domain.Entity{}, domain.ConflictError{EntityID: commit.EntityID, ExpectedVersion: commit.ExpectedVersion}
	}

	members := make([]domain.Member, len(e.Members))
	copy(members, e.Members)
	e.Members = members

	if commit.VenueApproval {
		e.VenueDecision = true
	} else {
		for i := range e.Members {
			if e.Members[i].AccountID == commit.AccountID {
				e.Members[i].Decision = commit.Decision
			}
		}
	}
	e.Status = commit.Status
	e.Version++

	m.entities[e.ID] = e
	m.commits++
	return e, nil
}

func (m *mockEntityRepo) RefreshStatus(ctx context.Context, id string, status domain.Status, expectedVersion int64) (domain.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return domain.Entity{}, domain.NotFoundError{Resource: "entity"}
	}
	if e.Version != expectedVersion {
		return domain.Entity{}, domain.ConflictError{EntityID: id, ExpectedVersion: expectedVersion}
	}
	e.Status = status
	e.Version++
	m.entities[id] = e
	m.refreshs++
	return e, nil
}

func (m *mockEntityRepo) ParentShowIDs(ctx context.Context, bandEntityID string) ([]string, error) {
	return m.parents[bandEntityID], nil
}

type mockIdentity struct {
	accounts map[string]backline.Account
}

func (m *mockIdentity) Resolve(ctx context.Context, ref backline.PersonaRef) (backline.Account, error) {
	account, ok := m.accounts[ref.String()]
	if !ok {
		return backline.Account{}, fmt.Errorf("unknown persona %s", ref.String())
	}
	return account, nil
}

type mockFanout struct {
	batches []FanoutBatch
}

func (m *mockFanout) Deliver(ctx context.Context, batch FanoutBatch) []FanoutResult {
	m.batches = append(m.batches, batch)
	results := make([]FanoutResult, len(batch.Recipients))
	for i, recipient := range batch.Recipients {
		results[i] = FanoutResult{Recipient: recipient, NotificationID: "n-" + recipient}
	}
	return results
}

func (m *mockFanout) byType(t domain.NotificationType) []FanoutBatch {
	var matched []FanoutBatch
	for _, b := range m.batches {
		if b.Type == t {
			matched = append(matched, b)
		}
	}
	return matched
}

type mockPublisher struct {
	events []backline.Event
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event backline.Event) error {
	m.events = append(m.events, event)
	return nil
}

type mockNotifications struct {
	retired map[string][]string
}

func (m *mockNotifications) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return n, nil
}
func (m *mockNotifications) Get(ctx context.Context, id string) (domain.Notification, error) {
	return domain.Notification{}, domain.NotFoundError{Resource: "notification"}
}
func (m *mockNotifications) ListByRecipient(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error) {
	return nil, nil
}
func (m *mockNotifications) MarkHandled(ctx context.Context, id string) error { return nil }
func (m *mockNotifications) MarkInvitationHandled(ctx context.Context, entityID, accountID string) error {
	if m.retired == nil {
		m.retired = make(map[string][]string)
	}
	m.retired[entityID] = append(m.retired[entityID], accountID)
	return nil
}

func ref(kind, id string) backline.PersonaRef {
	return backline.PersonaRef{Kind: backline.PersonaKind(kind), ID: id}
}

type entityFixture struct {
	repo     *mockEntityRepo
	identity *mockIdentity
	fanout   *mockFanout
	signal   *mockPublisher
	notifs   *mockNotifications
	uc       *EntityUsecase
}

func newEntityFixture() *entityFixture {
	f := &entityFixture{
		repo: newMockEntityRepo(),
		identity: &mockIdentity{accounts: map[string]backline.Account{
			"artist:alice":   {ID: "acct-alice", DisplayName: "Alice"},
			"artist:bob":     {ID: "acct-bob", DisplayName: "Bob"},
			"artist:carol":   {ID: "acct-carol", DisplayName: "Carol"},
			"spotter:pete":   {ID: "acct-pete", DisplayName: "Pete"},
			"venue:basement": {ID: "acct-basement", DisplayName: "The Basement"},
		}},
		fanout: &mockFanout{},
		signal: &mockPublisher{},
		notifs: &mockNotifications{},
	}
	f.uc = NewEntityUsecase(f.repo, f.notifs, f.identity, f.fanout, f.signal)
	return f
}

func (f *entityFixture) createBand(t *testing.T, members ...string) domain.Entity {
	t.Helper()
	input := CreateInput{
		Type:       domain.EntityTypeBand,
		Name:       "Night Static",
		CreatorRef: ref("artist", "alice"),
	}
	for _, m := range members {
		input.Members = append(input.Members, MemberInput{Ref: ref("artist", m)})
	}
	entity, err := f.uc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return entity
}

// --- tests ---

func TestCreateSoloEntityActivatesImmediately(t *testing.T) {
	f := newEntityFixture()

	entity := f.createBand(t)

	if entity.Status != domain.StatusActive {
		t.Fatalf("expected active got %s", entity.Status)
	}
	activated := f.fanout.byType(domain.NotificationActivated)
	if len(activated) != 1 {
		t.Fatalf("expected 1 activation batch got %d", len(activated))
	}
	if len(activated[0].Recipients) != 1 || activated[0].Recipients[0] != "acct-alice" {
		t.Fatalf("expected activation for creator only, got %v", activated[0].Recipients)
	}
	if len(f.fanout.byType(domain.NotificationInvitation)) != 0 {
		t.Fatalf("solo entity must not send invitations")
	}
}

func TestCreateSendsInvitationsToInviteesOnly(t *testing.T) {
	f := newEntityFixture()

	entity := f.createBand(t, "bob", "carol")

	if entity.Status != domain.StatusPending {
		t.Fatalf("expected pending got %s", entity.Status)
	}
	creator, ok := entity.MemberByAccount("acct-alice")
	if !ok || creator.Decision != domain.DecisionApproved {
		t.Fatalf("creator must be pre-approved, got %+v", creator)
	}

	invitations := f.fanout.byType(domain.NotificationInvitation)
	if len(invitations) != 1 {
		t.Fatalf("expected 1 invitation batch got %d", len(invitations))
	}
	batch := invitations[0]
	if len(batch.Recipients) != 2 {
		t.Fatalf("expected 2 invitees got %v", batch.Recipients)
	}
	for _, r := range batch.Recipients {
		if r == "acct-alice" {
			t.Fatalf("creator must not be invited")
		}
	}
	if batch.ExpiresAt == nil {
		t.Fatalf("invitations must carry an expiry")
	}
}

func TestCreateSkipsDuplicateAccounts(t *testing.T) {
	f := newEntityFixture()
	f.identity.accounts["spotter:also-bob"] = backline.Account{ID: "acct-bob", DisplayName: "Bob"}

	entity, err := f.uc.Create(context.Background(), CreateInput{
		Type:       domain.EntityTypeBand,
		Name:       "Night Static",
		CreatorRef: ref("artist", "alice"),
		Members: []MemberInput{
			{Ref: ref("artist", "bob")},
			{Ref: ref("spotter", "also-bob")},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(entity.Members) != 2 {
		t.Fatalf("expected 2 roster entries got %d", len(entity.Members))
	}
}

func TestCreateShowRequiresVenue(t *testing.T) {
	f := newEntityFixture()

	_, err := f.uc.Create(context.Background(), CreateInput{
		Type:       domain.EntityTypeShow,
		Name:       "Friday Night",
		CreatorRef: ref("artist", "alice"),
	})
	if err == nil {
		t.Fatalf("expected error for show without venue")
	}
}

func TestApplyDecisionActivatesWhenAllApprove(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version)
	if err != nil {
		t.Fatalf("bob's approval failed: %v", err)
	}
	if entity.Status != domain.StatusPending {
		t.Fatalf("expected pending after first approval got %s", entity.Status)
	}

	entity, err = f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "carol"), domain.DecisionApproved, entity.Version)
	if err != nil {
		t.Fatalf("carol's approval failed: %v", err)
	}
	if entity.Status != domain.StatusActive {
		t.Fatalf("expected active after all approvals got %s", entity.Status)
	}

	activated := f.fanout.byType(domain.NotificationActivated)
	if len(activated) != 1 {
		t.Fatalf("expected exactly 1 activation broadcast got %d", len(activated))
	}
	recipients := activated[0].Recipients
	if len(recipients) != 3 {
		t.Fatalf("expected 3 unique recipients got %v", recipients)
	}
	seen := map[string]bool{}
	for _, r := range recipients {
		if seen[r] {
			t.Fatalf("duplicate recipient %s", r)
		}
		seen[r] = true
	}
}

func TestApplyDecisionRetiresInvitation(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob")

	if _, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version); err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	retired := f.notifs.retired[entity.ID]
	if len(retired) != 1 || retired[0] != "acct-bob" {
		t.Fatalf("expected bob's invitation retired, got %v", retired)
	}
}

func TestApplyDecisionIdempotentRepeat(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	first, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version)
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	commits := f.repo.commits

	second, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, first.Version)
	if err != nil {
		t.Fatalf("repeated approval must be a no-op: %v", err)
	}
	if second.Version != first.Version {
		t.Fatalf("no-op must not bump version: %d vs %d", second.Version, first.Version)
	}
	if f.repo.commits != commits {
		t.Fatalf("no-op must not write")
	}
}

func TestApplyDecisionReversalRefused(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version)
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	_, err = f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionRejected, entity.Version)
	if !errors.Is(err, domain.ErrAlreadyDecided) {
		t.Fatalf("expected AlreadyDecidedError got %v", err)
	}
}

func TestApplyDecisionNonMemberUnauthorized(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob")

	_, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "carol"), domain.DecisionApproved, entity.Version)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected UnauthorizedError got %v", err)
	}
}

func TestApplyDecisionStaleVersionConflicts(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	if _, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	// carol still holds the pre-approval version
	_, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "carol"), domain.DecisionApproved, entity.Version)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ConflictError got %v", err)
	}
}

func TestApplyDecisionTerminalEntityRefused(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version)
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	if entity.Status != domain.StatusActive {
		t.Fatalf("expected active got %s", entity.Status)
	}

	_, err = f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "alice"), domain.DecisionRejected, entity.Version)
	if !errors.Is(err, domain.ErrAlreadyDecided) {
		t.Fatalf("expected AlreadyDecidedError got %v", err)
	}
}

func TestApplyDecisionRejectionNotifiesCreator(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionRejected, entity.Version)
	if err != nil {
		t.Fatalf("rejection failed: %v", err)
	}
	if entity.Status != domain.StatusRejected {
		t.Fatalf("expected rejected got %s", entity.Status)
	}

	rejections := f.fanout.byType(domain.NotificationRejection)
	if len(rejections) != 1 {
		t.Fatalf("expected 1 rejection batch got %d", len(rejections))
	}
	if len(rejections[0].Recipients) != 1 || rejections[0].Recipients[0] != "acct-alice" {
		t.Fatalf("rejection must go to the creator, got %v", rejections[0].Recipients)
	}
}

func TestApplyDecisionAcceptanceNotifiesCreatorWhilePending(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob", "carol")

	if _, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionApproved, entity.Version); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	acceptances := f.fanout.byType(domain.NotificationAcceptance)
	if len(acceptances) != 1 {
		t.Fatalf("expected 1 acceptance batch got %d", len(acceptances))
	}
	if acceptances[0].Recipients[0] != "acct-alice" {
		t.Fatalf("acceptance must go to the creator, got %v", acceptances[0].Recipients)
	}
	if acceptances[0].SenderName != "Bob" {
		t.Fatalf("expected sender name Bob got %s", acceptances[0].SenderName)
	}
}

func TestShowWaitsForVenueApproval(t *testing.T) {
	f := newEntityFixture()

	show, err := f.uc.Create(context.Background(), CreateInput{
		Type:       domain.EntityTypeShow,
		Name:       "Friday Night",
		CreatorRef: ref("artist", "alice"),
		Members:    []MemberInput{{Ref: ref("artist", "bob")}},
		VenueRef:   &[]backline.PersonaRef{ref("venue", "basement")}[0],
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	show, err = f.uc.ApplyDecision(context.Background(), show.ID, ref("artist", "bob"), domain.DecisionApproved, show.Version)
	if err != nil {
		t.Fatalf("bob's approval failed: %v", err)
	}
	if show.Status != domain.StatusPending {
		t.Fatalf("show must stay pending until venue approves, got %s", show.Status)
	}

	show, err = f.uc.ApplyDecision(context.Background(), show.ID, ref("venue", "basement"), domain.DecisionApproved, show.Version)
	if err != nil {
		t.Fatalf("venue approval failed: %v", err)
	}
	if show.Status != domain.StatusActive {
		t.Fatalf("expected active after venue approval got %s", show.Status)
	}
	if !show.VenueDecision {
		t.Fatalf("venue decision must be recorded")
	}
}

func TestVenueRejectionRefused(t *testing.T) {
	f := newEntityFixture()

	show, err := f.uc.Create(context.Background(), CreateInput{
		Type:       domain.EntityTypeShow,
		Name:       "Friday Night",
		CreatorRef: ref("artist", "alice"),
		VenueRef:   &[]backline.PersonaRef{ref("venue", "basement")}[0],
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = f.uc.ApplyDecision(context.Background(), show.ID, ref("venue", "basement"), domain.DecisionRejected, show.Version)
	if !errors.Is(err, ErrVenueApproveOnly) {
		t.Fatalf("expected ErrVenueApproveOnly got %v", err)
	}
}

func TestResubmitClonesRejectedEntity(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionRejected, entity.Version)
	if err != nil {
		t.Fatalf("rejection failed: %v", err)
	}

	fresh, err := f.uc.Resubmit(context.Background(), entity.ID, ref("artist", "alice"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if fresh.ID == entity.ID {
		t.Fatalf("resubmission must mint a new entity")
	}
	if fresh.Status != domain.StatusPending {
		t.Fatalf("expected pending got %s", fresh.Status)
	}
	if fresh.Version != 1 {
		t.Fatalf("expected version 1 got %d", fresh.Version)
	}
	bob, _ := fresh.MemberByAccount("acct-bob")
	if bob.Decision != domain.DecisionUndecided {
		t.Fatalf("non-creator decisions must reset, got %s", bob.Decision)
	}

	original, _ := f.repo.Get(context.Background(), entity.ID)
	if original.Status != domain.StatusRejected {
		t.Fatalf("original must stay rejected, got %s", original.Status)
	}
}

func TestResubmitCreatorOnly(t *testing.T) {
	f := newEntityFixture()
	entity := f.createBand(t, "bob")

	entity, err := f.uc.ApplyDecision(context.Background(), entity.ID, ref("artist", "bob"), domain.DecisionRejected, entity.Version)
	if err != nil {
		t.Fatalf("rejection failed: %v", err)
	}

	_, err = f.uc.Resubmit(context.Background(), entity.ID, ref("artist", "bob"))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected UnauthorizedError got %v", err)
	}
}

func TestBandActivationRefreshesParentShow(t *testing.T) {
	f := newEntityFixture()

	band := f.createBand(t, "bob")

	bandID := band.ID
	show, err := f.uc.Create(context.Background(), CreateInput{
		Type:       domain.EntityTypeShow,
		Name:       "Friday Night",
		CreatorRef: ref("spotter", "pete"),
		Members:    []MemberInput{{Ref: ref("artist", "alice"), BandEntityID: &bandID}},
		VenueRef:   &[]backline.PersonaRef{ref("venue", "basement")}[0],
	})
	if err != nil {
		t.Fatalf("create show failed: %v", err)
	}
	f.repo.parents[bandID] = []string{show.ID}

	// band creator accepts the show slot on the band's behalf
	show, err = f.uc.ApplyDecision(context.Background(), show.ID, ref("artist", "alice"), domain.DecisionApproved, show.Version)
	if err != nil {
		t.Fatalf("band slot approval failed: %v", err)
	}
	show, err = f.uc.ApplyDecision(context.Background(), show.ID, ref("venue", "basement"), domain.DecisionApproved, show.Version)
	if err != nil {
		t.Fatalf("venue approval failed: %v", err)
	}
	if show.Status != domain.StatusPending {
		t.Fatalf("show must wait on the nested band, got %s", show.Status)
	}

	// the nested band finishes its own consensus
	if _, err := f.uc.ApplyDecision(context.Background(), bandID, ref("artist", "bob"), domain.DecisionApproved, band.Version); err != nil {
		t.Fatalf("band approval failed: %v", err)
	}

	refreshed, _ := f.repo.Get(context.Background(), show.ID)
	if refreshed.Status != domain.StatusActive {
		t.Fatalf("show must activate once the nested band is active, got %s", refreshed.Status)
	}
	if f.repo.refreshs == 0 {
		t.Fatalf("expected a parent refresh write")
	}
}
