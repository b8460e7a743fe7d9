package diplomacy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"civ-server/internal/civ"
	"civ-server/internal/shared/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct{}

func (fakeCatalog) GetCivilizations(_ context.Context) ([]civ.Civilization, error) {
	return []civ.Civilization{
		{ID: 1, Name: "Rome", Personality: "authoritative"},
		{ID: 2, Name: "Greece", Personality: "thoughtful"},
	}, nil
}

type fakeResponder struct {
	reply string
	err   error
	calls int
}

func (f *fakeResponder) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newTestService(responder Responder) *Service {
	return NewService(NewMemoryStore(), fakeCatalog{}, responder, 10, 5, 5, testLogger())
}

func TestFirstEncounterOpensSession(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	session, greeting, err := svc.FirstEncounter(ctx, 1, 1, 1)
	if err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}

	if session.RelationshipScore != 30 {
		t.Errorf("initial score = %d, want 30", session.RelationshipScore)
	}
	if session.RemainingInteractions != 10 {
		t.Errorf("initial budget = %d, want 10", session.RemainingInteractions)
	}
	if !session.FirstEncounter {
		t.Error("session not marked as first encounter")
	}
	if !strings.Contains(greeting, "Rome") {
		t.Errorf("greeting %q does not name the civilization", greeting)
	}

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 1); errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("repeat FirstEncounter() error = %v, want conflict", err)
	}
}

func TestSendMessageUsesResponder(t *testing.T) {
	responder := &fakeResponder{reply: "Rome greets you."}
	svc := newTestService(responder)
	ctx := context.Background()

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 1); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}

	session, reply, err := svc.SendMessage(ctx, 1, 1, 1, 3, "We propose peace and trade.")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if reply != "Rome greets you." {
		t.Errorf("reply = %q, want responder output", reply)
	}
	if responder.calls != 1 {
		t.Errorf("responder called %d times, want 1", responder.calls)
	}
	if session.RemainingInteractions != 9 {
		t.Errorf("budget = %d, want 9", session.RemainingInteractions)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("message count = %d, want 2", len(session.Messages))
	}
	if session.Messages[0].Role != RoleUser || session.Messages[1].Role != RoleAssistant {
		t.Errorf("message roles = %s/%s, want user/assistant", session.Messages[0].Role, session.Messages[1].Role)
	}

	// "peace" and "trade" each add 4, plus 1 for the message itself.
	if session.RelationshipScore != 39 {
		t.Errorf("score = %d, want 39", session.RelationshipScore)
	}
}

func TestSendMessageFallbackOnResponderError(t *testing.T) {
	svc := newTestService(&fakeResponder{err: fmt.Errorf("api down")})
	ctx := context.Background()

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 1); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}

	_, reply, err := svc.SendMessage(ctx, 1, 1, 1, 3, "Hello.")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply == "" {
		t.Error("no fallback reply when responder failed")
	}
}

func TestBudgetDrainAndCooldown(t *testing.T) {
	svc := NewService(NewMemoryStore(), fakeCatalog{}, nil, 2, 5, 5, testLogger())
	ctx := context.Background()

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 2); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}

	if _, _, err := svc.SendMessage(ctx, 1, 1, 2, 7, "Hello."); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	session, _, err := svc.SendMessage(ctx, 1, 1, 2, 7, "Goodbye.")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if session.RemainingInteractions != 0 {
		t.Errorf("budget = %d, want 0", session.RemainingInteractions)
	}
	if session.ResumeTurn == nil || *session.ResumeTurn != 12 {
		t.Errorf("resume turn = %v, want 12", session.ResumeTurn)
	}

	if _, _, err := svc.SendMessage(ctx, 1, 1, 2, 8, "Anyone there?"); errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("SendMessage() during cooldown error = %v, want conflict", err)
	}

	// Before the cooldown turn the session cannot resume.
	if _, err := svc.Resume(ctx, 1, 1, 2, 11); errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("Resume() before cooldown error = %v, want conflict", err)
	}

	resumed, err := svc.Resume(ctx, 1, 1, 2, 12)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.RemainingInteractions != 5 {
		t.Errorf("budget after resume = %d, want 5", resumed.RemainingInteractions)
	}
	if resumed.ResumeTurn != nil {
		t.Errorf("resume turn = %d after resume, want cleared", *resumed.ResumeTurn)
	}
	if resumed.FirstEncounter {
		t.Error("session still marked as first encounter after resume")
	}
}

func TestScoreClamping(t *testing.T) {
	hostile := make([]Message, 0, 40)
	for i := 0; i < 40; i++ {
		hostile = append(hostile, Message{Role: RoleUser, Content: "war attack destroy betray"})
	}
	if got := scoreRelationship(hostile); got != 0 {
		t.Errorf("hostile conversation score = %d, want 0", got)
	}

	friendly := make([]Message, 0, 40)
	for i := 0; i < 40; i++ {
		friendly = append(friendly, Message{Role: RoleUser, Content: "peace trade alliance friend"})
	}
	if got := scoreRelationship(friendly); got != 100 {
		t.Errorf("friendly conversation score = %d, want 100", got)
	}

	if got := scoreRelationship(nil); got != 30 {
		t.Errorf("empty conversation score = %d, want 30", got)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 1); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, _, err := svc.SendMessage(ctx, 1, 1, 1, 2, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}

	messages, score, err := svc.History(ctx, 1, 1, 1, 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(messages) != 3 {
		t.Errorf("history length = %d, want 3", len(messages))
	}
	if score < 0 || score > 100 {
		t.Errorf("score %d out of bounds", score)
	}

	// Newest message last.
	if !strings.Contains(messages[len(messages)-1].Content, "") {
		t.Error("unexpected empty message")
	}

	if _, _, err := svc.History(ctx, 1, 9, 9, 10); errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("History(unknown session) error = %v, want not found", err)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &Session{ID: "s1", GameID: 1, PlayerID: 1, CivilizationID: 1, RelationshipScore: 30, LastInteraction: time.Now()}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Get(ctx, 1, 1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	loaded.RelationshipScore = 99

	reloaded, err := store.Get(ctx, 1, 1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reloaded.RelationshipScore != 30 {
		t.Errorf("store leaked a mutable reference: score = %d, want 30", reloaded.RelationshipScore)
	}

	other, err := store.Get(ctx, 2, 1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if other != nil {
		t.Error("session leaked across games")
	}
}

func TestStateJSONSummarizesGame(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if _, _, err := svc.FirstEncounter(ctx, 1, 1, 1); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}
	if _, _, err := svc.FirstEncounter(ctx, 2, 1, 1); err != nil {
		t.Fatalf("FirstEncounter() error = %v", err)
	}

	data, err := svc.StateJSON(ctx, 1)
	if err != nil {
		t.Fatalf("StateJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"sessions"`) {
		t.Errorf("state JSON %s missing sessions key", data)
	}
	if strings.Count(string(data), `"civilization_id"`) != 1 {
		t.Errorf("state JSON %s should contain exactly the game's one session", data)
	}
}
