package dialog

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/elektromontazh/orderbot/internal/domain"
)

type fakeSender struct {
	prompts []Prompt
}

func (f *fakeSender) SendPrompt(_ context.Context, _ int64, p Prompt) error {
	f.prompts = append(f.prompts, p)
	return nil
}

func (f *fakeSender) last(t *testing.T) Prompt {
	t.Helper()
	if len(f.prompts) == 0 {
		t.Fatal("no prompts sent")
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeFetcher struct {
	fail bool
}

func (f *fakeFetcher) Download(_ context.Context, fileRef, destPath string) error {
	if f.fail {
		return errors.New("download failed")
	}
	return os.WriteFile(destPath, []byte(fileRef), 0644)
}

// fakeCommitter mimics the orchestrator's teardown contract: the session
// leaves the store whatever the outcome.
type fakeCommitter struct {
	store     *Store
	committed []*domain.Session
	err       error
}

func (f *fakeCommitter) Commit(_ context.Context, sess *domain.Session) error {
	f.committed = append(f.committed, sess)
	f.store.Delete(sess.UserID)
	return f.err
}

func newTestEngine(t *testing.T) (*Engine, *Store, *fakeSender, *fakeCommitter) {
	t.Helper()
	sessions := NewStore()
	sender := &fakeSender{}
	committer := &fakeCommitter{store: sessions}
	engine := NewEngine(sessions, sender, &fakeFetcher{}, committer, t.TempDir())
	return engine, sessions, sender, committer
}

const testUser int64 = 42

func event(kind EventKind, text string) Event {
	return Event{Kind: kind, UserID: testUser, ChatID: testUser, DisplayName: "tester", Text: text}
}

func photoEvent(ref string) Event {
	ev := event(EventPhoto, "")
	ev.PhotoRef = ref
	return ev
}

// advanceToArea walks a session to the area step.
func advanceToArea(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	e.Handle(ctx, event(EventStart, ""))
	e.Handle(ctx, event(EventText, domain.WallBlockOrPanel.Label()))
	e.Handle(ctx, event(EventText, "No"))
}

// advanceToConfirm walks a session to the confirm step.
func advanceToConfirm(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	e.Handle(ctx, event(EventStart, ""))
	e.Handle(ctx, event(EventText, domain.WallReinforcedConcrete.Label()))
	e.Handle(ctx, event(EventText, "Yes"))
	e.Handle(ctx, event(EventText, "20"))
	e.Handle(ctx, event(EventDone, ""))
	e.Handle(ctx, event(EventText, "Ivan Petrov"))
	e.Handle(ctx, event(EventText, "+7 900 000-00-00"))
	e.Handle(ctx, event(EventText, "Moscow, Tverskaya 1"))
}

func TestStartCreatesFreshSession(t *testing.T) {
	t.Parallel()
	engine, sessions, sender, _ := newTestEngine(t)

	engine.Handle(context.Background(), event(EventStart, ""))

	sess := sessions.Get(testUser)
	if sess == nil {
		t.Fatal("expected session after start")
	}
	if sess.State != domain.StateSelectWall {
		t.Errorf("state = %s, want %s", sess.State, domain.StateSelectWall)
	}
	if got := len(sender.last(t).Choices); got != 3 {
		t.Errorf("wall prompt has %d choices, want 3", got)
	}
}

func TestStartResetsPriorSession(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	advanceToArea(t, engine)
	engine.Handle(ctx, event(EventText, "20"))

	engine.Handle(ctx, event(EventStart, ""))

	sess := sessions.Get(testUser)
	if sess.State != domain.StateSelectWall {
		t.Errorf("state = %s, want fresh session at %s", sess.State, domain.StateSelectWall)
	}
	if sess.AreaSqm != 0 || len(sess.Photos) != 0 {
		t.Errorf("expected no residual fields, got area=%g photos=%d", sess.AreaSqm, len(sess.Photos))
	}
}

func TestFrameSkipsChanneling(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.Handle(ctx, event(EventStart, ""))
	engine.Handle(ctx, event(EventText, domain.WallFrame.Label()))

	sess := sessions.Get(testUser)
	if sess.State != domain.StateEnterArea {
		t.Errorf("state = %s, want %s", sess.State, domain.StateEnterArea)
	}
	if sess.NeedsChanneling {
		t.Error("frame structure must force channeling off")
	}
}

func TestUnknownWallLabelReprompts(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.Handle(ctx, event(EventStart, ""))
	engine.Handle(ctx, event(EventText, "Brick"))

	if got := sessions.Get(testUser).State; got != domain.StateSelectWall {
		t.Errorf("state = %s, want %s", got, domain.StateSelectWall)
	}
}

func TestChannelingAnswerValidation(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.Handle(ctx, event(EventStart, ""))
	engine.Handle(ctx, event(EventText, domain.WallReinforcedConcrete.Label()))

	engine.Handle(ctx, event(EventText, "maybe"))
	if got := sessions.Get(testUser).State; got != domain.StateSelectChanneling {
		t.Errorf("state = %s, want %s after invalid answer", got, domain.StateSelectChanneling)
	}

	engine.Handle(ctx, event(EventText, "YES"))
	sess := sessions.Get(testUser)
	if sess.State != domain.StateEnterArea {
		t.Errorf("state = %s, want %s", sess.State, domain.StateEnterArea)
	}
	if !sess.NeedsChanneling {
		t.Error("expected channeling to be recorded")
	}
}

func TestAreaInputValidation(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	advanceToArea(t, engine)

	for _, bad := range []string{"abc", "-3", "0", ""} {
		engine.Handle(ctx, event(EventText, bad))
		if got := sessions.Get(testUser).State; got != domain.StateEnterArea {
			t.Errorf("input %q: state = %s, want %s", bad, got, domain.StateEnterArea)
		}
	}

	engine.Handle(ctx, event(EventText, "12,5"))
	sess := sessions.Get(testUser)
	if sess.State != domain.StateCollectPhotos {
		t.Fatalf("state = %s, want %s", sess.State, domain.StateCollectPhotos)
	}
	if sess.AreaSqm != 12.5 {
		t.Errorf("area = %g, want 12.5", sess.AreaSqm)
	}
}

func TestParseAreaSeparators(t *testing.T) {
	t.Parallel()

	comma, err := parseArea("12,5")
	if err != nil {
		t.Fatalf("parseArea(12,5): %v", err)
	}
	period, err := parseArea("12.5")
	if err != nil {
		t.Fatalf("parseArea(12.5): %v", err)
	}
	if comma != period {
		t.Errorf("comma and period separators disagree: %g vs %g", comma, period)
	}

	for _, bad := range []string{"-3", "abc", "NaN", "+Inf", "0"} {
		if _, err := parseArea(bad); err == nil {
			t.Errorf("parseArea(%q): expected error", bad)
		}
	}
}

func TestPhotoLimit(t *testing.T) {
	t.Parallel()
	engine, sessions, sender, _ := newTestEngine(t)
	ctx := context.Background()

	advanceToArea(t, engine)
	engine.Handle(ctx, event(EventText, "20"))

	for i := 0; i < domain.MaxPhotos; i++ {
		engine.Handle(ctx, photoEvent("photo"))
	}
	sess := sessions.Get(testUser)
	if len(sess.Photos) != domain.MaxPhotos {
		t.Fatalf("photos = %d, want %d", len(sess.Photos), domain.MaxPhotos)
	}

	engine.Handle(ctx, photoEvent("photo"))
	sess = sessions.Get(testUser)
	if len(sess.Photos) != domain.MaxPhotos {
		t.Errorf("6th photo mutated the session: photos = %d", len(sess.Photos))
	}
	if sess.State != domain.StateCollectPhotos {
		t.Errorf("state = %s, want %s", sess.State, domain.StateCollectPhotos)
	}
	if !strings.Contains(sender.last(t).Text, "maximum") {
		t.Errorf("expected limit warning, got %q", sender.last(t).Text)
	}
}

func TestDoneAdvancesWithZeroPhotos(t *testing.T) {
	t.Parallel()
	engine, sessions, _, _ := newTestEngine(t)
	ctx := context.Background()

	advanceToArea(t, engine)
	engine.Handle(ctx, event(EventText, "20"))
	engine.Handle(ctx, event(EventDone, ""))

	if got := sessions.Get(testUser).State; got != domain.StateEnterName {
		t.Errorf("state = %s, want %s", got, domain.StateEnterName)
	}
}

func TestFailedDownloadLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()
	sessions := NewStore()
	sender := &fakeSender{}
	committer := &fakeCommitter{store: sessions}
	engine := NewEngine(sessions, sender, &fakeFetcher{fail: true}, committer, t.TempDir())
	ctx := context.Background()

	engine.Handle(ctx, event(EventStart, ""))
	engine.Handle(ctx, event(EventText, domain.WallFrame.Label()))
	engine.Handle(ctx, event(EventText, "20"))
	engine.Handle(ctx, photoEvent("photo"))

	sess := sessions.Get(testUser)
	if len(sess.Photos) != 0 {
		t.Errorf("photos = %d, want 0 after failed download", len(sess.Photos))
	}
	if sess.State != domain.StateCollectPhotos {
		t.Errorf("state = %s, want %s", sess.State, domain.StateCollectPhotos)
	}
}

func TestPriceComputedAtAddressStep(t *testing.T) {
	t.Parallel()
	engine, sessions, sender, _ := newTestEngine(t)

	advanceToConfirm(t, engine)

	sess := sessions.Get(testUser)
	if !sess.PriceSet {
		t.Fatal("expected price to be frozen at the address step")
	}
	if sess.TotalPrice != 95000 {
		t.Errorf("total = %g, want 95000", sess.TotalPrice)
	}
	if !strings.Contains(sender.last(t).Text, "95000.00") {
		t.Errorf("summary does not show the total: %q", sender.last(t).Text)
	}
}

func TestConfirmCommitsSession(t *testing.T) {
	t.Parallel()
	engine, sessions, sender, committer := newTestEngine(t)
	ctx := context.Background()

	advanceToConfirm(t, engine)
	engine.Handle(ctx, event(EventText, confirmLabel))

	if len(committer.committed) != 1 {
		t.Fatalf("committed %d sessions, want 1", len(committer.committed))
	}
	sess := committer.committed[0]
	if sess.TotalPrice != 95000 {
		t.Errorf("committed total = %g, want the displayed 95000", sess.TotalPrice)
	}
	if sess.DisplayName != "tester" {
		t.Errorf("display name = %q, want tester", sess.DisplayName)
	}
	if sessions.Get(testUser) != nil {
		t.Error("session should be gone after commit")
	}
	if !strings.Contains(sender.last(t).Text, "submitted") {
		t.Errorf("expected success acknowledgment, got %q", sender.last(t).Text)
	}
}

func TestConfirmNonAffirmativeCancels(t *testing.T) {
	t.Parallel()
	engine, sessions, _, committer := newTestEngine(t)
	ctx := context.Background()

	advanceToConfirm(t, engine)
	engine.Handle(ctx, event(EventText, "hmm"))

	if len(committer.committed) != 0 {
		t.Errorf("committed %d sessions, want 0", len(committer.committed))
	}
	if sessions.Get(testUser) != nil {
		t.Error("session should be discarded on non-affirmative confirm input")
	}
}

func TestCommitFailureSendsGenericNotice(t *testing.T) {
	t.Parallel()
	engine, _, sender, committer := newTestEngine(t)
	committer.err = errors.New("ledger exploded: disk on fire")
	ctx := context.Background()

	advanceToConfirm(t, engine)
	engine.Handle(ctx, event(EventText, confirmLabel))

	last := sender.last(t).Text
	if !strings.Contains(last, "went wrong") {
		t.Errorf("expected generic failure notice, got %q", last)
	}
	if strings.Contains(last, "disk on fire") {
		t.Errorf("internal error detail leaked to user: %q", last)
	}
}

func TestCancelFromEveryState(t *testing.T) {
	t.Parallel()

	steps := [][]Event{
		{event(EventStart, "")},
		{event(EventStart, ""), event(EventText, domain.WallReinforcedConcrete.Label())},
		{event(EventStart, ""), event(EventText, domain.WallReinforcedConcrete.Label()), event(EventText, "Yes")},
		{event(EventStart, ""), event(EventText, domain.WallReinforcedConcrete.Label()), event(EventText, "Yes"), event(EventText, "20")},
		{event(EventStart, ""), event(EventText, domain.WallReinforcedConcrete.Label()), event(EventText, "Yes"), event(EventText, "20"), event(EventDone, "")},
	}

	for i, walk := range steps {
		engine, sessions, _, _ := newTestEngine(t)
		ctx := context.Background()
		for _, ev := range walk {
			engine.Handle(ctx, ev)
		}

		engine.Handle(ctx, event(EventCancel, ""))
		if sessions.Get(testUser) != nil {
			t.Errorf("walk %d: session should be removed on cancel", i)
		}

		engine.Handle(ctx, event(EventStart, ""))
		sess := sessions.Get(testUser)
		if sess == nil || sess.State != domain.StateSelectWall {
			t.Errorf("walk %d: restart after cancel should yield a fresh session", i)
		}
	}
}

func TestEventWithoutSessionPromptsStart(t *testing.T) {
	t.Parallel()
	engine, _, sender, _ := newTestEngine(t)

	engine.Handle(context.Background(), event(EventText, "hello"))

	if !strings.Contains(sender.last(t).Text, "/start") {
		t.Errorf("expected start hint, got %q", sender.last(t).Text)
	}
}
