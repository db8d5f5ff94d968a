// Package dialog implements the intake conversation state machine.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/elektromontazh/orderbot/internal/domain"
	"github.com/elektromontazh/orderbot/internal/pricing"
)

// EventKind classifies an inbound transport event.
type EventKind int

const (
	EventStart EventKind = iota
	EventText
	EventPhoto
	EventDone
	EventCancel
)

// Event is one inbound user action, normalized by the transport.
type Event struct {
	Kind        EventKind
	UserID      int64
	ChatID      int64
	DisplayName string
	Text        string
	PhotoRef    string
}

// Prompt is an outbound message. Choices render as a one-time reply
// keyboard; RemoveKeyboard clears any previous keyboard.
type Prompt struct {
	Text           string
	Choices        []string
	RemoveKeyboard bool
}

// Sender delivers prompts back to the user.
type Sender interface {
	SendPrompt(ctx context.Context, chatID int64, p Prompt) error
}

// FileFetcher retrieves attachment content into a local file.
type FileFetcher interface {
	Download(ctx context.Context, fileRef, destPath string) error
}

// Committer runs the commit pipeline for a confirmed session. It owns
// cleanup and session teardown regardless of outcome.
type Committer interface {
	Commit(ctx context.Context, sess *domain.Session) error
}

const (
	confirmLabel = "Confirm"
	cancelLabel  = "Cancel"
)

// Engine drives sessions through the step sequence. All validation is
// inline: bad input re-prompts at the same state without mutating the
// session.
type Engine struct {
	sessions  *Store
	sender    Sender
	files     FileFetcher
	committer Committer
	filesDir  string
}

// NewEngine creates a dialog engine.
func NewEngine(sessions *Store, sender Sender, files FileFetcher, committer Committer, filesDir string) *Engine {
	return &Engine{
		sessions:  sessions,
		sender:    sender,
		files:     files,
		committer: committer,
		filesDir:  filesDir,
	}
}

// Handle processes one inbound event. Events for the same user are
// serialized through the store's key-level lock; callers may invoke it
// from one goroutine per event.
func (e *Engine) Handle(ctx context.Context, ev Event) {
	unlock := e.sessions.LockUser(ev.UserID)
	defer unlock()

	switch ev.Kind {
	case EventStart:
		e.start(ctx, ev)
		return
	case EventCancel:
		e.cancel(ctx, ev)
		return
	}

	sess := e.sessions.Get(ev.UserID)
	if sess == nil {
		e.send(ctx, ev.ChatID, Prompt{Text: "Send /start to begin a new request."})
		return
	}

	switch sess.State {
	case domain.StateSelectWall:
		e.selectWall(ctx, sess, ev)
	case domain.StateSelectChanneling:
		e.selectChanneling(ctx, sess, ev)
	case domain.StateEnterArea:
		e.enterArea(ctx, sess, ev)
	case domain.StateCollectPhotos:
		e.collectPhotos(ctx, sess, ev)
	case domain.StateEnterName:
		e.enterText(ctx, sess, ev, &sess.FullName, domain.StateEnterPhone,
			Prompt{Text: "Enter a contact phone number:"})
	case domain.StateEnterPhone:
		e.enterText(ctx, sess, ev, &sess.Phone, domain.StateEnterAddress,
			Prompt{Text: "Enter the site address for the installation work:"})
	case domain.StateEnterAddress:
		e.enterAddress(ctx, sess, ev)
	case domain.StateConfirm:
		e.confirm(ctx, sess, ev)
	}
}

// start resets any prior session for the user and begins a fresh dialog.
func (e *Engine) start(ctx context.Context, ev Event) {
	e.sessions.Put(domain.NewSession(ev.UserID, ev.ChatID))
	e.send(ctx, ev.ChatID, wallPrompt())
}

func (e *Engine) cancel(ctx context.Context, ev Event) {
	e.sessions.Delete(ev.UserID)
	e.send(ctx, ev.ChatID, Prompt{Text: "Request cancelled.", RemoveKeyboard: true})
}

func (e *Engine) selectWall(ctx context.Context, sess *domain.Session, ev Event) {
	wall, ok := domain.ParseWallType(ev.Text)
	if ev.Kind != EventText || !ok {
		e.send(ctx, ev.ChatID, wallPrompt())
		return
	}

	sess.WallType = wall
	if wall == domain.WallFrame {
		// Channeling is not selectable for frame structures.
		sess.NeedsChanneling = false
		sess.State = domain.StateEnterArea
		e.send(ctx, ev.ChatID, areaPrompt())
		return
	}

	sess.State = domain.StateSelectChanneling
	e.send(ctx, ev.ChatID, Prompt{
		Text:    "Is cable channeling required?",
		Choices: []string{"Yes", "No"},
	})
}

func (e *Engine) selectChanneling(ctx context.Context, sess *domain.Session, ev Event) {
	answer, ok := parseYesNo(ev.Text)
	if ev.Kind != EventText || !ok {
		e.send(ctx, ev.ChatID, Prompt{Text: "Please answer Yes or No.", Choices: []string{"Yes", "No"}})
		return
	}

	sess.NeedsChanneling = answer
	sess.State = domain.StateEnterArea
	e.send(ctx, ev.ChatID, areaPrompt())
}

func (e *Engine) enterArea(ctx context.Context, sess *domain.Session, ev Event) {
	area, err := parseArea(ev.Text)
	if ev.Kind != EventText || err != nil {
		e.send(ctx, ev.ChatID, Prompt{Text: "Please enter a valid positive number."})
		return
	}

	sess.AreaSqm = area
	sess.Photos = []string{}
	sess.State = domain.StateCollectPhotos
	e.send(ctx, ev.ChatID, Prompt{Text: "Send up to 5 photos of the site. Send /done when finished."})
}

func (e *Engine) collectPhotos(ctx context.Context, sess *domain.Session, ev Event) {
	switch ev.Kind {
	case EventPhoto:
		if !sess.CanAddPhoto() {
			e.send(ctx, ev.ChatID, Prompt{Text: fmt.Sprintf("A maximum of %d photos is allowed.", domain.MaxPhotos)})
			return
		}
		dest := filepath.Join(e.filesDir, fmt.Sprintf("%d_%d.jpg", sess.UserID, len(sess.Photos)))
		if err := e.files.Download(ctx, ev.PhotoRef, dest); err != nil {
			slog.Error("Failed to download photo", "user_id", sess.UserID, "error", err)
			e.send(ctx, ev.ChatID, Prompt{Text: "Could not save that photo, please try again."})
			return
		}
		sess.Photos = append(sess.Photos, dest)
	case EventDone:
		sess.State = domain.StateEnterName
		e.send(ctx, ev.ChatID, Prompt{Text: "Enter your full name:"})
	default:
		e.send(ctx, ev.ChatID, Prompt{Text: "Send a photo, or /done when finished."})
	}
}

// enterText handles the free-text steps: any non-empty input is stored
// verbatim and the dialog advances unconditionally.
func (e *Engine) enterText(ctx context.Context, sess *domain.Session, ev Event, field *string, next domain.State, nextPrompt Prompt) {
	if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
		e.send(ctx, ev.ChatID, Prompt{Text: "Please enter a text reply."})
		return
	}
	*field = ev.Text
	sess.State = next
	e.send(ctx, ev.ChatID, nextPrompt)
}

func (e *Engine) enterAddress(ctx context.Context, sess *domain.Session, ev Event) {
	if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
		e.send(ctx, ev.ChatID, Prompt{Text: "Please enter a text reply."})
		return
	}
	sess.Address = ev.Text

	// The quote is computed exactly once, here, so the committed total is
	// the total the user confirmed.
	if !sess.PriceSet {
		sess.TotalPrice = pricing.Quote(sess.WallType, sess.NeedsChanneling, sess.AreaSqm)
		sess.PriceSet = true
	}
	sess.State = domain.StateConfirm
	e.send(ctx, ev.ChatID, summaryPrompt(sess))
}

// confirm is binary: the exact affirmative label commits, anything else
// cancels the request.
func (e *Engine) confirm(ctx context.Context, sess *domain.Session, ev Event) {
	if ev.Kind != EventText || ev.Text != confirmLabel {
		e.cancel(ctx, ev)
		return
	}

	sess.DisplayName = ev.DisplayName
	if sess.DisplayName == "" {
		sess.DisplayName = "unknown"
	}

	if err := e.committer.Commit(ctx, sess); err != nil {
		slog.Error("Commit failed", "user_id", sess.UserID, "error", err)
		e.send(ctx, ev.ChatID, Prompt{
			Text:           "Something went wrong while submitting your request. Please /start again.",
			RemoveKeyboard: true,
		})
		return
	}
	e.send(ctx, ev.ChatID, Prompt{Text: "Your request has been submitted!", RemoveKeyboard: true})
}

func (e *Engine) send(ctx context.Context, chatID int64, p Prompt) {
	if err := e.sender.SendPrompt(ctx, chatID, p); err != nil {
		slog.Warn("Failed to send prompt", "chat_id", chatID, "error", err)
	}
}

func wallPrompt() Prompt {
	return Prompt{Text: "Select the wall type:", Choices: domain.WallTypeLabels()}
}

func areaPrompt() Prompt {
	return Prompt{Text: "Enter the room area in m²:", RemoveKeyboard: true}
}

func summaryPrompt(sess *domain.Session) Prompt {
	channeling := "no"
	if sess.NeedsChanneling {
		channeling = "yes"
	}
	text := fmt.Sprintf(
		"Please check your request:\n\n"+
			"Wall type: %s\nChanneling: %s\nArea: %g m²\n"+
			"Full name: %s\nPhone: %s\nAddress: %s\n"+
			"Total: %.2f\n\nSubmit the request?",
		sess.WallType.Label(), channeling, sess.AreaSqm,
		sess.FullName, sess.Phone, sess.Address, sess.TotalPrice,
	)
	return Prompt{Text: text, Choices: []string{confirmLabel, cancelLabel}}
}

// parseArea accepts a positive decimal with either comma or period as the
// decimal separator.
func parseArea(text string) (float64, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("parse area %q: %w", text, err)
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("area must be a positive number, got %q", text)
	}
	return v, nil
}

func parseYesNo(text string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}
