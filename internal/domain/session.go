package domain

import (
	"time"
)

// State identifies the current step of an intake dialog.
type State string

const (
	StateSelectWall       State = "select_wall"
	StateSelectChanneling State = "select_channeling"
	StateEnterArea        State = "enter_area"
	StateCollectPhotos    State = "collect_photos"
	StateEnterName        State = "enter_name"
	StateEnterPhone       State = "enter_phone"
	StateEnterAddress     State = "enter_address"
	StateConfirm          State = "confirm"
)

// MaxPhotos is the hard cap on photo attachments per session.
const MaxPhotos = 5

// Session holds the in-progress state of one user's intake dialog.
// It lives only between a start event and a terminal transition.
type Session struct {
	UserID          int64
	ChatID          int64
	DisplayName     string
	State           State
	WallType        WallType
	NeedsChanneling bool
	AreaSqm         float64
	Photos          []string
	FullName        string
	Phone           string
	Address         string
	TotalPrice      float64
	PriceSet        bool
	CreatedAt       time.Time
}

// NewSession creates a fresh session positioned at the wall-type step.
func NewSession(userID, chatID int64) *Session {
	return &Session{
		UserID:    userID,
		ChatID:    chatID,
		State:     StateSelectWall,
		CreatedAt: time.Now(),
	}
}

// CanAddPhoto reports whether another photo fits under the cap.
func (s *Session) CanAddPhoto() bool {
	return len(s.Photos) < MaxPhotos
}

// Order flattens the session into an immutable order record.
func (s *Session) Order(now time.Time) *Order {
	return &Order{
		DisplayName: s.DisplayName,
		WallType:    s.WallType,
		Channeling:  s.NeedsChanneling,
		AreaSqm:     s.AreaSqm,
		FullName:    s.FullName,
		Phone:       s.Phone,
		Address:     s.Address,
		Total:       s.TotalPrice,
		CreatedAt:   now,
	}
}
