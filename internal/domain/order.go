// Package domain contains core domain types for the order intake bot.
package domain

import (
	"time"
)

// WallType identifies the wall construction of the work site.
type WallType string

const (
	WallReinforcedConcrete WallType = "reinforced_concrete"
	WallBlockOrPanel       WallType = "block_or_panel"
	WallFrame              WallType = "frame"
)

// Label returns the user-facing label for the wall type.
func (w WallType) Label() string {
	switch w {
	case WallReinforcedConcrete:
		return "Reinforced concrete"
	case WallBlockOrPanel:
		return "Block / panel"
	case WallFrame:
		return "Frame structure"
	}
	return string(w)
}

// WallTypeLabels lists the selectable labels in presentation order.
func WallTypeLabels() []string {
	return []string{
		WallReinforcedConcrete.Label(),
		WallBlockOrPanel.Label(),
		WallFrame.Label(),
	}
}

// ParseWallType maps a user-facing label back to its wall type.
func ParseWallType(label string) (WallType, bool) {
	for _, w := range []WallType{WallReinforcedConcrete, WallBlockOrPanel, WallFrame} {
		if label == w.Label() {
			return w, true
		}
	}
	return "", false
}

// Order is the flattened, immutable record of a committed session.
type Order struct {
	ID          int64
	DisplayName string
	WallType    WallType
	Channeling  bool
	AreaSqm     float64
	FullName    string
	Phone       string
	Address     string
	Total       float64
	CreatedAt   time.Time
}
