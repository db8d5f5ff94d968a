// Package pricing computes order quotes from validated session fields.
package pricing

import (
	"github.com/elektromontazh/orderbot/internal/domain"
)

// Rates per square meter. Channeling is only selectable for masonry-type
// walls; frame structures always price at the base rate.
const (
	BaseRate                 = 3500.0
	ReinforcedChannelingRate = 4500.0
	BlockPanelChannelingRate = 4000.0
	CallOutFee               = 5000.0
)

// Quote returns the total price for the given wall type, channeling flag
// and area. Deterministic and side-effect free; callers must invoke it
// exactly once per session so the committed total matches the displayed one.
func Quote(wall domain.WallType, channeling bool, areaSqm float64) float64 {
	rate := BaseRate
	switch wall {
	case domain.WallReinforcedConcrete:
		if channeling {
			rate = ReinforcedChannelingRate
		}
	case domain.WallBlockOrPanel:
		if channeling {
			rate = BlockPanelChannelingRate
		}
	}
	return areaSqm*rate + CallOutFee
}
