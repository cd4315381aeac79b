package interfaces

import "shop_replay/domain/entities"

// Guard decides whether a click needs explicit approval
type Guard interface {
	// RequiresApproval returns a pending action when the click must be held back
	RequiresApproval(selector, intent string) *entities.PendingAction

	// RiskLevel returns "low", "medium" or "high"
	RiskLevel(selector, intent string) string
}
