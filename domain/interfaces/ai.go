package interfaces

import (
	"context"

	"shop_replay/domain/entities"
)

// Inference is the language inference service used as a last-resort strategy
type Inference interface {
	// Complete sends a structured request and returns the raw model text
	Complete(ctx context.Context, req entities.InferenceRequest) (string, error)
}
