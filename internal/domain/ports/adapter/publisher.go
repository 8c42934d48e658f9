package adapter

import (
	"context"

	"product-content-ai/internal/domain/model"
)

// Publisher hands a finished bundle to the content system. Lengths are already truncated.
type Publisher interface {
	Publish(ctx context.Context, bundle model.ContentBundle) error
}

// MarkupTransformer converts the lightweight markup of the full description
// into what the publisher expects.
type MarkupTransformer interface {
	Transform(src string) (string, error)
}

// RunNotifier is told once per finished run.
type RunNotifier interface {
	RunFinished(ctx context.Context, run *model.RunState) error
}
