package plan

import (
	"context"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// TemplateSource provides read access to published plan templates. Content
// authoring owns writes; the engine only ever fetches.
type TemplateSource interface {
	// FetchTemplate returns the template, or an error wrapping
	// shared.ErrNotFound when no such template is published.
	FetchTemplate(ctx context.Context, id shared.TemplateID) (Template, error)
}
