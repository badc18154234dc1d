package port

import (
	"context"

	"github.com/rl1809/parts-ledger/internal/core/domain"
)

type BOMRepository interface {
	// GetProject returns a project with its bill of materials, or ErrNotFound.
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
}
