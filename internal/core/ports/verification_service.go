package ports

import (
	"context"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

// VerificationService is the orchestrator surface. These entry points are the
// only ones the HTTP layer (or any other collaborator) is allowed to call.
type VerificationService interface {
	IssueProof(ctx context.Context, subjectName string, gpa, threshold float64) (*domain.IssuedProof, error)
	IssueFromDocument(ctx context.Context, document []byte, mimeType string, threshold float64) (*domain.IssuedProof, error)
	ResolveCode(ctx context.Context, code string) (*domain.VerificationResult, error)
	Stats() domain.RegistryStats
}
