package ports

import (
	"context"
	"encoding/json"

	"github.com/iden3/go-rapidsnark/types"
)

// ZKGenerator interface
type ZKGenerator interface {
	Generate(ctx context.Context, inputs json.RawMessage, circuitName string) (*types.ZKProof, error)
}

// ZKVerifier interface. Implementations must treat the proof as untrusted
// input and report malformed material as a failed verification, not an error.
type ZKVerifier interface {
	Verify(ctx context.Context, proof *types.ZKProof, circuitName string) (bool, error)
}
