package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/iden3/go-rapidsnark/types"

	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/ports"
	"github.com/altf4-games/credshield-node/internal/fixedpoint"
	"github.com/altf4-games/credshield-node/internal/log"
)

// DefaultProvingTimeout bounds a single proving call. Proving is slow by
// nature, so the deadline is generous.
const DefaultProvingTimeout = 60 * time.Second

// ProofEngineConfig configures the proof engine service.
type ProofEngineConfig struct {
	CircuitName    string
	ProvingTimeout time.Duration
}

// ProofEngine wraps the zero knowledge proving backend. All knowledge about
// the proof object shape lives here.
type ProofEngine struct {
	generator ports.ZKGenerator
	verifier  ports.ZKVerifier
	cfg       ProofEngineConfig
}

// NewProofEngine returns a proof engine backed by the given prover and verifier.
func NewProofEngine(generator ports.ZKGenerator, verifier ports.ZKVerifier, cfg ProofEngineConfig) *ProofEngine {
	if cfg.ProvingTimeout <= 0 {
		cfg.ProvingTimeout = DefaultProvingTimeout
	}
	return &ProofEngine{generator: generator, verifier: verifier, cfg: cfg}
}

// Prove generates proof material for the claim "gpa meets threshold". Inputs
// are scaled to the integer domain before touching the circuit. The engine
// refuses to prove a false claim: a GPA below the threshold returns
// ThresholdNotMetError and no proof.
func (e *ProofEngine) Prove(ctx context.Context, gpa, threshold float64) (*domain.ProofMaterial, error) {
	scaledGpa, err := fixedpoint.Scale(gpa)
	if err != nil {
		return nil, &InvalidInputError{Message: "gpa must be between 0 and 10"}
	}
	scaledThreshold, err := fixedpoint.Scale(threshold)
	if err != nil {
		return nil, &InvalidInputError{Message: "threshold must be between 0 and 10"}
	}

	if scaledGpa < scaledThreshold {
		return nil, &ThresholdNotMetError{ScaledGpa: scaledGpa, ScaledThreshold: scaledThreshold}
	}

	inputs, err := json.Marshal(map[string]string{
		"gpa":       strconv.FormatInt(scaledGpa, 10),
		"threshold": strconv.FormatInt(scaledThreshold, 10),
	})
	if err != nil {
		return nil, &ProverFaultError{Cause: err}
	}
	witnessSum := sha256.Sum256(inputs)

	proveCtx, cancel := context.WithTimeout(ctx, e.cfg.ProvingTimeout)
	defer cancel()

	zkp, err := e.generator.Generate(proveCtx, inputs, e.cfg.CircuitName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || proveCtx.Err() != nil {
			return nil, &ProvingTimeoutError{Cause: err}
		}
		return nil, &ProverFaultError{Cause: err}
	}
	if zkp == nil || zkp.Proof == nil {
		return nil, &ProverFaultError{Cause: errors.New("backend returned empty proof")}
	}
	if len(zkp.PubSignals) != domain.SignalCount {
		return nil, &ProverFaultError{Cause: errors.New("backend returned unexpected public signal arity")}
	}
	if zkp.PubSignals[domain.SignalMeets] != "1" {
		// The local eligibility check passed but the circuit disagreed. The
		// two computations share the same scaled inputs, so this is a broken
		// backend, not a business rejection.
		return nil, &ProverFaultError{Cause: errors.New("backend emitted a non-passing proof")}
	}

	proof := proofFromBackend(zkp.Proof)
	proofHash, err := hashProof(proof)
	if err != nil {
		return nil, &ProverFaultError{Cause: err}
	}

	log.Debug(ctx, "proof generated", "circuit", e.cfg.CircuitName, "proofHash", proofHash)

	return domain.NewProofMaterial(proof, zkp.PubSignals, proofHash, hex.EncodeToString(witnessSum[:])), nil
}

// VerifyLocally re-verifies a proof off-chain. Unlike Prove, it never returns
// an error: proving has preconditions the caller controls, verifying must be
// defensive against arbitrary untrusted input.
func (e *ProofEngine) VerifyLocally(ctx context.Context, proof *domain.ProofData, publicSignals []string) bool {
	if !structurallyValid(proof, publicSignals) {
		return false
	}

	ok, err := e.verifier.Verify(ctx, proofToBackend(proof, publicSignals), e.cfg.CircuitName)
	if err != nil {
		log.Warn(ctx, "local proof verification errored", "err", err)
		return false
	}
	return ok
}

// FormatForLedger reshapes a proof into the calldata layout the on-chain
// verifier consumes. snarkjs emits projective points with a redundant third
// coordinate and B pairs in reversed order relative to the EVM pairing
// precompile; the reshaping drops the former and swaps the latter. No
// cryptography happens here and the swap is its own inverse.
func (e *ProofEngine) FormatForLedger(proof *domain.ProofData) (domain.LedgerProofTuple, error) {
	if proof == nil || len(proof.A) < 2 || len(proof.C) < 2 ||
		len(proof.B) < 2 || len(proof.B[0]) < 2 || len(proof.B[1]) < 2 {
		return domain.LedgerProofTuple{}, &InvalidInputError{Message: "proof object is missing curve point coordinates"}
	}

	return domain.LedgerProofTuple{
		A: [2]string{proof.A[0], proof.A[1]},
		B: [2][2]string{
			{proof.B[0][1], proof.B[0][0]},
			{proof.B[1][1], proof.B[1][0]},
		},
		C: [2]string{proof.C[0], proof.C[1]},
	}, nil
}

func structurallyValid(proof *domain.ProofData, publicSignals []string) bool {
	if proof == nil {
		return false
	}
	if len(proof.A) < 2 || len(proof.C) < 2 {
		return false
	}
	if len(proof.B) < 2 || len(proof.B[0]) < 2 || len(proof.B[1]) < 2 {
		return false
	}
	if len(publicSignals) != domain.SignalCount {
		return false
	}
	meets := publicSignals[domain.SignalMeets]
	return meets == "0" || meets == "1"
}

// hashProof computes the tamper-evidence digest over the canonical proof
// serialization. Struct field order makes the JSON deterministic.
func hashProof(proof *domain.ProofData) (string, error) {
	raw, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func proofFromBackend(p *types.ProofData) *domain.ProofData {
	protocol := p.Protocol
	if protocol == "" {
		protocol = domain.ProtocolGroth16
	}
	return &domain.ProofData{
		A:        p.A,
		B:        p.B,
		C:        p.C,
		Protocol: protocol,
		Curve:    domain.CurveBN128,
	}
}

func proofToBackend(p *domain.ProofData, publicSignals []string) *types.ZKProof {
	return &types.ZKProof{
		Proof: &types.ProofData{
			A:        p.A,
			B:        p.B,
			C:        p.C,
			Protocol: p.Protocol,
		},
		PubSignals: publicSignals,
	}
}
