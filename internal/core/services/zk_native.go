package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iden3/go-rapidsnark/prover"
	"github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/iden3/go-rapidsnark/witness/v2"
	"github.com/iden3/go-rapidsnark/witness/wazero"

	"github.com/altf4-games/credshield-node/internal/log"
	"github.com/altf4-games/credshield-node/pkg/loaders"
)

// NativeProverConfig represents native prover config
type NativeProverConfig struct {
	CircuitsLoader *loaders.Circuits
}

// NativeProverService runs witness calculation, proving and verification
// in-process against circom artifacts. It satisfies both the generator and
// the verifier ports.
type NativeProverService struct {
	config *NativeProverConfig
}

// NewNativeProverService new prover service that works with zero knowledge proofs
func NewNativeProverService(config *NativeProverConfig) *NativeProverService {
	return &NativeProverService{config: config}
}

// Generate calculates the witness for inputs and runs the groth16 prover.
func (s *NativeProverService) Generate(ctx context.Context, inputs json.RawMessage, circuitName string) (*types.ZKProof, error) {
	wasm, err := s.config.CircuitsLoader.LoadWasm(circuitName)
	if err != nil {
		return nil, err
	}

	calc, err := witness.NewCalculator(wasm, witness.WithWasmEngine(wazero.NewCircom2WZWitnessCalculator))
	if err != nil {
		log.Error(ctx, "can't create witness calculator", err)
		return nil, fmt.Errorf("can't create witness calculator: %w", err)
	}

	parsedInputs, err := witness.ParseInputs(inputs)
	if err != nil {
		return nil, err
	}

	wtnsBytes, err := calc.CalculateWTNSBin(parsedInputs, true)
	if err != nil {
		log.Error(ctx, "can't generate witnesses", err)
		return nil, fmt.Errorf("can't generate witnesses: %w", err)
	}

	provingKey, err := s.config.CircuitsLoader.LoadProvingKey(circuitName)
	if err != nil {
		return nil, err
	}

	p, err := prover.Groth16Prover(provingKey, wtnsBytes)
	if err != nil {
		log.Error(ctx, "can't create prover", err)
		return nil, fmt.Errorf("can't create prover: %w", err)
	}
	return p, nil
}

// Verify checks the proof against the circuit verification key.
func (s *NativeProverService) Verify(ctx context.Context, zkp *types.ZKProof, circuitName string) (bool, error) {
	verificationKey, err := s.config.CircuitsLoader.LoadVerificationKey(circuitName)
	if err != nil {
		return false, err
	}

	if err := verifier.VerifyGroth16(*zkp, verificationKey); err != nil {
		log.Debug(ctx, "groth16 verification failed", "err", err)
		return false, nil
	}
	return true, nil
}
