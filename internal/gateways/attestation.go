package gateways

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/services"
	contracts "github.com/altf4-games/credshield-node/internal/eth"
	"github.com/altf4-games/credshield-node/internal/log"
	"github.com/altf4-games/credshield-node/pkg/blockchain/eth"
)

// AttestationGateway records verification outcomes on the AcademicVerifier
// contract and reads them back. The 8-character code never indexes ledger
// storage directly: it is far too short for a keyspace that has to stay
// collision resistant at ledger scale, so the storage key is its keccak256
// hash and the code itself acts as a capability token.
type AttestationGateway struct {
	client     *eth.Client
	contract   *contracts.AcademicVerifier
	privateKey *ecdsa.PrivateKey

	// The signer's nonce sequence must stay strictly ordered, so submissions
	// funnel through a single writer. Reads are unrestricted.
	submitMu sync.Mutex
}

// NewAttestationGateway returns a gateway bound to the deployed contract.
func NewAttestationGateway(client *eth.Client, contract *contracts.AcademicVerifier, privateKey *ecdsa.PrivateKey) *AttestationGateway {
	return &AttestationGateway{client: client, contract: contract, privateKey: privateKey}
}

// CodeKey derives the ledger storage key from a verification code.
func CodeKey(code string) [32]byte {
	return [32]byte(crypto.Keccak256Hash([]byte(strings.ToUpper(strings.TrimSpace(code)))))
}

// Submit sends the proof tuple to the contract and waits for the transaction
// to be mined. This is the irrevocable, externally observable step: once the
// receipt is in, the attestation is permanent.
func (g *AttestationGateway) Submit(ctx context.Context, tuple domain.LedgerProofTuple, publicSignals []string, code, subjectName string) (*domain.LedgerReceipt, error) {
	a, b, c, err := tupleToBigInts(tuple)
	if err != nil {
		return nil, err
	}
	input, err := signalsToBigInts(publicSignals)
	if err != nil {
		return nil, err
	}
	key := CodeKey(code)

	g.submitMu.Lock()
	tx, err := g.client.CallAuth(ctx, 0, g.privateKey, func(_ *ethclient.Client, auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		return g.contract.VerifyAndStore(auth, a, b, c, input, key, subjectName)
	})
	g.submitMu.Unlock()
	if err != nil {
		return nil, classifySubmitError(err)
	}

	receipt, err := g.client.WaitTransactionReceiptByID(ctx, tx.Hash())
	if err != nil {
		return nil, &services.LedgerUnavailableError{Cause: err}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, &services.LedgerRejectedError{Reason: "transaction reverted"}
	}

	log.Info(ctx, "attestation recorded",
		"tx", tx.Hash().Hex(),
		"block", receipt.BlockNumber.Uint64(),
		"contract", g.contract.Address().Hex())

	return &domain.LedgerReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Resolve reads the attestation stored under the code's key. Pure read, safe
// to retry indefinitely. The returned attestation reports Exists() == false
// when the contract holds nothing (zero timestamp).
func (g *AttestationGateway) Resolve(ctx context.Context, code string) (*domain.LedgerAttestation, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.client.Config.RPCResponseTimeout)
	defer cancel()

	att, err := g.contract.GetVerification(&bind.CallOpts{Context: callCtx}, CodeKey(code))
	if err != nil {
		return nil, &services.LedgerUnavailableError{Cause: err}
	}

	return &domain.LedgerAttestation{
		Code:             strings.ToUpper(strings.TrimSpace(code)),
		Submitter:        att.Submitter.Hex(),
		SubjectName:      att.StudentName,
		ScaledThreshold:  att.Threshold.Int64(),
		Verified:         att.Verified,
		TimestampSeconds: att.Timestamp.Int64(),
	}, nil
}

// classifySubmitError separates permanent contract rejections from transient
// transport faults. A revert mentioning code reuse is marked recoverable:
// the attestation already exists and can simply be read back.
func classifySubmitError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already used"), strings.Contains(msg, "already exists"):
		return &services.LedgerRejectedError{Reason: err.Error(), AlreadyUsed: true}
	case strings.Contains(msg, "execution reverted"):
		return &services.LedgerRejectedError{Reason: err.Error()}
	case errors.Is(err, eth.ErrPrivateKeyNil):
		return err
	default:
		return &services.LedgerUnavailableError{Cause: err}
	}
}

func tupleToBigInts(tuple domain.LedgerProofTuple) (a [2]*big.Int, b [2][2]*big.Int, c [2]*big.Int, err error) {
	for i := 0; i < 2; i++ {
		if a[i], err = parseFieldElement(tuple.A[i]); err != nil {
			return
		}
		if c[i], err = parseFieldElement(tuple.C[i]); err != nil {
			return
		}
		for j := 0; j < 2; j++ {
			if b[i][j], err = parseFieldElement(tuple.B[i][j]); err != nil {
				return
			}
		}
	}
	return
}

func signalsToBigInts(publicSignals []string) ([2]*big.Int, error) {
	var input [2]*big.Int
	if len(publicSignals) != domain.SignalCount {
		return input, &services.InvalidInputError{Message: "unexpected public signal arity"}
	}
	for i, s := range publicSignals {
		v, err := parseFieldElement(s)
		if err != nil {
			return input, err
		}
		input[i] = v
	}
	return input, nil
}

func parseFieldElement(s string) (*big.Int, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, &services.InvalidInputError{Message: "proof coordinate is not a valid field element"}
	}
	return v, nil
}
