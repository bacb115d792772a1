package eth

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AcademicVerifierABI is the contract interface the node talks to. The
// contract stores one attestation per code hash and reverts on reuse, which
// makes codes one-time on the ledger by construction.
const AcademicVerifierABI = `[
  {
    "inputs": [
      {"internalType": "uint256[2]", "name": "a", "type": "uint256[2]"},
      {"internalType": "uint256[2][2]", "name": "b", "type": "uint256[2][2]"},
      {"internalType": "uint256[2]", "name": "c", "type": "uint256[2]"},
      {"internalType": "uint256[2]", "name": "input", "type": "uint256[2]"},
      {"internalType": "bytes32", "name": "codeHash", "type": "bytes32"},
      {"internalType": "string", "name": "studentName", "type": "string"}
    ],
    "name": "verifyAndStore",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "codeHash", "type": "bytes32"}],
    "name": "getVerification",
    "outputs": [
      {"internalType": "address", "name": "submitter", "type": "address"},
      {"internalType": "string", "name": "studentName", "type": "string"},
      {"internalType": "uint256", "name": "threshold", "type": "uint256"},
      {"internalType": "bool", "name": "verified", "type": "bool"},
      {"internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

// AcademicVerifierAttestation mirrors the tuple getVerification returns.
type AcademicVerifierAttestation struct {
	Submitter   common.Address
	StudentName string
	Threshold   *big.Int
	Verified    bool
	Timestamp   *big.Int
}

// AcademicVerifier is a Go binding around the deployed contract.
type AcademicVerifier struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewAcademicVerifier binds the contract at address to backend.
func NewAcademicVerifier(address common.Address, backend bind.ContractBackend) (*AcademicVerifier, error) {
	parsed, err := abi.JSON(strings.NewReader(AcademicVerifierABI))
	if err != nil {
		return nil, err
	}
	return &AcademicVerifier{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (v *AcademicVerifier) Address() common.Address {
	return v.address
}

// VerifyAndStore submits the proof tuple and records the attestation keyed by
// codeHash. Reverts if the code hash was already used.
func (v *AcademicVerifier) VerifyAndStore(opts *bind.TransactOpts, a [2]*big.Int, b [2][2]*big.Int, c [2]*big.Int, input [2]*big.Int, codeHash [32]byte, studentName string) (*types.Transaction, error) {
	return v.contract.Transact(opts, "verifyAndStore", a, b, c, input, codeHash, studentName)
}

// GetVerification reads the attestation stored under codeHash. A zero
// timestamp means no attestation exists.
func (v *AcademicVerifier) GetVerification(opts *bind.CallOpts, codeHash [32]byte) (AcademicVerifierAttestation, error) {
	var out []interface{}
	err := v.contract.Call(opts, &out, "getVerification", codeHash)
	if err != nil {
		return AcademicVerifierAttestation{}, err
	}

	return AcademicVerifierAttestation{
		Submitter:   *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		StudentName: *abi.ConvertType(out[1], new(string)).(*string),
		Threshold:   abi.ConvertType(out[2], new(big.Int)).(*big.Int),
		Verified:    *abi.ConvertType(out[3], new(bool)).(*bool),
		Timestamp:   abi.ConvertType(out[4], new(big.Int)).(*big.Int),
	}, nil
}
