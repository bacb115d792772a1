package loaders

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	wasmFile            = "circuit.wasm"
	provingKeyFile      = "circuit_final.zkey"
	verificationKeyFile = "verification_key.json"
)

// Circuits loads compiled circuit artifacts from disk. Each circuit lives in
// its own directory under basePath holding the witness wasm, the proving key
// and the verification key.
type Circuits struct {
	basePath string
}

// NewCircuits create loader that returns circuits files.
func NewCircuits(basePath string) *Circuits {
	return &Circuits{basePath: basePath}
}

// LoadVerificationKey load verification key by circuit name.
func (l *Circuits) LoadVerificationKey(circuitName string) ([]byte, error) {
	return l.getPathToFile(circuitName, verificationKeyFile)
}

// LoadProvingKey load proving key by circuit name.
func (l *Circuits) LoadProvingKey(circuitName string) ([]byte, error) {
	return l.getPathToFile(circuitName, provingKeyFile)
}

// LoadWasm load wasm file by circuit name.
func (l *Circuits) LoadWasm(circuitName string) ([]byte, error) {
	return l.getPathToFile(circuitName, wasmFile)
}

func (l *Circuits) getPathToFile(circuitName, fileName string) ([]byte, error) {
	path := filepath.Join(l.basePath, circuitName, fileName)
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed open file '%s' by path '%s': %v", fileName, path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed read file '%s' by path '%s': %v", fileName, path, err)
	}
	return data, nil
}
