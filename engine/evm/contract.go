// Package evm runs contract methods on the go-ethereum interpreter with a
// profiler attached to every dispatched opcode.
package evm

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/jsign/vm-gas-calibration/engine"
)

// artifact is the compiler output layout written by Hardhat and Foundry.
type artifact struct {
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

type Contract struct {
	Name string
	ABI  abi.ABI
	// Bytecode is the creation code, DeployedBytecode the runtime code. Either
	// may be empty but not both.
	Bytecode         []byte
	DeployedBytecode []byte
}

func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &engine.ModuleLoadError{Path: path, Err: err}
	}
	c, err := Parse(data)
	if err != nil {
		return nil, &engine.ModuleLoadError{Path: path, Err: err}
	}
	return c, nil
}

func Parse(data []byte) (*Contract, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, "decoding artifact")
	}
	if len(a.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}
	contractABI, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return nil, errors.Wrap(err, "decoding abi")
	}
	code, err := decodeHex(a.Bytecode)
	if err != nil {
		return nil, errors.Wrap(err, "decoding bytecode")
	}
	deployed, err := decodeHex(a.DeployedBytecode)
	if err != nil {
		return nil, errors.Wrap(err, "decoding deployedBytecode")
	}
	if len(code) == 0 && len(deployed) == 0 {
		return nil, errors.Newf("artifact %q has no bytecode", a.ContractName)
	}
	return &Contract{Name: a.ContractName, ABI: contractABI, Bytecode: code, DeployedBytecode: deployed}, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// Methods lists the ABI method names in ascending order.
func (c *Contract) Methods() []string {
	names := make([]string, 0, len(c.ABI.Methods))
	for name := range c.ABI.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Contract) Method(name string) (abi.Method, error) {
	m, ok := c.ABI.Methods[name]
	if !ok {
		return abi.Method{}, &engine.ExportNotFoundError{Name: name, Available: c.Methods()}
	}
	return m, nil
}
