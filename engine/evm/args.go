package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jsign/vm-gas-calibration/engine"
)

// ParseArgs converts command-line arguments into the Go values abi packing
// expects for method's inputs: sized integers for 8, 16, 32 and 64 bit
// widths, *big.Int for every other width.
func ParseArgs(method abi.Method, args []string) ([]any, error) {
	inputs := method.Inputs
	if len(args) != len(inputs) {
		index := min(len(args), len(inputs))
		value := ""
		if index < len(args) {
			value = args[index]
		}
		return nil, &engine.ArgumentParseError{
			Index:    index,
			Value:    value,
			Expected: fmt.Sprintf("call with %d argument(s)", len(inputs)),
			Err:      errors.Newf("got %d argument(s)", len(args)),
		}
	}

	values := make([]any, len(inputs))
	for i, in := range inputs {
		v, err := parseValue(in.Type, args[i])
		if err != nil {
			return nil, &engine.ArgumentParseError{Index: i, Value: args[i], Expected: in.Type.String(), Err: err}
		}
		values[i] = v
	}
	return values, nil
}

func parseValue(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.UintTy:
		if nativeSize(t.Size) {
			v, err := strconv.ParseUint(s, 0, t.Size)
			if err != nil {
				return nil, err
			}
			switch t.Size {
			case 8:
				return uint8(v), nil
			case 16:
				return uint16(v), nil
			case 32:
				return uint32(v), nil
			default:
				return v, nil
			}
		}
		return parseBigUint(s, t.Size)
	case abi.IntTy:
		if nativeSize(t.Size) {
			v, err := strconv.ParseInt(s, 0, t.Size)
			if err != nil {
				return nil, err
			}
			switch t.Size {
			case 8:
				return int8(v), nil
			case 16:
				return int16(v), nil
			case 32:
				return int32(v), nil
			default:
				return v, nil
			}
		}
		return parseBigInt(s, t.Size)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, errors.New("not a hex address")
		}
		return common.HexToAddress(s), nil
	case abi.StringTy:
		return s, nil
	default:
		return nil, errors.Newf("unsupported parameter type %s", t)
	}
}

func nativeSize(bits int) bool {
	return bits == 8 || bits == 16 || bits == 32 || bits == 64
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return nil, errors.New("invalid integer")
	}
	return v, nil
}

func parseBigUint(s string, bits int) (*big.Int, error) {
	v, err := parseBig(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, errors.New("negative value")
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.BitLen() > bits {
		return nil, errors.Newf("value exceeds %d bits", bits)
	}
	return v, nil
}

func parseBigInt(s string, bits int) (*big.Int, error) {
	v, err := parseBig(s)
	if err != nil {
		return nil, err
	}
	abs, overflow := uint256.FromBig(new(big.Int).Abs(v))
	limit := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits-1))
	if overflow || (v.Sign() >= 0 && !abs.Lt(limit)) || (v.Sign() < 0 && abs.Gt(limit)) {
		return nil, errors.Newf("value exceeds int%d", bits)
	}
	return v, nil
}

func formatValues(values []any) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return strings.Join(out, " ")
}
