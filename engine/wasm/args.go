package wasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tetratelabs/wazero/api"

	"github.com/jsign/vm-gas-calibration/engine"
)

// ParseArgs converts command-line arguments into the encoded stack values the
// export expects.
func ParseArgs(types []api.ValueType, args []string) ([]uint64, error) {
	if len(args) != len(types) {
		index := min(len(args), len(types))
		value := ""
		if index < len(args) {
			value = args[index]
		}
		return nil, &engine.ArgumentParseError{
			Index:    index,
			Value:    value,
			Expected: fmt.Sprintf("call with %d argument(s)", len(types)),
			Err:      errors.Newf("got %d argument(s)", len(args)),
		}
	}

	params := make([]uint64, len(types))
	for i, t := range types {
		v, err := parseValue(t, args[i])
		if err != nil {
			return nil, &engine.ArgumentParseError{Index: i, Value: args[i], Expected: api.ValueTypeName(t), Err: err}
		}
		params[i] = v
	}
	return params, nil
}

func parseValue(t api.ValueType, s string) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			// Accept the unsigned spelling of negative values, e.g. 0xffffffff.
			u, uerr := strconv.ParseUint(s, 0, 32)
			if uerr != nil {
				return 0, err
			}
			return api.EncodeU32(uint32(u)), nil
		}
		return api.EncodeI32(int32(v)), nil
	case api.ValueTypeI64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 64)
			if uerr != nil {
				return 0, err
			}
			return u, nil
		}
		return api.EncodeI64(v), nil
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(v)), nil
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(v), nil
	default:
		return 0, errors.Newf("unsupported parameter type %s", api.ValueTypeName(t))
	}
}

// FormatResults renders the returned stack values according to their types.
func FormatResults(types []api.ValueType, results []uint64) string {
	out := make([]string, len(results))
	for i, r := range results {
		t := api.ValueTypeI64
		if i < len(types) {
			t = types[i]
		}
		switch t {
		case api.ValueTypeI32:
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case api.ValueTypeF32:
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case api.ValueTypeF64:
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = strconv.FormatInt(int64(r), 10)
		}
	}
	return strings.Join(out, " ")
}
