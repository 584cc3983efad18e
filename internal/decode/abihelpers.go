package decode

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/txguard/scanner/internal/evmtypes"
)

// Selector4 computes the 4-byte selector of a canonical Solidity signature,
// e.g. "transfer(address,uint256)".
func Selector4(signature string) [4]byte {
	h := crypto.Keccak256([]byte(signature))
	var sel [4]byte
	copy(sel[:], h[:4])
	return sel
}

// selectorHex renders a [4]byte selector as a "0x"-prefixed lowercase hex
// string.
func selectorHex(sel [4]byte) string {
	return "0x" + common.Bytes2Hex(sel[:])
}

// functionName extracts the name portion of a canonical signature, e.g.
// "transfer" from "transfer(address,uint256)".
func functionName(signature string) string {
	if i := strings.IndexByte(signature, '('); i >= 0 {
		return signature[:i]
	}
	return signature
}

// argTypeStrings splits the parenthesized type list of a canonical
// signature into its component type strings, respecting nested tuples.
func argTypeStrings(signature string) ([]string, error) {
	open := strings.IndexByte(signature, '(')
	if open < 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("decode: malformed signature %q", signature)
	}
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return nil, nil
	}
	var parts []string
	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, inner[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, inner[start:])
	return parts, nil
}

// buildArguments parses a list of Solidity type strings into abi.Arguments
// suitable for Method construction. Names are synthesized as arg0, arg1, ...
func buildArguments(typeStrs []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(typeStrs))
	for i, ts := range typeStrs {
		t, err := abi.NewType(strings.TrimSpace(ts), "", nil)
		if err != nil {
			return nil, fmt.Errorf("decode: parsing type %q: %w", ts, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: t})
	}
	return args, nil
}

// methodFromSignature builds an abi.Method purely from a canonical
// signature string, with synthesized argN input names (used by Stage D,
// which has nothing but a candidate signature to work from).
func methodFromSignature(signature string) (abi.Method, error) {
	name := functionName(signature)
	typeStrs, err := argTypeStrings(signature)
	if err != nil {
		return abi.Method{}, err
	}
	inputs, err := buildArguments(typeStrs)
	if err != nil {
		return abi.Method{}, err
	}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil), nil
}

// buildNamedArguments is buildArguments but fills in real argument names
// where the caller knows them (Stage A/B tables), falling back to the same
// argN synthesis for any name left blank.
func buildNamedArguments(typeStrs []string, names []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(typeStrs))
	for i, ts := range typeStrs {
		t, err := abi.NewType(strings.TrimSpace(ts), "", nil)
		if err != nil {
			return nil, fmt.Errorf("decode: parsing type %q: %w", ts, err)
		}
		n := fmt.Sprintf("arg%d", i)
		if i < len(names) && names[i] != "" {
			n = names[i]
		}
		args = append(args, abi.Argument{Name: n, Type: t})
	}
	return args, nil
}

// methodFromNamedSignature is methodFromSignature but assigns real
// argument names instead of argN placeholders, so downstream consumers
// (the intent builder, the unlimited-approval check) can look arguments up
// by their actual Solidity parameter name.
func methodFromNamedSignature(signature string, names []string) (abi.Method, error) {
	name := functionName(signature)
	typeStrs, err := argTypeStrings(signature)
	if err != nil {
		return abi.Method{}, err
	}
	inputs, err := buildNamedArguments(typeStrs, names)
	if err != nil {
		return abi.Method{}, err
	}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil), nil
}

// unpackToArgs unpacks data (without the leading 4-byte selector) against
// inputs and converts the result into an evmtypes.Args value. Missing
// names are synthesized as argN; duplicates are suffixed _1, _2, ...
func unpackToArgs(inputs abi.Arguments, data []byte) (evmtypes.Args, error) {
	raw, err := inputs.Unpack(data)
	if err != nil {
		return evmtypes.Args{}, err
	}

	names := make([]string, len(inputs))
	seen := make(map[string]int)
	for i, in := range inputs {
		n := in.Name
		if n == "" {
			n = fmt.Sprintf("arg%d", i)
		}
		if c, ok := seen[n]; ok {
			seen[n] = c + 1
			n = fmt.Sprintf("%s_%d", n, c+1)
		} else {
			seen[n] = 0
		}
		names[i] = n
	}

	values := make([]evmtypes.Value, len(raw))
	for i := range raw {
		values[i] = toValue(inputs[i].Type, raw[i])
	}

	return evmtypes.NewNamedArgs(names, values), nil
}

// toValue converts a single Go value produced by abi.Arguments.Unpack,
// together with its declared abi.Type, into our recursive Value tree.
func toValue(t abi.Type, v interface{}) evmtypes.Value {
	switch t.T {
	case abi.AddressTy:
		if addr, ok := v.(common.Address); ok {
			return evmtypes.AddressValue(strings.ToLower(addr.Hex()))
		}
	case abi.BoolTy:
		if b, ok := v.(bool); ok {
			if b {
				return evmtypes.ScalarValue("true")
			}
			return evmtypes.ScalarValue("false")
		}
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return evmtypes.ScalarValue(s)
		}
	case abi.BytesTy:
		if b, ok := v.([]byte); ok {
			return evmtypes.BytesValue("0x" + common.Bytes2Hex(b))
		}
	case abi.FixedBytesTy, abi.FunctionTy:
		return evmtypes.BytesValue(fixedBytesHex(v))
	case abi.IntTy, abi.UintTy:
		return evmtypes.ScalarValue(integerString(v))
	case abi.SliceTy, abi.ArrayTy:
		return listValue(t, v)
	case abi.TupleTy:
		return tupleValue(t, v)
	}
	// Best-effort fallback: decoding never throws, it degrades.
	return evmtypes.ScalarValue(fmt.Sprintf("%v", v))
}

// integerString renders any of the numeric types abi.Unpack may produce
// (uint8..uint256 widen to *big.Int beyond 64 bits, narrower widths use
// native Go integer kinds) as a decimal string.
func integerString(v interface{}) string {
	if bi, ok := v.(*big.Int); ok {
		return bi.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", rv.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", rv.Int())
	}
	return fmt.Sprintf("%v", v)
}

// fixedBytesHex renders a fixed-size byte array ([N]byte, reflect.Array of
// uint8) as 0x-hex.
func fixedBytesHex(v interface{}) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array {
		return fmt.Sprintf("%v", v)
	}
	b := make([]byte, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		b[i] = byte(rv.Index(i).Uint())
	}
	return "0x" + common.Bytes2Hex(b)
}

// listValue converts a Go slice/array value for a SliceTy/ArrayTy abi.Type
// into a KindList Value, recursing through t.Elem for each element.
func listValue(t abi.Type, v interface{}) evmtypes.Value {
	rv := reflect.ValueOf(v)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || t.Elem == nil {
		return evmtypes.ScalarValue(fmt.Sprintf("%v", v))
	}
	out := make([]evmtypes.Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = toValue(*t.Elem, rv.Index(i).Interface())
	}
	return evmtypes.ListValue(out)
}

// tupleValue converts a generated tuple struct value for a TupleTy
// abi.Type into a KindRecord Value, pairing t.TupleRawNames/TupleElems
// with the struct's fields positionally (go-ethereum preserves field
// order between the two).
func tupleValue(t abi.Type, v interface{}) evmtypes.Value {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || len(t.TupleElems) != rv.NumField() {
		return evmtypes.ScalarValue(fmt.Sprintf("%v", v))
	}
	fields := make([]evmtypes.RecordField, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		name := fmt.Sprintf("field%d", i)
		if i < len(t.TupleRawNames) && t.TupleRawNames[i] != "" {
			name = t.TupleRawNames[i]
		}
		fields[i] = evmtypes.RecordField{
			Name:  name,
			Value: toValue(*t.TupleElems[i], rv.Field(i).Interface()),
		}
	}
	return evmtypes.RecordValue(fields)
}
