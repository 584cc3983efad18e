package decode

import (
	"github.com/txguard/scanner/internal/evmtypes"
)

// Decode runs the full layered pipeline against data (calldata without any
// wrapping, starting at the 4-byte selector): known ABI, then local
// selector fallback, then contract ABI, then signature database. The
// first stage to produce a non-nil result wins; stages never mutate
// shared state and a failure in one stage always falls through to the
// next rather than propagating an error, except for the genuinely
// terminal cases (empty calldata, or every stage drawing a blank).
//
// DecodeTo should be preferred when the recipient address is known, since
// it's required for Stage C; Decode alone can still exercise stages A, B
// and D.
func Decode(ctx DecodeContext, data []byte) (*evmtypes.DecodedCall, error) {
	return DecodeTo(ctx, "", data)
}

// DecodeTo is Decode with the calldata's recipient contract address, used
// by Stage C to look up a previously-resolved contract ABI.
func DecodeTo(ctx DecodeContext, to string, data []byte) (*evmtypes.DecodedCall, error) {
	if len(data) == 0 {
		return nil, ErrEmptyCalldata
	}

	if dc, err := decodeKnownABI(data); err != nil {
		return nil, err
	} else if dc != nil {
		return dc, nil
	}

	if dc, err := decodeLocalSelector(ctx, data); err != nil {
		return nil, err
	} else if dc != nil {
		return dc, nil
	}

	if to != "" {
		if dc, err := decodeContractABI(ctx, to, data); err != nil {
			return nil, err
		} else if dc != nil {
			return dc, nil
		}
	}

	if dc, err := decodeSignatureDB(ctx, data); err != nil {
		return nil, err
	} else if dc != nil {
		return dc, nil
	}

	return nil, ErrUnresolvedSelector
}
