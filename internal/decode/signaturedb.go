package decode

import (
	"github.com/txguard/scanner/internal/evmtypes"
)

// maxSignatureCandidates bounds how many candidate signatures Stage D will
// attempt to unpack calldata against before giving up, so an ambiguous
// selector with many registered collisions can't turn one decode into an
// unbounded amount of work.
const maxSignatureCandidates = 5

// decodeSignatureDB is decoder Stage D, the last resort: an external
// signature database is asked for every known signature registered against
// this 4-byte selector (there can be more than one, since 4-byte selectors
// collide), and each candidate is tried in turn until one unpacks cleanly.
// The first success is the primary decode; any other candidates that also
// unpack cleanly are recorded as Alternates so a reviewer can see the
// ambiguity instead of a false certainty.
func decodeSignatureDB(ctx DecodeContext, data []byte) (*evmtypes.DecodedCall, error) {
	if ctx.Signatures == nil || len(data) < 4 {
		return nil, nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	candidates, err := ctx.Signatures.Lookup(sel)
	if err != nil || len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > maxSignatureCandidates {
		candidates = candidates[:maxSignatureCandidates]
	}

	var primary *evmtypes.DecodedCall
	var alternates []string

	for _, sig := range candidates {
		method, err := methodFromSignature(sig)
		if err != nil {
			continue
		}
		args, err := unpackToArgs(method.Inputs, data[4:])
		if err != nil {
			continue
		}

		if primary == nil {
			typeStrs, _ := argTypeStrings(sig)
			primary = &evmtypes.DecodedCall{
				Selector:     selectorHex(sel),
				Signature:    sig,
				FunctionName: functionName(sig),
				Source:       evmtypes.SourceSignatureDB,
				Standard:     inferStandardFromName(functionName(sig), typeStrs),
				Args:         args,
				ArgNames:     args.Names(),
				ArgTypes:     typeStrs,
			}
		} else {
			alternates = append(alternates, sig)
		}
	}

	if primary == nil {
		return nil, nil
	}
	primary.Alternates = alternates
	return primary, nil
}
