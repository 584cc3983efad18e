// Package safeingest fans a decoded Safe MultiSend batch out to independent
// per-call analysis, bounded to a small fixed concurrency per §5.
package safeingest

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/concurrency"
	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
)

// BatchConcurrency is the fixed fan-out width for per-call analysis within
// a decoded Safe MultiSend batch.
const BatchConcurrency = 3

// AnalyzeFunc analyzes one record's call as an independent transaction. It
// is the same shape as analyzer.Analyze bound to whatever provider,
// signature-lookup, and token collaborators the caller has already wired;
// safeingest doesn't import internal/analyzer itself so that callers can
// supply a lighter or mocked analysis path in tests.
type AnalyzeFunc func(ctx context.Context, input *evmtypes.CalldataInput) (*evmtypes.AnalysisResult, error)

// Entry pairs one MultiSend record with its independent analysis outcome.
type Entry struct {
	Index  int
	Record decode.MultiSendRecord
	Result *evmtypes.AnalysisResult
	Err    error
}

// Analyze runs analyze over every record in batch with at most
// BatchConcurrency in flight. A failure analyzing one record (a bad
// to-address, a provider error surfaced through analyze, ...) is isolated
// to that record's Entry.Err and never suppresses the rest of the batch.
func Analyze(ctx context.Context, ch chain.Chain, batch decode.MultiSendResult, analyze AnalyzeFunc) []Entry {
	tasks := make([]func(context.Context) (Entry, error), len(batch.Records))
	for i, rec := range batch.Records {
		i, rec := i, rec
		tasks[i] = func(ctx context.Context) (Entry, error) {
			input, err := evmtypes.NewCalldataInput(rec.To.Hex(), "", dataHex(rec.Data), valueString(rec.Value), string(ch))
			if err != nil {
				return Entry{Index: i, Record: rec, Err: err}, nil
			}
			result, err := analyze(ctx, input)
			return Entry{Index: i, Record: rec, Result: result, Err: err}, nil
		}
	}

	outcomes := concurrency.RunIsolated(ctx, BatchConcurrency, tasks)
	entries := make([]Entry, len(outcomes))
	for i, o := range outcomes {
		entries[i] = o.Value
	}
	return entries
}

func dataHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "0x" + common.Bytes2Hex(data)
}

func valueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
