package proxy

import (
	"context"
	"sync"

	"github.com/txguard/scanner/internal/evmtypes"
)

// ScanOutcome is what a completed scan yields back to the proxy.
type ScanOutcome struct {
	Recommendation    evmtypes.Recommendation
	SimulationSuccess bool
	Response          *evmtypes.AnalysisResult
	RenderedText      string
}

// ScanFunc runs one full analysis. The proxy is deliberately unaware of how
// this is wired (providers, decode, simulation) — it only needs the
// outcome shape to drive its policy decision.
type ScanFunc func(ctx context.Context, input *evmtypes.CalldataInput) (*ScanOutcome, error)

// scanQueue serializes scans: only one runs at a time, even though many
// HTTP requests may be in flight concurrently. Depth is unbounded — callers
// block on submit until their turn. A single sync.Mutex provides this;
// it does not guarantee FIFO, so waiting scans are not strictly released in
// submission order, and nothing else touches the scan path while one is
// running.
type scanQueue struct {
	mu   sync.Mutex
	scan ScanFunc
}

func newScanQueue(scan ScanFunc) *scanQueue {
	return &scanQueue{scan: scan}
}

// submit queues input for scanning and blocks until it is this caller's
// turn and the scan completes.
func (q *scanQueue) submit(ctx context.Context, input *evmtypes.CalldataInput) (*ScanOutcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.scan(ctx, input)
}
