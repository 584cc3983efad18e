package proxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/evmtypes"
)

// recording captures everything written to one intercepted request's
// sub-directory under --record-dir.
type recording struct {
	Method   string
	Chain    chain.Chain
	RPCBody  json.RawMessage
	Input    *evmtypes.CalldataInput
	Outcome  *ScanOutcome
	Rendered string
}

// recordScan writes rec's files to a fresh <isoTs>__<method>__<chain>__
// <to-short>__<from-short>__<uuid8> sub-directory of dir. Errors are
// returned for the caller to log — a recording failure never blocks the
// scan result itself.
func recordScan(dir string, rec recording) error {
	if dir == "" {
		return nil
	}

	toShort, fromShort := "none", "none"
	if rec.Input != nil {
		toShort = shortAddr(rec.Input.To.Hex())
		if rec.Input.From != nil {
			fromShort = shortAddr(rec.Input.From.Hex())
		}
	}

	name := fmt.Sprintf("%s__%s__%s__%s__%s__%s",
		time.Now().UTC().Format("2006-01-02T15-04-05.000Z"),
		rec.Method, rec.Chain, toShort, fromShort, uuid.New().String()[:8])

	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return fmt.Errorf("proxy: creating record dir: %w", err)
	}

	meta := map[string]interface{}{
		"method":    rec.Method,
		"chain":     rec.Chain,
		"recordedAt": time.Now().UTC().Format(time.RFC3339),
	}

	files := map[string]interface{}{
		"meta.json":     meta,
		"rpc.json":      rec.RPCBody,
		"calldata.json": rec.Input,
	}
	if rec.Outcome != nil {
		files["analyzeResponse.json"] = rec.Outcome.Response
	}

	for filename, v := range files {
		if err := writeJSON(filepath.Join(sub, filename), v); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(sub, "rendered.txt"), []byte(rec.Rendered), 0o644); err != nil {
		return fmt.Errorf("proxy: writing rendered.txt: %w", err)
	}

	return nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("proxy: marshalling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("proxy: writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8]
}
