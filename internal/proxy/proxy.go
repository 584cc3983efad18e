package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/evmtypes"
)

// tracer emits one span per queued scan. No SDK/exporter is installed
// here, so this is a no-op tracer unless the embedding binary configures
// one via otel.SetTracerProvider.
var tracer = otel.Tracer("github.com/txguard/scanner/internal/proxy")

// Prompter asks a controlling terminal to approve or reject a risky
// transaction. The real implementation reads a yes/no answer from stdin;
// tests and non-interactive runs supply a stub.
type Prompter interface {
	Confirm(ctx context.Context, input *evmtypes.CalldataInput, outcome *ScanOutcome) bool
}

// Config configures a Server.
type Config struct {
	// Upstream is the RPC node this proxy forwards non-intercepted (and
	// approved-after-scan) requests to.
	Upstream string
	// Chain is the flag-supplied fallback chain, used when calldata
	// carries none; when set it takes precedence over the upstream
	// chain-id probe.
	Chain chain.Chain
	// Threshold is the recommendation rank at or above which a
	// transaction is considered risky.
	Threshold evmtypes.Recommendation
	// OnRisk selects prompt or block for a risky, non-simulation-failed
	// transaction when a controlling terminal is available.
	OnRisk Action
	// AllowPromptWhenSimulationFails gates whether an interactive prompt
	// still happens on simulation failure, or whether that always blocks.
	AllowPromptWhenSimulationFails bool
	// RecordDir, when non-empty, enables per-request recording.
	RecordDir string
	// Once, when true, schedules a graceful shutdown after the first
	// intercepted request's reply is flushed.
	Once bool
	// HTTPClient is the client used to reach Upstream. http.DefaultClient
	// is used if nil.
	HTTPClient *http.Client
}

// Server is the JSON-RPC interception proxy's HTTP handler.
type Server struct {
	cfg      Config
	scan     ScanFunc
	prompter Prompter
	client   *http.Client
	queue    *scanQueue

	chainOnce      sync.Once
	upstreamChain  chain.Chain
	handledOnce    atomic.Bool
	shutdownSignal func()
}

// NewServer builds a Server. When cfg.Once is set, shutdownSignal is
// invoked exactly once, in its own goroutine, as the first intercepted
// request finishes handling (before its reply is written); pass nil to disable
// that behavior even with Once set (e.g. in tests).
func NewServer(cfg Config, scan ScanFunc, prompter Prompter, shutdownSignal func()) *Server {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Server{
		cfg:            cfg,
		scan:           scan,
		prompter:       prompter,
		client:         client,
		queue:          newScanQueue(scan),
		shutdownSignal: shutdownSignal,
	}
}

// ServeHTTP implements the front-door contract: OPTIONS -> 204 + CORS,
// GET -> health JSON, POST -> JSON-RPC dispatch.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		s.serveOptions(w)
	case http.MethodGet:
		s.serveHealth(w)
	case http.MethodPost:
		s.servePost(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) serveOptions(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveHealth(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"upstream": s.cfg.Upstream,
	})
}

func (s *Server) servePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeSingle(w, errResponse(nil, codeParseError, "failed to read request body"))
		return
	}

	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		writeSingle(w, errResponse(nil, codeParseError, "invalid JSON"))
		return
	}

	trimmed := bytesTrimSpace(body)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		s.serveBatch(w, r, body)
	case len(trimmed) > 0 && trimmed[0] == '{':
		s.serveSingle(w, r, body)
	default:
		writeSingle(w, errResponse(nil, codeInvalidRequest, "request must be a JSON object or array"))
	}
}

func bytesTrimSpace(b []byte) []byte {
	return bytes.TrimSpace(b)
}

func (s *Server) serveSingle(w http.ResponseWriter, r *http.Request, body []byte) {
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeSingle(w, errResponse(nil, codeInvalidRequest, "malformed JSON-RPC request"))
		return
	}

	resp, drop := s.handleEntry(r.Context(), req, body)
	if drop {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeSingle(w, resp)
}

func (s *Server) serveBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		writeSingle(w, errResponse(nil, codeInvalidRequest, "malformed JSON-RPC batch"))
		return
	}

	var responses []rpcResponse
	for _, raw := range raws {
		var req rpcRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, errResponse(nil, codeInvalidRequest, "malformed batch entry"))
			continue
		}
		resp, drop := s.handleEntry(r.Context(), req, raw)
		if !drop {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(responses)
}

func writeSingle(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleEntry processes one JSON-RPC entry (single request or one batch
// element). drop is true when the entry was a notification and must
// receive no reply at all.
func (s *Server) handleEntry(ctx context.Context, req rpcRequest, raw json.RawMessage) (resp rpcResponse, drop bool) {
	if !isIntercepted(req.Method) {
		result, err := s.forwardRaw(ctx, raw)
		if err != nil {
			if req.isNotification() {
				return rpcResponse{}, true
			}
			return errResponse(req.ID, codeInvalidRequest, err.Error()), false
		}
		if req.isNotification() {
			return rpcResponse{}, true
		}
		return result, false
	}

	return s.handleIntercepted(ctx, req, raw)
}

func (s *Server) handleIntercepted(ctx context.Context, req rpcRequest, raw json.RawMessage) (rpcResponse, bool) {
	var input *evmtypes.CalldataInput
	var err error
	switch req.Method {
	case "eth_sendTransaction":
		input, err = coerceSendTransaction(req.Params)
	case "eth_sendRawTransaction":
		input, err = coerceRawTransaction(req.Params)
	}
	if err != nil {
		if req.isNotification() {
			return rpcResponse{}, true
		}
		return errResponse(req.ID, codeInvalidParams, err.Error()), false
	}

	resolved, ok := resolveChain(input.Chain, s.cfg.Chain, s.probeUpstreamChain(ctx))
	if !ok {
		if req.isNotification() {
			return rpcResponse{}, true
		}
		return errResponse(req.ID, codeInvalidParams, "unable to resolve chain"), false
	}
	input.Chain = resolved

	// A scan outlives the requesting HTTP client disconnecting: only the
	// forward that follows it inherits the request's abort signal.
	scanCtx := context.WithoutCancel(ctx)
	scanCtx, span := tracer.Start(scanCtx, "proxy.scan")
	outcome, err := s.queue.submit(scanCtx, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.End()
		return errResponse(req.ID, codeInvalidParams, fmt.Sprintf("scan failed: %v", err)), false
	}
	span.SetStatus(codes.Ok, "")
	span.End()

	act := s.applyPolicy(ctx, input, outcome)

	if s.cfg.RecordDir != "" {
		go func() {
			if err := recordScan(s.cfg.RecordDir, recording{
				Method: req.Method, Chain: resolved, RPCBody: raw, Input: input,
				Outcome: outcome, Rendered: outcome.RenderedText,
			}); err != nil {
				slog.Warn("recording scan failed", "err", err)
			}
		}()
	}

	if s.cfg.Once && s.handledOnce.CompareAndSwap(false, true) && s.shutdownSignal != nil {
		defer func() { go s.shutdownSignal() }()
	}

	switch act {
	case ActionForward:
		result, err := s.forwardRaw(ctx, raw)
		if err != nil {
			return errResponse(req.ID, codeInvalidParams, err.Error()), false
		}
		return result, false
	default:
		if req.isNotification() {
			return rpcResponse{}, true
		}
		return blockedResponse(req.ID, outcome.Recommendation, outcome.SimulationSuccess), false
	}
}

func (s *Server) applyPolicy(ctx context.Context, input *evmtypes.CalldataInput, outcome *ScanOutcome) Action {
	risky := outcome.Recommendation.AtLeast(s.cfg.Threshold)
	simFail := !outcome.SimulationSuccess
	interactive := s.prompter != nil

	act := decide(risky, simFail, interactive, s.cfg.OnRisk, s.cfg.AllowPromptWhenSimulationFails)
	if act == ActionPrompt {
		if s.prompter.Confirm(ctx, input, outcome) {
			return ActionForward
		}
		return ActionBlock
	}
	return act
}

// probeUpstreamChain lazily fetches and memoizes the upstream's eth_chainId
// for the lifetime of the Server.
func (s *Server) probeUpstreamChain(ctx context.Context) chain.Chain {
	s.chainOnce.Do(func() {
		reqBody, _ := json.Marshal(rpcRequest{JSONRPC: jsonrpcVersion, ID: json.RawMessage("1"), Method: "eth_chainId"})
		resp, err := s.forwardRaw(ctx, reqBody)
		if err != nil || resp.Error != nil || len(resp.Result) == 0 {
			return
		}
		var hexID string
		if err := json.Unmarshal(resp.Result, &hexID); err != nil {
			return
		}
		if c, err := chain.Parse(hexID); err == nil {
			s.upstreamChain = c
		}
	})
	return s.upstreamChain
}

func (s *Server) forwardRaw(ctx context.Context, body []byte) (rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Upstream, bytes.NewReader(body))
	if err != nil {
		return rpcResponse{}, fmt.Errorf("proxy: building upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return rpcResponse{}, fmt.Errorf("proxy: upstream unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return rpcResponse{}, fmt.Errorf("proxy: reading upstream response: %w", err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return rpcResponse{}, fmt.Errorf("proxy: upstream returned a non-JSON-RPC body")
	}
	return resp, nil
}

// ScheduleShutdown is the default shutdown-signal hook for --once: it stops
// srv after a short grace period to let the HTTP response flush.
func ScheduleShutdown(srv *http.Server) func() {
	return func() {
		time.Sleep(50 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
