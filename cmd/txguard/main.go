// Command txguard is the scanner's CLI: pre-signature scans, Safe
// MultiSend batch ingest, standalone approval checks, and the JSON-RPC
// interception proxy, all wired over the same internal analyzer.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/txguard/scanner/internal/analyzer"
	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/config"
	"github.com/txguard/scanner/internal/decode"
	"github.com/txguard/scanner/internal/evmtypes"
	"github.com/txguard/scanner/internal/httpguard"
	"github.com/txguard/scanner/internal/proxy"
	"github.com/txguard/scanner/internal/providers"
	"github.com/txguard/scanner/internal/safeingest"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "scan":
		code = runScan(os.Args[2:])
	case "safe":
		code = runSafe(os.Args[2:])
	case "approval":
		code = runApproval(os.Args[2:])
	case "proxy":
		code = runProxy(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "txguard: unknown subcommand %q\n", os.Args[1])
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: txguard <scan|safe|approval|proxy> [flags]")
}

// exit codes per the policy/fatal-user split: 0 clean, 1 fatal-user error,
// 2 policy-driven (recommendation >= --fail-on).
const (
	exitOK     = 0
	exitFatal  = 1
	exitPolicy = 2
)

// ---- scan ----

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	calldata := fs.String("calldata", "", "raw hex payload, canonical JSON {to,data,chain,value,from}, @file, or - for stdin")
	to := fs.String("to", "", "recipient address")
	from := fs.String("from", "", "sender address")
	value := fs.String("value", "0", "wei value")
	data := fs.String("data", "", "calldata hex")
	chainFlag := fs.String("chain", "ethereum", "chain name or id")
	format := fs.String("format", "text", "output format: text|json")
	failOn := fs.String("fail-on", "warning", "recommendation threshold for a non-zero exit: caution|warning|danger")
	offline := fs.Bool("offline", false, "arm the outbound HTTP allowlist guard (no providers are wired regardless)")
	output := fs.String("output", "-", "output path, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	input, err := resolveScanInput(*calldata, *to, *from, *data, *value, *chainFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard scan: %v\n", err)
		return exitFatal
	}

	threshold, err := parseRecommendation(*failOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard scan: %v\n", err)
		return exitFatal
	}

	if *offline {
		httpguard.Install(http.DefaultClient, nil, true)
	}

	result, err := analyzeOffline(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard scan: %v\n", err)
		return exitFatal
	}

	if err := writeScanResult(*output, *format, result); err != nil {
		fmt.Fprintf(os.Stderr, "txguard scan: %v\n", err)
		return exitFatal
	}

	if result.Recommendation.AtLeast(threshold) {
		return exitPolicy
	}
	return exitOK
}

// resolveScanInput builds a CalldataInput either from --calldata (raw hex
// or canonical JSON, optionally read from @file/stdin) or from the discrete
// --to/--from/--data/--value/--chain flags.
func resolveScanInput(calldataArg, to, from, data, value, chainArg string) (*evmtypes.CalldataInput, error) {
	if calldataArg == "" {
		return evmtypes.NewCalldataInput(to, from, data, value, chainArg)
	}

	raw, err := readCalldataArg(calldataArg)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var shaped struct {
			To    string `json:"to"`
			From  string `json:"from"`
			Data  string `json:"data"`
			Value string `json:"value"`
			Chain string `json:"chain"`
		}
		if err := json.Unmarshal([]byte(trimmed), &shaped); err != nil {
			return nil, fmt.Errorf("parsing --calldata JSON: %w", err)
		}
		if shaped.Chain == "" {
			shaped.Chain = chainArg
		}
		return evmtypes.NewCalldataInput(shaped.To, shaped.From, shaped.Data, shaped.Value, shaped.Chain)
	}

	return evmtypes.NewCalldataInput(to, from, trimmed, value, chainArg)
}

func readCalldataArg(arg string) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		return string(b), err
	default:
		return arg, nil
	}
}

func parseRecommendation(s string) (evmtypes.Recommendation, error) {
	switch evmtypes.Recommendation(strings.ToLower(s)) {
	case evmtypes.RecommendationOK:
		return evmtypes.RecommendationOK, nil
	case evmtypes.RecommendationCaution:
		return evmtypes.RecommendationCaution, nil
	case evmtypes.RecommendationWarning:
		return evmtypes.RecommendationWarning, nil
	case evmtypes.RecommendationDanger:
		return evmtypes.RecommendationDanger, nil
	default:
		return "", fmt.Errorf("unrecognized --fail-on %q", s)
	}
}

// analyzeOffline runs the analyzer with no provider fan-out wired. Concrete
// HTTP-backed providers (Etherscan, Sourcify, a labels feed, ...) are
// deployment plumbing the provider interfaces deliberately leave external;
// wiring one in is a matter of implementing providers.Set's interfaces
// against a real API and passing the result here.
func analyzeOffline(input *evmtypes.CalldataInput) (*evmtypes.AnalysisResult, error) {
	prov := providers.Run(context.Background(), providers.Set{}, providers.PolicyDefault, input.Chain, input.To.Hex(), nil)
	return analyzer.Analyze(input, nil, prov, nil, nil, nil)
}

func writeScanResult(output, format string, result *evmtypes.AnalysisResult) error {
	var rendered string
	switch format {
	case "json":
		b, err := json.MarshalIndent(map[string]interface{}{"scan": result}, "", "  ")
		if err != nil {
			return err
		}
		rendered = string(b) + "\n"
	default:
		rendered = renderText(result)
	}

	if output == "-" || output == "" {
		_, err := fmt.Fprint(os.Stdout, rendered)
		return err
	}
	return os.WriteFile(output, []byte(rendered), 0o644)
}

func renderText(result *evmtypes.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "recommendation: %s (confidence: %s)\n", result.Recommendation, result.Confidence.Level)
	if result.Intent != "" {
		fmt.Fprintf(&b, "intent: %s\n", result.Intent)
	}
	if len(result.Findings) == 0 {
		b.WriteString("findings: none\n")
	} else {
		b.WriteString("findings:\n")
		for _, f := range result.Findings {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Level, f.Code, f.Message)
		}
	}
	return b.String()
}

// ---- safe ----

func runSafe(args []string) int {
	fs := flag.NewFlagSet("safe", flag.ContinueOnError)
	safeTxJSON := fs.String("safe-tx-json", "", "path to a file holding the MultiSend transactions byte payload (hex)")
	format := fs.String("format", "text", "output format: text|json")
	failOn := fs.String("fail-on", "warning", "recommendation threshold for a non-zero exit")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: txguard safe <chain> [--safe-tx-json <path>]")
		return exitFatal
	}
	ch, err := chain.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard safe: %v\n", err)
		return exitFatal
	}
	if *safeTxJSON == "" {
		fmt.Fprintln(os.Stderr, "txguard safe: --safe-tx-json is required (the Safe Transaction Service client is an external collaborator, not wired here)")
		return exitFatal
	}

	threshold, err := parseRecommendation(*failOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard safe: %v\n", err)
		return exitFatal
	}

	raw, err := os.ReadFile(*safeTxJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard safe: %v\n", err)
		return exitFatal
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard safe: decoding transactions payload: %v\n", err)
		return exitFatal
	}

	batch := decode.DecodeMultiSend(decode.DecodeContext{}, payload)
	entries := safeingest.Analyze(context.Background(), ch, batch, func(ctx context.Context, input *evmtypes.CalldataInput) (*evmtypes.AnalysisResult, error) {
		return analyzeOffline(input)
	})

	worst := evmtypes.RecommendationOK
	for i, e := range entries {
		if e.Result != nil && e.Result.Recommendation.AtLeast(worst) {
			worst = e.Result.Recommendation
		}
		printSafeEntry(i, e, *format)
	}

	if worst.AtLeast(threshold) {
		return exitPolicy
	}
	return exitOK
}

func printSafeEntry(index int, e safeingest.Entry, format string) {
	if format == "json" {
		b, _ := json.MarshalIndent(e, "", "  ")
		fmt.Fprintf(os.Stdout, "%s\n", b)
		return
	}
	if e.Err != nil {
		fmt.Fprintf(os.Stdout, "entry %d: error: %v\n", index, e.Err)
		return
	}
	fmt.Fprintf(os.Stdout, "entry %d: %s\n", index, renderText(e.Result))
}

// ---- approval ----

var approveSelector = [4]byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)

func runApproval(args []string) int {
	fs := flag.NewFlagSet("approval", flag.ContinueOnError)
	token := fs.String("token", "", "ERC-20 token contract address")
	spender := fs.String("spender", "", "spender address")
	amount := fs.String("amount", "", "approval amount, decimal or \"max\"")
	expected := fs.String("expected", "", "the spender address the caller actually trusts, for a mismatch check")
	chainFlag := fs.String("chain", "ethereum", "chain name or id")
	failOn := fs.String("fail-on", "warning", "recommendation threshold for a non-zero exit")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if *token == "" || *spender == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "usage: txguard approval --token <addr> --spender <addr> --amount <int|max> [--expected <addr>] [--chain <chain>]")
		return exitFatal
	}

	threshold, err := parseRecommendation(*failOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard approval: %v\n", err)
		return exitFatal
	}

	amt, err := parseApprovalAmount(*amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard approval: %v\n", err)
		return exitFatal
	}

	if !common.IsHexAddress(*spender) {
		fmt.Fprintf(os.Stderr, "txguard approval: %q is not a valid address\n", *spender)
		return exitFatal
	}
	data := encodeApprove(common.HexToAddress(*spender), amt)

	input, err := evmtypes.NewCalldataInput(*token, "", hex.EncodeToString(data), "0", *chainFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard approval: %v\n", err)
		return exitFatal
	}

	var spenderInfo *analyzer.SpenderInfo
	if *expected != "" {
		spenderInfo = &analyzer.SpenderInfo{
			Verified: strings.EqualFold(*expected, *spender),
		}
	}

	prov := providers.Run(context.Background(), providers.Set{}, providers.PolicyDefault, input.Chain, input.To.Hex(), nil)
	result, err := analyzer.Analyze(input, nil, prov, spenderInfo, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard approval: %v\n", err)
		return exitFatal
	}

	fmt.Fprint(os.Stdout, renderText(result))
	if result.Recommendation.AtLeast(threshold) {
		return exitPolicy
	}
	return exitOK
}

func parseApprovalAmount(s string) (*big.Int, error) {
	if strings.EqualFold(s, "max") {
		return decode.MaxUint256(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid --amount %q", s)
	}
	return v, nil
}

func encodeApprove(spender common.Address, amount *big.Int) []byte {
	out := make([]byte, 0, 4+32+32)
	out = append(out, approveSelector[:]...)
	out = append(out, common.LeftPadBytes(spender.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(amount.Bytes(), 32)...)
	return out
}

// ---- proxy ----

func runProxy(args []string) int {
	fs := flag.NewFlagSet("proxy", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the JSON config file")
	upstream := fs.String("upstream", "", "upstream JSON-RPC URL (overrides config)")
	listen := fs.String("listen", "127.0.0.1:8645", "address to listen on")
	chainFlag := fs.String("chain", "", "fallback chain when calldata carries none (takes precedence over the upstream probe)")
	threshold := fs.String("threshold", "warning", "recommendation rank at/above which a transaction is risky")
	onRisk := fs.String("on-risk", "block", "block|prompt: what to do with a risky transaction when interactive")
	interactive := fs.Bool("interactive", false, "prompt on stdin for risky transactions instead of always blocking")
	allowPromptOnSimFail := fs.Bool("allow-prompt-when-simulation-fails", false, "still prompt (instead of blocking) when simulation fails")
	recordDir := fs.String("record-dir", "", "directory to record each intercepted request under")
	once := fs.Bool("once", false, "shut down after the first intercepted request is handled")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard proxy: %v\n", err)
		return exitFatal
	}

	upstreamURL := *upstream
	if upstreamURL == "" {
		upstreamURL = cfg.ProxyUpstream
	}
	if upstreamURL == "" {
		fmt.Fprintln(os.Stderr, "txguard proxy: missing upstream RPC URL (--upstream, TXGUARD_UPSTREAM, or config)")
		return exitFatal
	}

	thresholdRec, err := parseRecommendation(*threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txguard proxy: %v\n", err)
		return exitFatal
	}
	onRiskAction := proxy.ActionBlock
	if strings.EqualFold(*onRisk, "prompt") {
		onRiskAction = proxy.ActionPrompt
	}

	var fallbackChain chain.Chain
	if *chainFlag != "" {
		fallbackChain, err = chain.Parse(*chainFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "txguard proxy: %v\n", err)
			return exitFatal
		}
	}

	client := http.DefaultClient
	if cfg.Offline {
		allowlist := []string{upstreamURL}
		client = httpguard.Install(&http.Client{}, allowlist, cfg.AllowLocalhost)
	}

	var prompter proxy.Prompter
	if *interactive {
		prompter = stdinPrompter{}
	}

	proxyCfg := proxy.Config{
		Upstream:                       upstreamURL,
		Chain:                          fallbackChain,
		Threshold:                      thresholdRec,
		OnRisk:                         onRiskAction,
		AllowPromptWhenSimulationFails: *allowPromptOnSimFail,
		RecordDir:                      *recordDir,
		Once:                           *once,
		HTTPClient:                     client,
	}

	srv := &http.Server{Addr: *listen}
	var shutdownSignal func()
	if *once {
		shutdownSignal = proxy.ScheduleShutdown(srv)
	}

	pxy := proxy.NewServer(proxyCfg, scanViaAnalyzer, prompter, shutdownSignal)
	srv.Handler = pxy

	slog.Info("proxy starting", "addr", *listen, "upstream", upstreamURL, "offline", cfg.Offline, "once", *once)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("proxy server error", "err", err)
		return exitFatal
	}
	return exitOK
}

// scanViaAnalyzer is the proxy.ScanFunc wiring: every intercepted
// transaction runs the same offline analyzer pipeline a `scan` invocation
// would, without a simulation backend (SimulationSuccess defaults true, so
// policy decisions fall entirely on the recommendation).
func scanViaAnalyzer(ctx context.Context, input *evmtypes.CalldataInput) (*proxy.ScanOutcome, error) {
	result, err := analyzeOffline(input)
	if err != nil {
		return nil, err
	}
	return &proxy.ScanOutcome{
		Recommendation:    result.Recommendation,
		SimulationSuccess: true,
		Response:          result,
		RenderedText:      analyzer.RenderedVerdict(result.Recommendation, result.Simulation),
	}, nil
}

// stdinPrompter asks a controlling terminal for a yes/no on risky
// transactions when the proxy runs with --interactive.
type stdinPrompter struct{}

func (stdinPrompter) Confirm(ctx context.Context, input *evmtypes.CalldataInput, outcome *proxy.ScanOutcome) bool {
	fmt.Fprintf(os.Stderr, "risky transaction to %s: recommendation=%s — allow? [y/N] ", input.To.Hex(), outcome.Recommendation)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
