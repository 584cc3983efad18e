package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txguard/scanner/internal/chain"
	"github.com/txguard/scanner/internal/evmtypes"
)

const dangerousTo = "0x1111111111111111111111111111111111111111"
const safeTo = "0x2222222222222222222222222222222222222222"

func fakeUpstream(t *testing.T, sendTxCount *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &req))

		switch req.Method {
		case "eth_chainId":
			writeSingle(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`"0x1"`)})
		case "eth_blockNumber":
			writeSingle(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`"0x10"`)})
		case "eth_sendTransaction":
			if sendTxCount != nil {
				atomic.AddInt64(sendTxCount, 1)
			}
			writeSingle(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`"0xhash"`)})
		default:
			writeSingle(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`null`)})
		}
	}))
}

func fakeScanByRecipient(recommendation evmtypes.Recommendation, simSuccess bool) ScanFunc {
	return func(ctx context.Context, input *evmtypes.CalldataInput) (*ScanOutcome, error) {
		return &ScanOutcome{Recommendation: recommendation, SimulationSuccess: simSuccess}, nil
	}
}

func newTestServer(t *testing.T, upstream string, scan ScanFunc, cfg Config) *Server {
	t.Helper()
	cfg.Upstream = upstream
	cfg.Chain = chain.Ethereum
	if cfg.Threshold == "" {
		cfg.Threshold = evmtypes.RecommendationWarning
	}
	return NewServer(cfg, scan, nil, nil)
}

func TestServeHTTP_OptionsReturns204WithCORS(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeHTTP_GetReturnsHealthJSON(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeHTTP_ParseErrorReturnsNeg32700(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	srv.ServeHTTP(w, r)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
}

func TestServeHTTP_NonObjectNonArrayReturnsNeg32600(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`"just a string"`))
	srv.ServeHTTP(w, r)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestServeHTTP_ForwardsNonInterceptedMethodVerbatim(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	payload := `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	srv.ServeHTTP(w, r)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "0x10", result)
}

func TestServeHTTP_BlocksDangerousSendTransaction(t *testing.T) {
	var sendTxCount int64
	upstream := fakeUpstream(t, &sendTxCount)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationDanger, true), Config{
		Threshold: evmtypes.RecommendationWarning,
		OnRisk:    ActionBlock,
	})

	payload := `{"jsonrpc":"2.0","id":1,"method":"eth_sendTransaction","params":[{"to":"` + dangerousTo + `","value":"0x0"}]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	srv.ServeHTTP(w, r)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, 4001, resp.Error.Code)
	assert.Equal(t, int64(0), atomic.LoadInt64(&sendTxCount))
}

func TestServeHTTP_ForwardsSafeSendTransaction(t *testing.T) {
	var sendTxCount int64
	upstream := fakeUpstream(t, &sendTxCount)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{
		Threshold: evmtypes.RecommendationWarning,
	})

	payload := `{"jsonrpc":"2.0","id":1,"method":"eth_sendTransaction","params":[{"to":"` + safeTo + `","value":"0x0"}]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	srv.ServeHTTP(w, r)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
	assert.Equal(t, int64(1), atomic.LoadInt64(&sendTxCount))
}

func TestServeHTTP_BatchOfOnlyNotificationsReturns204(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	payload := `[
		{"jsonrpc":"2.0","method":"eth_blockNumber","params":[]},
		{"jsonrpc":"2.0","method":"eth_blockNumber","params":[]}
	]`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestServeHTTP_ScanIgnoresClientDisconnect(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()

	var sawCanceled bool
	scan := func(ctx context.Context, input *evmtypes.CalldataInput) (*ScanOutcome, error) {
		sawCanceled = ctx.Err() != nil
		return &ScanOutcome{Recommendation: evmtypes.RecommendationOK, SimulationSuccess: true}, nil
	}
	srv := newTestServer(t, upstream.URL, scan, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := `{"jsonrpc":"2.0","id":1,"method":"eth_sendTransaction","params":[{"to":"` + safeTo + `","value":"0x0"}]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)).WithContext(ctx)
	srv.ServeHTTP(w, r)

	assert.False(t, sawCanceled, "scan must not inherit the requesting client's cancellation")
}

func TestServeHTTP_BatchProcessesEntriesInOrder(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	defer upstream.Close()
	srv := newTestServer(t, upstream.URL, fakeScanByRecipient(evmtypes.RecommendationOK, true), Config{})

	payload := `[
		{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]},
		{"jsonrpc":"2.0","id":2,"method":"eth_blockNumber","params":[]}
	]`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	srv.ServeHTTP(w, r)

	var resps []rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resps))
	require.Len(t, resps, 2)
	assert.Equal(t, json.RawMessage("1"), resps[0].ID)
	assert.Equal(t, json.RawMessage("2"), resps[1].ID)
}

