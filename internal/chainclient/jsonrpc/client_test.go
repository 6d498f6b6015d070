package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/competition-indexer/pkg/metrics"
)

const testAddress = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

type fakeTx struct {
	sig       string
	slot      uint64
	failed    bool
	missing   bool
	blockTime int64
	logs      []string
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// fakeLedger serves getSignaturesForAddress and getTransaction over a fixed
// history, newest first.
type fakeLedger struct {
	mu        sync.Mutex
	history   []fakeTx
	failSigs  bool
	sigCalls  []map[string]any
	batchSize []int
}

func (f *fakeLedger) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
			var reqs []rpcRequest
			require.NoError(t, json.Unmarshal(body, &reqs))
			f.mu.Lock()
			f.batchSize = append(f.batchSize, len(reqs))
			f.mu.Unlock()
			resps := make([]rpcResponse, 0, len(reqs))
			for _, req := range reqs {
				resps = append(resps, f.handle(t, req))
			}
			require.NoError(t, json.NewEncoder(w).Encode(resps))
			return
		}
		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.NoError(t, json.NewEncoder(w).Encode(f.handle(t, req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeLedger) handle(t *testing.T, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case methodGetSignatures:
		var addr string
		require.NoError(t, json.Unmarshal(req.Params[0], &addr))
		require.Equal(t, testAddress, addr)
		var cfg map[string]any
		require.NoError(t, json.Unmarshal(req.Params[1], &cfg))

		f.mu.Lock()
		f.sigCalls = append(f.sigCalls, cfg)
		fail := f.failSigs
		f.mu.Unlock()
		if fail {
			resp.Error = &rpcError{Code: -32005, Message: "node is behind"}
			return resp
		}
		resp.Result = f.signatures(cfg)
	case methodGetTransaction:
		var sig string
		require.NoError(t, json.Unmarshal(req.Params[0], &sig))
		resp.Result = f.transaction(sig)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	}
	return resp
}

func (f *fakeLedger) signatures(cfg map[string]any) []map[string]any {
	before, _ := cfg["before"].(string)
	until, _ := cfg["until"].(string)
	limit := int(cfg["limit"].(float64))

	start := 0
	if before != "" {
		for i, tx := range f.history {
			if tx.sig == before {
				start = i + 1
			}
		}
	}
	out := []map[string]any{}
	for _, tx := range f.history[start:] {
		if tx.sig == until || len(out) == limit {
			break
		}
		var errVal any
		if tx.failed {
			errVal = map[string]any{"InstructionError": []any{0, "Custom"}}
		}
		out = append(out, map[string]any{
			"signature": tx.sig,
			"slot":      tx.slot,
			"err":       errVal,
			"blockTime": tx.blockTime,
		})
	}
	return out
}

func (f *fakeLedger) transaction(sig string) any {
	for _, tx := range f.history {
		if tx.sig != sig || tx.missing {
			continue
		}
		return map[string]any{
			"slot":      tx.slot,
			"blockTime": tx.blockTime,
			"meta": map[string]any{
				"err":         nil,
				"logMessages": tx.logs,
			},
		}
	}
	return nil
}

func history(n int) []fakeTx {
	txs := make([]fakeTx, 0, n)
	for i := n; i >= 1; i-- {
		txs = append(txs, fakeTx{
			sig:       fmt.Sprintf("sig%02d", i),
			slot:      uint64(100 + i),
			blockTime: int64(1700000000 + i),
			logs:      []string{fmt.Sprintf("Program log: tx %d", i)},
		})
	}
	return txs
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(t.Context(), url, testAddress, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew_InvalidAddress(t *testing.T) {
	t.Parallel()

	_, err := New(t.Context(), "http://127.0.0.1:1", "not-a-key")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestFetchPriorBatches_OldestFirstSkippingFailures(t *testing.T) {
	t.Parallel()

	f := &fakeLedger{history: history(5)}
	f.history[1].failed = true  // sig04
	f.history[3].missing = true // sig02
	srv := f.serve(t)
	c := newClient(t, srv.URL)

	page, err := c.FetchPriorBatches(t.Context(), "", "", 10)
	require.NoError(t, err)

	assert.Equal(t, 5, page.Scanned)
	assert.Equal(t, "sig01", page.EarliestSig)
	assert.Equal(t, uint64(101), page.EarliestSlot)
	assert.Equal(t, "sig05", page.MostRecentSig)
	require.NotNil(t, page.MostRecentBlockTime)
	assert.Equal(t, int64(1700000005), *page.MostRecentBlockTime)

	var got []string
	for _, e := range page.Entries {
		got = append(got, e.Signature)
	}
	assert.Equal(t, []string{"sig01", "sig03", "sig05"}, got)

	first := page.Entries[0]
	assert.Equal(t, uint64(101), first.Slot)
	assert.Equal(t, []string{"Program log: tx 1"}, first.Logs)
	require.NotNil(t, first.BlockTime)
	assert.Equal(t, int64(1700000001), *first.BlockTime)

	require.Len(t, f.sigCalls, 1)
	assert.Equal(t, "confirmed", f.sigCalls[0]["commitment"])
	assert.NotContains(t, f.sigCalls[0], "before")
	assert.NotContains(t, f.sigCalls[0], "until")
}

func TestFetchPriorBatches_Paging(t *testing.T) {
	t.Parallel()

	f := &fakeLedger{history: history(6)}
	srv := f.serve(t)
	c := newClient(t, srv.URL, WithCommitment("finalized"))

	page, err := c.FetchPriorBatches(t.Context(), "sig05", "sig01", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Scanned)
	assert.Equal(t, "sig03", page.EarliestSig)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "sig03", page.Entries[0].Signature)
	assert.Equal(t, "sig04", page.Entries[1].Signature)

	page, err = c.FetchPriorBatches(t.Context(), page.EarliestSig, "sig01", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Scanned)
	assert.Equal(t, "sig02", page.EarliestSig)

	page, err = c.FetchPriorBatches(t.Context(), page.EarliestSig, "sig01", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Scanned)
	assert.Empty(t, page.Entries)
	assert.Empty(t, page.EarliestSig)

	assert.Equal(t, "sig05", f.sigCalls[0]["before"])
	assert.Equal(t, "sig01", f.sigCalls[0]["until"])
	assert.Equal(t, "finalized", f.sigCalls[0]["commitment"])
}

func TestFetchPriorBatches_AllFailedPageKeepsCursor(t *testing.T) {
	t.Parallel()

	f := &fakeLedger{history: history(2)}
	f.history[0].failed = true
	f.history[1].failed = true
	srv := f.serve(t)
	c := newClient(t, srv.URL)

	page, err := c.FetchPriorBatches(t.Context(), "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Scanned)
	assert.Empty(t, page.Entries)
	assert.Equal(t, "sig01", page.EarliestSig)
	assert.Equal(t, float64(MaxPageSize), f.sigCalls[0]["limit"])
}

func TestFetchPriorBatches_ChunksTransactionLookups(t *testing.T) {
	t.Parallel()

	f := &fakeLedger{history: history(5)}
	srv := f.serve(t)
	c := newClient(t, srv.URL, WithChunkSize(2), WithConcurrency(1))

	page, err := c.FetchPriorBatches(t.Context(), "", "", 5)
	require.NoError(t, err)

	var got []string
	for _, e := range page.Entries {
		got = append(got, e.Signature)
	}
	assert.Equal(t, []string{"sig01", "sig02", "sig03", "sig04", "sig05"}, got)
	assert.ElementsMatch(t, []int{2, 2, 1}, f.batchSize)
}

func TestFetchPriorBatches_RPCError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	f := &fakeLedger{history: history(3), failSigs: true}
	srv := f.serve(t)
	c := newClient(t, srv.URL, WithMetrics(m))

	page, err := c.FetchPriorBatches(t.Context(), "", "", 10)
	require.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "node is behind")

	n, err := testutil.GatherAndCount(reg, "indexer_rpc_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFetchPriorBatches_ServerDown(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL)

	_, err := c.FetchPriorBatches(t.Context(), "", "", 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
