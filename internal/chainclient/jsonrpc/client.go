package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ava-labs/competition-indexer/internal/chainclient"
	"github.com/ava-labs/competition-indexer/internal/types"
	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/metrics"
)

const (
	methodGetSignatures  = "getSignaturesForAddress"
	methodGetTransaction = "getTransaction"

	// MaxPageSize is the largest page getSignaturesForAddress serves.
	MaxPageSize = 1000

	DefaultChunkSize   = 100
	DefaultConcurrency = 4
	DefaultCommitment  = "confirmed"
)

var ErrInvalidAddress = errors.New("invalid address: must be a base58 public key")

// Client reads a program's transaction history over JSON-RPC.
type Client struct {
	rpc        *rpc.Client
	address    string
	commitment string
	chunkSize  int
	sem        *semaphore.Weighted
	metrics    *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.Ledger = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCommitment sets the read commitment. Transaction lookups do not support
// "processed", so anything but "finalized" reads at "confirmed".
func WithCommitment(commitment string) Option {
	return func(c *Client) {
		if commitment == "finalized" {
			c.commitment = commitment
		} else {
			c.commitment = DefaultCommitment
		}
	}
}

// WithChunkSize sets how many transactions are requested per batch call.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithConcurrency bounds the number of batch calls in flight per page.
func WithConcurrency(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// New dials url and returns a client paging the history of address.
func New(ctx context.Context, url, address string, opts ...Option) (*Client, error) {
	if _, err := events.ParsePublicKey(address); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial json-rpc: %w", err)
	}

	client := &Client{
		rpc:        c,
		address:    address,
		commitment: DefaultCommitment,
		chunkSize:  DefaultChunkSize,
		sem:        semaphore.NewWeighted(DefaultConcurrency),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

type signatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Err       any    `json:"err"`
	BlockTime *int64 `json:"blockTime"`
}

type transactionMeta struct {
	Err         any      `json:"err"`
	LogMessages []string `json:"logMessages"`
}

type transactionResult struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *transactionMeta `json:"meta"`
}

// FetchPriorBatches lists one page of signatures and fetches the logs of the
// successful ones.
func (c *Client) FetchPriorBatches(ctx context.Context, before, until string, limit int) (*chainclient.Page, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	sigs, err := c.getSignatures(ctx, before, until, limit)
	if err != nil {
		return nil, err
	}

	page := &chainclient.Page{Scanned: len(sigs)}
	if len(sigs) == 0 {
		return page, nil
	}

	// The ledger lists newest first.
	slices.Reverse(sigs)
	slices.SortStableFunc(sigs, func(a, b signatureInfo) int {
		switch {
		case a.Slot < b.Slot:
			return -1
		case a.Slot > b.Slot:
			return 1
		default:
			return 0
		}
	})

	earliest, latest := sigs[0], sigs[len(sigs)-1]
	page.EarliestSig = earliest.Signature
	page.EarliestSlot = earliest.Slot
	page.MostRecentSig = latest.Signature
	page.MostRecentBlockTime = latest.BlockTime

	ok := slices.DeleteFunc(sigs, func(s signatureInfo) bool { return s.Err != nil })
	if len(ok) == 0 {
		return page, nil
	}

	entries, err := c.getTransactions(ctx, ok)
	if err != nil {
		return nil, err
	}
	page.Entries = entries
	return page, nil
}

func (c *Client) getSignatures(ctx context.Context, before, until string, limit int) ([]signatureInfo, error) {
	cfg := map[string]any{
		"limit":      limit,
		"commitment": c.commitment,
	}
	if before != "" {
		cfg["before"] = before
	}
	if until != "" {
		cfg["until"] = until
	}

	var sigs []signatureInfo
	err := c.call(methodGetSignatures, func() error {
		return c.rpc.CallContext(ctx, &sigs, methodGetSignatures, c.address, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures before %q: %w", before, err)
	}
	return sigs, nil
}

// getTransactions fetches sigs in chunks, concurrently, and returns the
// batches in sigs order. Transactions the node no longer serves are skipped.
func (c *Client) getTransactions(ctx context.Context, sigs []signatureInfo) ([]types.TxBatch, error) {
	chunks := slices.Collect(slices.Chunk(sigs, c.chunkSize))
	results := make([][]types.TxBatch, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		if err := c.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer c.sem.Release(1)
			batches, err := c.getTransactionChunk(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = batches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.TxBatch, 0, len(sigs))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *Client) getTransactionChunk(ctx context.Context, sigs []signatureInfo) ([]types.TxBatch, error) {
	cfg := map[string]any{
		"commitment":                     c.commitment,
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}

	elems := make([]rpc.BatchElem, len(sigs))
	results := make([]*transactionResult, len(sigs))
	for i, s := range sigs {
		elems[i] = rpc.BatchElem{
			Method: methodGetTransaction,
			Args:   []any{s.Signature, cfg},
			Result: &results[i],
		}
	}

	err := c.call(methodGetTransaction, func() error {
		return c.rpc.BatchCallContext(ctx, elems)
	})
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}

	out := make([]types.TxBatch, 0, len(sigs))
	for i, s := range sigs {
		if elems[i].Error != nil {
			return nil, fmt.Errorf("get transaction %s: %w", s.Signature, elems[i].Error)
		}
		res := results[i]
		if res == nil || res.Meta == nil || res.Meta.Err != nil {
			continue
		}
		batch := types.TxBatch{
			Signature: s.Signature,
			Slot:      res.Slot,
			Logs:      res.Meta.LogMessages,
			BlockTime: res.BlockTime,
		}
		if batch.Slot == 0 {
			batch.Slot = s.Slot
		}
		if batch.BlockTime == nil {
			batch.BlockTime = s.BlockTime
		}
		out = append(out, batch)
	}
	return out, nil
}

func (c *Client) call(method string, fn func() error) error {
	start := time.Now()
	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	err := fn()
	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())
	return err
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
