// Package ledger fetches validated ledgers from the validators under test
// and records them as iteration results.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mavleo96/rocket/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultCacheSize  = 256

	// notFound replaces a ledger hash missing from a response
	notFound = "NOT FOUND"
)

var ErrLedgerRequestFailed = errors.New("ledger request failed")

// Ledger is the part of a validated ledger the harness records. Index and
// CloseTime are -1 when the node did not report them.
type Ledger struct {
	Hash         string
	Index        int64
	CloseTime    int64
	Transactions []string
}

// Fetcher retrieves one ledger from one validator
type Fetcher interface {
	FetchLedger(ctx context.Context, addr models.SocketAddress, seq int) (*Ledger, error)
}

type cacheKey struct {
	addr string
	seq  int
}

// WSFetcher queries the admin websocket API of a validator with the ledger
// command. Fetched ledgers are cached since a validated ledger never changes.
type WSFetcher struct {
	dialer     *websocket.Dialer
	cache      *lru.Cache[cacheKey, *Ledger]
	retries    int
	retryDelay time.Duration
	nextID     atomic.Uint64
}

// CreateWSFetcher creates a fetcher retrying failed requests retries times
func CreateWSFetcher(retries int, retryDelay time.Duration, cacheSize int) (*WSFetcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, *Ledger](cacheSize)
	if err != nil {
		return nil, err
	}
	return &WSFetcher{
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		cache:      cache,
		retries:    retries,
		retryDelay: retryDelay,
	}, nil
}

type ledgerRequest struct {
	ID           uint64 `json:"id"`
	Command      string `json:"command"`
	LedgerIndex  int    `json:"ledger_index"`
	Transactions bool   `json:"transactions"`
}

type ledgerResponse struct {
	ID           uint64 `json:"id"`
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Ledger *ledgerJSON `json:"ledger"`
	} `json:"result"`
}

type ledgerJSON struct {
	LedgerHash   string            `json:"ledger_hash"`
	LedgerIndex  json.RawMessage   `json:"ledger_index"`
	CloseTime    json.RawMessage   `json:"close_time"`
	Transactions []json.RawMessage `json:"transactions"`
}

// FetchLedger returns ledger seq as seen by the validator at addr
func (f *WSFetcher) FetchLedger(ctx context.Context, addr models.SocketAddress, seq int) (*Ledger, error) {
	key := cacheKey{addr: addr.String(), seq: seq}
	if l, ok := f.cache.Get(key); ok {
		return l, nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
			log.Debugf("[FetchLedger] Retrying ledger %d from %s (%d/%d)", seq, addr, attempt, f.retries)
		}
		l, err := f.request(ctx, addr, seq)
		if err == nil {
			f.cache.Add(key, l)
			return l, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch ledger %d from %s: %w", seq, addr, lastErr)
}

func (f *WSFetcher) request(ctx context.Context, addr models.SocketAddress, seq int) (*Ledger, error) {
	conn, _, err := f.dialer.DialContext(ctx, "ws://"+addr.String(), nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}

	id := f.nextID.Add(1)
	req := ledgerRequest{ID: id, Command: "ledger", LedgerIndex: seq, Transactions: true}
	if err := conn.WriteJSON(req); err != nil {
		return nil, err
	}
	for {
		var resp ledgerResponse
		if err := conn.ReadJSON(&resp); err != nil {
			return nil, err
		}
		if resp.ID != id {
			continue
		}
		if resp.Status != "success" || resp.Result.Ledger == nil {
			return nil, fmt.Errorf("%w: %s %s", ErrLedgerRequestFailed, resp.Error, resp.ErrorMessage)
		}
		return resp.Result.Ledger.toLedger(), nil
	}
}

func (j *ledgerJSON) toLedger() *Ledger {
	l := &Ledger{
		Hash:         j.LedgerHash,
		Index:        parseNumber(j.LedgerIndex),
		CloseTime:    parseNumber(j.CloseTime),
		Transactions: make([]string, 0, len(j.Transactions)),
	}
	if l.Hash == "" {
		l.Hash = notFound
	}
	for _, raw := range j.Transactions {
		if hash := transactionHash(raw); hash != "" {
			l.Transactions = append(l.Transactions, hash)
		}
	}
	return l
}

// parseNumber accepts a JSON number or a numeric string. Anything else is -1.
func parseNumber(raw json.RawMessage) int64 {
	raw = bytes.Trim(raw, `"`)
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || v < 0 {
		return -1
	}
	return v
}

// transactionHash reads a transaction entry, either a bare hash or an
// expanded object carrying one
func transactionHash(raw json.RawMessage) string {
	var hash string
	if err := json.Unmarshal(raw, &hash); err == nil {
		return hash
	}
	var tx struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &tx); err == nil {
		return tx.Hash
	}
	return ""
}
