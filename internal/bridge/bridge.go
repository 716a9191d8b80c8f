// Package bridge provides the single-writer storage bridge over the
// embedded SQLite database.
//
// SQLite is only safe here when every statement runs on one goroutine, so
// the bridge spawns a dedicated worker that takes exclusive ownership of
// the *sql.DB and a prepared-statement cache. All other components submit
// correlation-tagged requests over a bounded FIFO channel and wait on a
// per-request handle; the worker executes strictly in arrival order, one
// statement at a time. Serialized execution is the deliberate trade-off
// for connection safety, not a bug.
package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrWorkerTerminated is returned for requests that were pending when the
// storage worker crashed. The bridge does not restart the worker.
var ErrWorkerTerminated = errors.New("storage worker terminated")

// ErrClosed is returned for requests submitted after Close.
var ErrClosed = errors.New("storage bridge closed")

type opKind int

const (
	opExecute opKind = iota
	opRun
	opGetOne
	opGetAll
	opShutdown
)

// request is the ephemeral message sent to the worker. The correlation id
// ties the eventual response back to the pending handle.
type request struct {
	id   uint64
	kind opKind
	stmt string
	args []any
}

// response carries either a result payload or an error, tagged with the
// correlation id of the request that produced it.
type response struct {
	id           uint64
	rowsAffected int64
	row          map[string]any
	rows         []map[string]any
	err          error
}

// Bridge multiplexes concurrent logical callers onto the single worker
// goroutine that owns the database connection.
type Bridge struct {
	requests chan request
	done     chan struct{}

	mu      sync.Mutex
	pending map[uint64]chan response
	closed  bool

	nextID     atomic.Uint64
	terminated atomic.Bool
}

// DefaultQueueSize bounds the request channel. Writers block (rather than
// queue unboundedly) when the worker falls this far behind.
const DefaultQueueSize = 64

// New creates a bridge and starts the worker goroutine. The bridge takes
// exclusive ownership of conn; no other component may touch it again.
func New(conn *sql.DB, queueSize int) *Bridge {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bridge{
		requests: make(chan request, queueSize),
		done:     make(chan struct{}),
		pending:  make(map[uint64]chan response),
	}
	go b.worker(conn)
	return b
}

// Execute runs a statement that returns no result (DDL, pragmas).
func (b *Bridge) Execute(ctx context.Context, stmt string) error {
	resp, err := b.submit(ctx, opExecute, stmt, nil)
	if err != nil {
		return err
	}
	return resp.err
}

// Run executes a statement with positional parameters and returns the
// number of rows affected.
func (b *Bridge) Run(ctx context.Context, stmt string, args ...any) (int64, error) {
	resp, err := b.submit(ctx, opRun, stmt, args)
	if err != nil {
		return 0, err
	}
	return resp.rowsAffected, resp.err
}

// GetOne executes a query and returns the first row as a column-keyed map,
// or nil when the query matches nothing.
func (b *Bridge) GetOne(ctx context.Context, stmt string, args ...any) (map[string]any, error) {
	resp, err := b.submit(ctx, opGetOne, stmt, args)
	if err != nil {
		return nil, err
	}
	return resp.row, resp.err
}

// GetAll executes a query and returns every row as a column-keyed map.
func (b *Bridge) GetAll(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	resp, err := b.submit(ctx, opGetAll, stmt, args)
	if err != nil {
		return nil, err
	}
	return resp.rows, resp.err
}

// Close sends a shutdown request through the same FIFO channel and waits
// for the worker to exit. Requests already queued ahead of the shutdown
// are executed first, so no in-flight write is lost; requests submitted
// after Close are rejected with ErrClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.requests <- request{kind: opShutdown}:
	case <-b.done:
		// Worker already gone (crash); nothing to drain.
	}
	<-b.done
	return nil
}

// submit registers a pending handle, enqueues the request, and waits for
// the matching response. Cancelling ctx abandons the wait only - a request
// already queued cannot be cancelled and will still execute.
func (b *Bridge) submit(ctx context.Context, kind opKind, stmt string, args []any) (response, error) {
	id := b.nextID.Add(1)
	handle := make(chan response, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return response{}, b.exitErr()
	}
	b.pending[id] = handle
	b.mu.Unlock()

	req := request{id: id, kind: kind, stmt: stmt, args: args}
	select {
	case b.requests <- req:
	case <-b.done:
		b.forget(id)
		return response{}, b.exitErr()
	case <-ctx.Done():
		b.forget(id)
		return response{}, ctx.Err()
	}

	select {
	case resp := <-handle:
		if resp.id != id {
			// Correlation mismatch would mean the pending map is corrupt.
			return response{}, fmt.Errorf("storage bridge: response id %d does not match request id %d", resp.id, id)
		}
		return resp, nil
	case <-ctx.Done():
		b.forget(id)
		return response{}, ctx.Err()
	}
}

// exitErr distinguishes a graceful Close from a worker crash.
func (b *Bridge) exitErr() error {
	if b.terminated.Load() {
		return ErrWorkerTerminated
	}
	return ErrClosed
}

// forget removes a pending handle. Safe to call after delivery.
func (b *Bridge) forget(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// deliver resolves the pending handle matching the response, if the caller
// has not already abandoned it.
func (b *Bridge) deliver(resp response) {
	b.mu.Lock()
	handle, ok := b.pending[resp.id]
	if ok {
		delete(b.pending, resp.id)
	}
	b.mu.Unlock()
	if ok {
		handle <- resp
	}
}

// failAll rejects every pending request. Called when the worker dies.
func (b *Bridge) failAll(err error) {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[uint64]chan response)
	b.mu.Unlock()

	for id, handle := range pending {
		handle <- response{id: id, err: err}
	}
}

// worker is the single execution context that owns the database handle.
func (b *Bridge) worker(conn *sql.DB) {
	stmts := make(map[string]*sql.Stmt)

	defer func() {
		if r := recover(); r != nil {
			b.terminated.Store(true)
			b.failAll(fmt.Errorf("%w: %v", ErrWorkerTerminated, r))
		}
		for _, s := range stmts {
			s.Close()
		}
		if conn != nil {
			conn.Close()
		}
		close(b.done)
	}()

	for req := range b.requests {
		if req.kind == opShutdown {
			b.drainAfterShutdown()
			return
		}
		b.deliver(b.handle(conn, stmts, req))
	}
}

// drainAfterShutdown rejects requests that raced past the closed check
// while the shutdown message was in flight.
func (b *Bridge) drainAfterShutdown() {
	for {
		select {
		case req := <-b.requests:
			if req.kind != opShutdown {
				b.deliver(response{id: req.id, err: ErrClosed})
			}
		default:
			b.failAll(ErrClosed)
			return
		}
	}
}

// handle executes one request against the owned connection.
func (b *Bridge) handle(conn *sql.DB, stmts map[string]*sql.Stmt, req request) response {
	stmt, err := prepared(conn, stmts, req.stmt)
	if err != nil {
		return response{id: req.id, err: err}
	}

	switch req.kind {
	case opExecute:
		_, err := stmt.Exec(req.args...)
		return response{id: req.id, err: err}

	case opRun:
		res, err := stmt.Exec(req.args...)
		if err != nil {
			return response{id: req.id, err: err}
		}
		affected, err := res.RowsAffected()
		return response{id: req.id, rowsAffected: affected, err: err}

	case opGetOne:
		rows, err := queryRows(stmt, req.args)
		if err != nil {
			return response{id: req.id, err: err}
		}
		if len(rows) == 0 {
			return response{id: req.id}
		}
		return response{id: req.id, row: rows[0]}

	case opGetAll:
		rows, err := queryRows(stmt, req.args)
		return response{id: req.id, rows: rows, err: err}

	default:
		return response{id: req.id, err: fmt.Errorf("unknown bridge operation: %d", req.kind)}
	}
}

// prepared returns the cached prepared statement for text, preparing and
// caching it on first use.
func prepared(conn *sql.DB, stmts map[string]*sql.Stmt, text string) (*sql.Stmt, error) {
	if s, ok := stmts[text]; ok {
		return s, nil
	}
	s, err := conn.Prepare(text)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	stmts[text] = s
	return s, nil
}

// queryRows materializes a result set into column-keyed maps. Rows must be
// fully consumed inside the worker because *sql.Rows cannot safely leave
// the owning goroutine.
func queryRows(stmt *sql.Stmt, args []any) ([]map[string]any, error) {
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if bs, ok := v.([]byte); ok {
				v = string(bs)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
