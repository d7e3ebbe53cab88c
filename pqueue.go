// Package pqueue is a persistent, process-safe FIFO queue of byte payloads
// stored in a directory.
//
// A Queue wraps the on-disk engine with the blocking behavior of an
// in-memory queue: an optional bound, waiting Put and Get, and task
// accounting through TaskDone and Join. Blocking and notification are local
// to one Queue value; the directory itself may be shared by any number of
// Queues in this and other processes.
//
//	q, err := pqueue.Open(pqueue.Options{Path: "/var/lib/app/jobs", MaxSize: 1000})
//	if err != nil {
//		return err
//	}
//	defer q.Close()
//
//	if err := q.Put(ctx, []byte("job-1")); err != nil {
//		return err
//	}
//	item, err := q.Get(ctx)
package pqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/config"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/queue"
)

var (
	// ErrEmpty is returned by GetNowait when no item is available.
	ErrEmpty = queue.ErrEmpty
	// ErrFull is returned by PutNowait when the queue holds MaxSize items.
	ErrFull = errors.New("queue is full")
	// ErrClosed is returned by operations on a closed Queue, including
	// operations blocked when Close was called.
	ErrClosed = queue.ErrClosed
	// ErrIntegrity is returned by Get when the oldest record is unreadable.
	ErrIntegrity = queue.ErrIntegrity
	// ErrTaskDone is returned when TaskDone is called more times than there
	// were items.
	ErrTaskDone = errors.New("task_done called too many times")
)

// DefaultPollInterval is how often blocked callers re-check the directory for
// changes made through other handles.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures a Queue.
type Options struct {
	// Path is the queue directory. Required.
	Path string
	// MaxSize bounds the number of items; Put blocks while the queue is full.
	// Zero means unbounded.
	MaxSize int
	// ChunkSize is the number of records per chunk file (default: 100).
	ChunkSize int
	// Compression applied to new records: none, snappy, s2, zstd, gzip.
	Compression string
	// CompressionLevel is passed to the compressor.
	CompressionLevel int
	// Sync is "immediate" (default) or "none".
	Sync string
	// PollInterval is how often blocked callers re-check the directory.
	// Changes made through this Queue wake waiters immediately; the poll
	// catches changes made by other handles. Negative disables polling.
	// Zero selects DefaultPollInterval.
	PollInterval time.Duration
	// LockPollInterval is the retry interval when a context bounds lock
	// acquisition (default: 10ms).
	LockPollInterval time.Duration
	// MaxRecordSize bounds a single stored record (default: 64MiB).
	MaxRecordSize int
	// Logger receives queue events (default: the process logger).
	Logger *logging.Logger
}

// Queue is a blocking, optionally bounded view of a queue directory.
// All methods are safe for concurrent use.
type Queue struct {
	engine  *queue.DiskQueue
	maxSize int
	poll    time.Duration

	// putMu makes the full check and the put one step for this Queue.
	putMu sync.Mutex

	mu         sync.Mutex
	changed    chan struct{}
	unfinished int64
	closed     bool
}

// Open opens or creates the queue described by opts.
func Open(opts Options) (*Queue, error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("max size must not be negative, got %d", opts.MaxSize)
	}
	ct, err := compression.ParseType(opts.Compression)
	if err != nil {
		return nil, err
	}
	engine, err := queue.Open(queue.Config{
		Path:             opts.Path,
		ChunkSize:        opts.ChunkSize,
		Compression:      ct,
		CompressionLevel: compression.Level(opts.CompressionLevel),
		Sync:             queue.SyncMode(opts.Sync),
		LockPollInterval: opts.LockPollInterval,
		MaxRecordSize:    opts.MaxRecordSize,
		Logger:           opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	size, err := engine.Size()
	if err != nil {
		engine.Close()
		return nil, err
	}

	poll := opts.PollInterval
	if poll == 0 {
		poll = DefaultPollInterval
	}
	return &Queue{
		engine:     engine,
		maxSize:    opts.MaxSize,
		poll:       poll,
		changed:    make(chan struct{}),
		unfinished: size,
	}, nil
}

// OpenFile opens the queue described by a YAML configuration file. The
// logging level applies to this queue only.
func OpenFile(path string) (*Queue, error) {
	cfg, err := config.LoadYAML(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ec := cfg.EngineConfig()
	logger := logging.Default().WithLevel(cfg.LogLevel())
	return Open(Options{
		Path:             ec.Path,
		MaxSize:          cfg.Queue.MaxSize,
		ChunkSize:        ec.ChunkSize,
		Compression:      string(ec.Compression),
		CompressionLevel: int(ec.CompressionLevel),
		Sync:             string(ec.Sync),
		PollInterval:     time.Duration(cfg.Queue.PollInterval),
		LockPollInterval: ec.LockPollInterval,
		MaxRecordSize:    ec.MaxRecordSize,
		Logger:           logger,
	})
}

// Put appends item, waiting while a bounded queue is full. It returns the
// context error if ctx ends first.
func (q *Queue) Put(ctx context.Context, item []byte) error {
	for {
		wait, err := q.tryPut(ctx, item)
		if !errors.Is(err, ErrFull) {
			return err
		}
		if err := q.wait(ctx, wait); err != nil {
			return err
		}
	}
}

// PutNowait appends item or fails with ErrFull.
func (q *Queue) PutNowait(item []byte) error {
	_, err := q.tryPut(context.Background(), item)
	return err
}

// Get removes and returns the oldest item, waiting until one is available.
// It returns the context error if ctx ends first.
func (q *Queue) Get(ctx context.Context) ([]byte, error) {
	for {
		wait, item, err := q.tryGet(ctx)
		if !errors.Is(err, ErrEmpty) {
			return item, err
		}
		if err := q.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// GetNowait removes and returns the oldest item or fails with ErrEmpty.
func (q *Queue) GetNowait() ([]byte, error) {
	_, item, err := q.tryGet(context.Background())
	return item, err
}

// TaskDone marks one previously retrieved item as processed.
func (q *Queue) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		return ErrTaskDone
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.notifyLocked()
	}
	return nil
}

// Join blocks until every item put into the queue, including items recovered
// from disk at open, has been marked with TaskDone.
func (q *Queue) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.unfinished == 0 {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Size returns the number of items in the queue directory.
func (q *Queue) Size() (int64, error) {
	return q.engine.Size()
}

// Empty reports whether the queue holds no items.
func (q *Queue) Empty() (bool, error) {
	n, err := q.engine.Size()
	return n == 0, err
}

// Full reports whether a bounded queue holds MaxSize items or more.
func (q *Queue) Full() (bool, error) {
	if q.maxSize <= 0 {
		return false, nil
	}
	n, err := q.engine.Size()
	return n >= int64(q.maxSize), err
}

// Unfinished returns the number of items not yet marked with TaskDone.
func (q *Queue) Unfinished() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Path returns the queue directory.
func (q *Queue) Path() string {
	return q.engine.Path()
}

// Close wakes every blocked caller with ErrClosed and releases the directory.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.notifyLocked()
	q.mu.Unlock()
	return q.engine.Close()
}

// tryPut attempts one bounded put. It returns the change channel to wait on
// when the queue is full.
func (q *Queue) tryPut(ctx context.Context, item []byte) (<-chan struct{}, error) {
	wait, err := q.observe()
	if err != nil {
		return nil, err
	}

	q.putMu.Lock()
	defer q.putMu.Unlock()

	if q.maxSize > 0 {
		n, err := q.engine.SizeContext(ctx)
		if err != nil {
			return nil, err
		}
		if n >= int64(q.maxSize) {
			return wait, ErrFull
		}
	}
	if err := q.engine.PutContext(ctx, item); err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.unfinished++
	q.notifyLocked()
	q.mu.Unlock()
	return nil, nil
}

// tryGet attempts one get. It returns the change channel to wait on when the
// queue is empty.
func (q *Queue) tryGet(ctx context.Context) (<-chan struct{}, []byte, error) {
	wait, err := q.observe()
	if err != nil {
		return nil, nil, err
	}
	item, err := q.engine.GetContext(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrEmpty) {
			return wait, nil, ErrEmpty
		}
		return nil, nil, err
	}

	q.mu.Lock()
	q.notifyLocked()
	q.mu.Unlock()
	return nil, item, nil
}

// observe returns the current change channel. Taking it before the engine
// call means a change that lands between the call and the wait is not lost.
func (q *Queue) observe() (<-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	return q.changed, nil
}

// wait blocks until ch fires, the poll interval passes, or ctx ends.
func (q *Queue) wait(ctx context.Context, ch <-chan struct{}) error {
	var tick <-chan time.Time
	if q.poll > 0 {
		timer := time.NewTimer(q.poll)
		defer timer.Stop()
		tick = timer.C
	}
	select {
	case <-ch:
		return nil
	case <-tick:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyLocked wakes every waiter. Must hold q.mu.
func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
