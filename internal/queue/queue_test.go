package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/lock"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/meta"
	"github.com/szibis/pqueue/internal/record"
)

func testConfig(dir string, chunkSize int) Config {
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.ChunkSize = chunkSize
	cfg.Sync = SyncNone
	cfg.Logger = logging.New(io.Discard)
	return cfg
}

func openQueue(t *testing.T, cfg Config) *DiskQueue {
	t.Helper()
	q, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func mustPut(t *testing.T, q *DiskQueue, items ...string) {
	t.Helper()
	for _, item := range items {
		if err := q.Put([]byte(item)); err != nil {
			t.Fatalf("Put(%q) failed: %v", item, err)
		}
	}
}

func mustGet(t *testing.T, q *DiskQueue, want string) {
	t.Helper()
	got, err := q.Get()
	if err != nil {
		t.Fatalf("Get() failed, want %q: %v", want, err)
	}
	if string(got) != want {
		t.Fatalf("Get() = %q, want %q", got, want)
	}
}

func mustEmpty(t *testing.T, q *DiskQueue) {
	t.Helper()
	if got, err := q.Get(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Get() = %q, %v; want ErrEmpty", got, err)
	}
}

func mustSize(t *testing.T, q *DiskQueue, want int64) {
	t.Helper()
	got, err := q.Size()
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}
	if got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
}

func mustSnapshot(t *testing.T, q *DiskQueue) meta.Metadata {
	t.Helper()
	m, err := q.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	return m
}

func mustChunks(t *testing.T, q *DiskQueue, want ...string) {
	t.Helper()
	got, err := q.ChunkFiles()
	if err != nil {
		t.Fatalf("ChunkFiles() failed: %v", err)
	}
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChunkFiles() = %v, want %v", got, want)
	}
}

func TestOpen_InitializesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "queue")
	q := openQueue(t, testConfig(dir, 10))

	for _, name := range []string{lock.FileName, meta.FileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if q.ID() == "" {
		t.Error("queue has no ID")
	}
	if q.ChunkSize() != 10 {
		t.Errorf("ChunkSize() = %d, want 10", q.ChunkSize())
	}
	mustSize(t, q, 0)
	mustEmpty(t, q)
	mustChunks(t, q)
}

func TestOpen_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing path", func(c *Config) { c.Path = "" }},
		{"negative chunk size", func(c *Config) { c.ChunkSize = -1 }},
		{"unknown sync mode", func(c *Config) { c.Sync = "sometimes" }},
		{"unknown compression", func(c *Config) { c.Compression = "lz4" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir(), 10)
			tt.mutate(&cfg)
			if q, err := Open(cfg); err == nil {
				q.Close()
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpen_Defaults(t *testing.T) {
	cfg := Config{Path: t.TempDir(), Logger: logging.New(io.Discard), Compression: "S2"}
	q := openQueue(t, cfg)
	if q.ChunkSize() != defaultChunkSize {
		t.Errorf("ChunkSize() = %d, want %d", q.ChunkSize(), defaultChunkSize)
	}
	if q.cfg.Sync != SyncImmediate {
		t.Errorf("Sync = %q, want %q", q.cfg.Sync, SyncImmediate)
	}
	if q.cfg.Compression != compression.TypeS2 {
		t.Errorf("Compression = %q, want %q", q.cfg.Compression, compression.TypeS2)
	}
	if q.cfg.MaxRecordSize != record.DefaultMaxSize {
		t.Errorf("MaxRecordSize = %d, want %d", q.cfg.MaxRecordSize, record.DefaultMaxSize)
	}

	// Immediate sync exercises the fsync paths.
	mustPut(t, q, "x", "y")
	mustGet(t, q, "x")
	mustGet(t, q, "y")
}

func TestOpen_CorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, meta.FileName), []byte("not metadata"), 0644); err != nil {
		t.Fatal(err)
	}
	q, err := Open(testConfig(dir, 10))
	if err == nil {
		q.Close()
		t.Fatal("expected error for corrupt metadata")
	}
	if !errors.Is(err, meta.ErrCorrupt) {
		t.Errorf("Open() error = %v, want ErrCorrupt", err)
	}
}

func TestOpen_OffsetWithoutRecords(t *testing.T) {
	dir := t.TempDir()
	m := meta.New(10)
	m.Head = meta.Cursor{Chunk: 0, Index: 0, Offset: 7}
	data, err := meta.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, meta.FileName), data, 0644); err != nil {
		t.Fatal(err)
	}

	q, err := Open(testConfig(dir, 10))
	if err == nil {
		q.Close()
		t.Fatal("expected error for offset at index 0")
	}
	if !errors.Is(err, meta.ErrCorrupt) {
		t.Errorf("Open() error = %v, want ErrCorrupt", err)
	}
}

func TestPutGet_FIFO(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 4))

	var items []string
	for i := 0; i < 25; i++ {
		items = append(items, fmt.Sprintf("item-%02d", i))
	}
	mustPut(t, q, items...)
	mustSize(t, q, 25)

	for _, item := range items {
		mustGet(t, q, item)
	}
	mustSize(t, q, 0)
	mustEmpty(t, q)
}

func TestPutGet_EmptyAndBinaryPayloads(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 3))

	payloads := [][]byte{
		{},
		{0x00},
		bytes.Repeat([]byte{0xff}, 1024),
		[]byte("\x80\x04\x95pickle-looking bytes"),
	}
	for _, p := range payloads {
		if err := q.Put(p); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := q.Get()
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("payload %d = %x, want %x", i, got, want)
		}
	}
}

// chunksize=3; put a,b,c,d; get four times.
func TestWalkthrough_ChunkSizeThree(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 3))
	recLen := int64(record.HeaderSize + 1)

	mustPut(t, q, "a", "b", "c", "d")
	m := mustSnapshot(t, q)
	if want := (meta.Cursor{Chunk: 1, Index: 1, Offset: recLen}); m.Head != want {
		t.Fatalf("head after puts = %s, want %s", m.Head, want)
	}
	mustChunks(t, q, "q00000", "q00001")

	mustGet(t, q, "a")
	m = mustSnapshot(t, q)
	if want := (meta.Cursor{Chunk: 0, Index: 1, Offset: recLen}); m.Tail != want {
		t.Fatalf("tail after first get = %s, want %s", m.Tail, want)
	}

	mustGet(t, q, "b")
	mustChunks(t, q, "q00000", "q00001")
	mustGet(t, q, "c")
	mustChunks(t, q, "q00001")
	m = mustSnapshot(t, q)
	if want := (meta.Cursor{Chunk: 1}); m.Tail != want {
		t.Fatalf("tail after third get = %s, want %s", m.Tail, want)
	}

	mustGet(t, q, "d")
	m = mustSnapshot(t, q)
	if want := (meta.Cursor{Chunk: 1, Index: 1, Offset: recLen}); m.Tail != want {
		t.Fatalf("tail after fourth get = %s, want %s", m.Tail, want)
	}
	mustEmpty(t, q)
	mustSize(t, q, 0)
}

func TestRollover_DeletesConsumedChunk(t *testing.T) {
	const k = 5
	q := openQueue(t, testConfig(t.TempDir(), k))

	for i := 0; i < 2*k; i++ {
		mustPut(t, q, fmt.Sprintf("v%d", i))
	}
	mustChunks(t, q, "q00000", "q00001")

	for i := 0; i < k; i++ {
		mustGet(t, q, fmt.Sprintf("v%d", i))
	}
	mustChunks(t, q, "q00001")

	for i := k; i < 2*k; i++ {
		mustGet(t, q, fmt.Sprintf("v%d", i))
	}
	mustChunks(t, q)
	mustEmpty(t, q)
}

func TestChunkSizeOne(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 1))
	mustPut(t, q, "a", "b", "c")
	mustChunks(t, q, "q00000", "q00001", "q00002")
	mustGet(t, q, "a")
	mustChunks(t, q, "q00001", "q00002")
	mustGet(t, q, "b")
	mustGet(t, q, "c")
	mustChunks(t, q)
	mustEmpty(t, q)
}

func TestDurability_Reopen(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 4)

	q, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		mustPut(t, q, fmt.Sprintf("persist-%d", i))
	}
	mustGet(t, q, "persist-0")
	id := q.ID()
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	q = openQueue(t, cfg)
	if q.ID() != id {
		t.Errorf("ID changed across reopen: %s -> %s", id, q.ID())
	}
	mustSize(t, q, 9)
	for i := 1; i < 10; i++ {
		mustGet(t, q, fmt.Sprintf("persist-%d", i))
	}
	mustEmpty(t, q)
}

func TestChunkSize_StoredWins(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(testConfig(dir, 3))
	if err != nil {
		t.Fatal(err)
	}
	mustPut(t, q, "a", "b", "c", "d")
	q.Close()

	var logs bytes.Buffer
	cfg := testConfig(dir, 50)
	cfg.Logger = logging.New(&logs)
	q = openQueue(t, cfg)

	if q.ChunkSize() != 3 {
		t.Fatalf("ChunkSize() = %d, want stored 3", q.ChunkSize())
	}
	if !strings.Contains(logs.String(), "configured chunk size differs") {
		t.Errorf("expected chunk size warning, logs: %s", logs.String())
	}
	for _, want := range []string{"a", "b", "c", "d"} {
		mustGet(t, q, want)
	}
}

func TestRecovery_PartialWrite(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 100)

	q, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustPut(t, q, "one", "two", "three")
	q.Close()

	garbage := []byte{0x07, 0x00, 0x00, 0x00, 0x00, 'p', 'a', 'r'}
	f, err := os.OpenFile(filepath.Join(dir, "q00000"), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(garbage); err != nil {
		t.Fatal(err)
	}
	f.Close()

	before := testutil.ToFloat64(recoveryTruncatedBytesTotal)
	var logs bytes.Buffer
	cfg.Logger = logging.New(&logs)
	q = openQueue(t, cfg)

	if got := testutil.ToFloat64(recoveryTruncatedBytesTotal) - before; got != float64(len(garbage)) {
		t.Errorf("truncated bytes metric delta = %v, want %d", got, len(garbage))
	}
	if !strings.Contains(logs.String(), "discarded uncommitted bytes") {
		t.Errorf("expected truncation log, got: %s", logs.String())
	}

	mustSize(t, q, 3)
	mustGet(t, q, "one")
	mustGet(t, q, "two")
	mustGet(t, q, "three")
	mustEmpty(t, q)

	// New writes land right after the last committed record.
	mustPut(t, q, "four")
	mustGet(t, q, "four")
}

func TestRecovery_UncommittedCompleteRecord(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 100)

	q, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustPut(t, q, "committed")
	q.Close()

	// A full record whose metadata commit never happened.
	rec, err := record.Encode([]byte("ghost"), compression.Config{})
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "q00000"), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Write(rec)
	f.Close()

	q = openQueue(t, cfg)
	mustSize(t, q, 1)
	mustGet(t, q, "committed")
	mustEmpty(t, q)
}

func TestRecovery_RemovesOrphanChunks(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 2)

	q, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustPut(t, q, "a", "b", "c")
	mustGet(t, q, "a")
	mustGet(t, q, "b")
	q.Close()

	// q00000 left behind by a get interrupted after its commit, q00007
	// never reached by any commit.
	for _, name := range []string{"q00000", "q00007"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("stale"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Leftover from a metadata save that never reached its rename.
	if err := os.WriteFile(filepath.Join(dir, "info.tmp42"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(recoveryOrphanChunksTotal)
	q = openQueue(t, cfg)
	if got := testutil.ToFloat64(recoveryOrphanChunksTotal) - before; got != 2 {
		t.Errorf("orphan chunk metric delta = %v, want 2", got)
	}
	mustChunks(t, q, "q00001")
	if _, err := os.Stat(filepath.Join(dir, "info.tmp42")); !os.IsNotExist(err) {
		t.Errorf("stale temp metadata file not removed: %v", err)
	}
	mustGet(t, q, "c")
	mustEmpty(t, q)
}

func TestFreshChunk_IgnoresStrayBytes(t *testing.T) {
	dir := t.TempDir()
	q := openQueue(t, testConfig(dir, 2))

	mustPut(t, q, "a")
	// Stray bytes appear in the next chunk while the queue is open.
	stray, err := record.Encode([]byte("stray"), compression.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "q00001"), stray, 0644); err != nil {
		t.Fatal(err)
	}

	mustPut(t, q, "b", "c", "d")
	for _, want := range []string{"a", "b", "c", "d"} {
		mustGet(t, q, want)
	}
	mustEmpty(t, q)
}

func TestGet_IntegrityError(t *testing.T) {
	dir := t.TempDir()
	q := openQueue(t, testConfig(dir, 10))
	mustPut(t, q, "hello")

	path := filepath.Join(dir, "q00000")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(queueIntegrityErrorsTotal)
	_, err = q.Get()
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Get() error = %v, want ErrIntegrity", err)
	}
	if !errors.Is(err, record.ErrMalformed) {
		t.Errorf("Get() error = %v, want wrapped ErrMalformed", err)
	}
	if got := testutil.ToFloat64(queueIntegrityErrorsTotal) - before; got != 1 {
		t.Errorf("integrity error metric delta = %v, want 1", got)
	}
	// A failed get commits nothing.
	mustSize(t, q, 1)
}

func TestGet_MissingTailChunk(t *testing.T) {
	dir := t.TempDir()
	q := openQueue(t, testConfig(dir, 10))
	mustPut(t, q, "hello")

	if err := os.Remove(filepath.Join(dir, "q00000")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Get(); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Get() error = %v, want ErrIntegrity", err)
	}
}

func TestCompression_ChangesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("compressible "), 200)

	for _, ct := range []compression.Type{compression.TypeZstd, compression.TypeSnappy, compression.TypeGzip, compression.TypeNone} {
		cfg := testConfig(dir, 3)
		cfg.Compression = ct
		q, err := Open(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if err := q.Put(append([]byte(ct+":"), payload...)); err != nil {
			t.Fatalf("Put with %s failed: %v", ct, err)
		}
		q.Close()
	}

	q := openQueue(t, testConfig(dir, 3))
	for _, ct := range []compression.Type{compression.TypeZstd, compression.TypeSnappy, compression.TypeGzip, compression.TypeNone} {
		got, err := q.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if want := append([]byte(ct+":"), payload...); !bytes.Equal(got, want) {
			t.Errorf("payload written with %s did not round-trip", ct)
		}
	}
	mustEmpty(t, q)
}

func TestPut_RecordTooLarge(t *testing.T) {
	cfg := testConfig(t.TempDir(), 10)
	cfg.MaxRecordSize = 16
	q := openQueue(t, cfg)

	err := q.Put(make([]byte, 32))
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("Put() error = %v, want ErrRecordTooLarge", err)
	}
	mustSize(t, q, 0)
	mustPut(t, q, "small")
	mustGet(t, q, "small")
}

func TestReopen_SmallerMaxRecordSize(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 10)

	big := strings.Repeat("z", 1000)
	q, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustPut(t, q, big, "small")
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	cfg.MaxRecordSize = 100
	q = openQueue(t, cfg)
	mustSize(t, q, 2)
	mustGet(t, q, big)
	mustGet(t, q, "small")
	mustEmpty(t, q)

	if err := q.Put([]byte(big)); !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("Put() error = %v, want ErrRecordTooLarge", err)
	}
}

func TestSizeAccounting_RandomInterleaving(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 3))
	rng := rand.New(rand.NewSource(42))

	var (
		expected []string
		next     int
	)
	for step := 0; step < 300; step++ {
		if rng.Intn(3) > 0 {
			item := fmt.Sprintf("r%d", next)
			next++
			mustPut(t, q, item)
			expected = append(expected, item)
		} else if len(expected) > 0 {
			mustGet(t, q, expected[0])
			expected = expected[1:]
		} else {
			mustEmpty(t, q)
		}
		if step%25 == 0 {
			mustSize(t, q, int64(len(expected)))
		}
	}
	mustSize(t, q, int64(len(expected)))
	for _, item := range expected {
		mustGet(t, q, item)
	}
	mustEmpty(t, q)
}

func TestClosed(t *testing.T) {
	q, err := Open(testConfig(t.TempDir(), 10))
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := q.Put([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after Close = %v, want ErrClosed", err)
	}
	if _, err := q.Get(); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	if _, err := q.Size(); !errors.Is(err, ErrClosed) {
		t.Errorf("Size after Close = %v, want ErrClosed", err)
	}
	if _, err := q.ChunkFiles(); !errors.Is(err, ErrClosed) {
		t.Errorf("ChunkFiles after Close = %v, want ErrClosed", err)
	}
}

func TestContext_LockTimeout(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 10)
	cfg.LockPollInterval = time.Millisecond
	q := openQueue(t, cfg)

	holder, err := lock.Open(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Close()
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := q.PutContext(ctx, []byte("late")); !errors.Is(err, lock.ErrTimeout) {
		t.Fatalf("PutContext() error = %v, want ErrTimeout", err)
	}
	if _, err := q.SizeContext(ctx); !errors.Is(err, lock.ErrTimeout) {
		t.Fatalf("SizeContext() error = %v, want ErrTimeout", err)
	}

	if err := holder.Unlock(); err != nil {
		t.Fatal(err)
	}
	mustSize(t, q, 0)
}

func TestContext_AlreadyCancelled(t *testing.T) {
	q := openQueue(t, testConfig(t.TempDir(), 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.PutContext(ctx, []byte("never")); !errors.Is(err, lock.ErrTimeout) {
		t.Fatalf("PutContext() error = %v, want ErrTimeout", err)
	}
	if _, err := q.GetContext(ctx); !errors.Is(err, lock.ErrTimeout) {
		t.Fatalf("GetContext() error = %v, want ErrTimeout", err)
	}
	mustSize(t, q, 0)
	mustEmpty(t, q)
}

func TestMetrics(t *testing.T) {
	dir := t.TempDir()
	q := openQueue(t, testConfig(dir, 2))

	puts := testutil.ToFloat64(queuePutTotal)
	gets := testutil.ToFloat64(queueGetTotal)
	empties := testutil.ToFloat64(queueGetEmptyTotal)
	rotations := testutil.ToFloat64(chunkRotationsTotal)
	deletions := testutil.ToFloat64(chunkDeletionsTotal)
	saves := testutil.ToFloat64(metaSavesTotal)

	mustPut(t, q, "a", "b", "c")
	mustGet(t, q, "a")
	mustGet(t, q, "b")
	mustSize(t, q, 1)
	if got := testutil.ToFloat64(queueSize.WithLabelValues(dir)); got != 1 {
		t.Errorf("size gauge = %v, want 1", got)
	}
	mustGet(t, q, "c")
	mustEmpty(t, q)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"puts", testutil.ToFloat64(queuePutTotal) - puts, 3},
		{"gets", testutil.ToFloat64(queueGetTotal) - gets, 3},
		{"empty gets", testutil.ToFloat64(queueGetEmptyTotal) - empties, 1},
		{"rotations", testutil.ToFloat64(chunkRotationsTotal) - rotations, 1},
		{"deletions", testutil.ToFloat64(chunkDeletionsTotal) - deletions, 1},
		{"meta saves", testutil.ToFloat64(metaSavesTotal) - saves, 6},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s delta = %v, want %v", c.name, c.got, c.want)
		}
	}
}
