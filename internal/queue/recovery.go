package queue

import (
	"github.com/szibis/pqueue/internal/chunk"
	"github.com/szibis/pqueue/internal/logging"
)

// recover brings the directory to the committed state. Must hold the lock.
//
// Bytes past the committed head offset belong to a put that never committed
// and are cut. Chunks below the tail were consumed but not yet deleted when a
// get was interrupted; chunks above the head were never reached by a commit.
// Both are removed.
func (q *DiskQueue) recover() error {
	m, exists, err := q.meta.Load(q.cfg.ChunkSize)
	if err != nil {
		return err
	}

	if !exists {
		if err := q.save(m); err != nil {
			return err
		}
		q.log.Info("queue initialized", logging.F("queue_id", m.ID, "chunksize", m.ChunkSize))
	} else if m.ChunkSize != q.cfg.ChunkSize {
		q.log.Warn("configured chunk size differs from stored, using stored", logging.F(
			"configured", q.cfg.ChunkSize,
			"stored", m.ChunkSize,
		))
	}

	q.id = m.ID
	q.chunkSize = m.ChunkSize
	q.log = q.log.With(logging.F("queue_id", m.ID))

	cut, err := q.chunks.Truncate(m.Head.Chunk, m.Head.Offset)
	if err != nil {
		return err
	}
	if cut > 0 {
		AddRecoveryTruncatedBytes(cut)
		q.log.Warn("discarded uncommitted bytes from head chunk", logging.F(
			"chunk", chunk.Name(m.Head.Chunk),
			"offset", m.Head.Offset,
			"bytes", cut,
		))
	}

	nums, err := q.chunks.List()
	if err != nil {
		return err
	}
	for _, n := range nums {
		if n >= m.Tail.Chunk && n <= m.Head.Chunk {
			continue
		}
		if err := q.chunks.Delete(n); err != nil {
			return err
		}
		IncrementRecoveryOrphanChunk()
		q.log.Warn("removed orphan chunk", logging.F(
			"chunk", chunk.Name(n),
			"tail_chunk", m.Tail.Chunk,
			"head_chunk", m.Head.Chunk,
		))
	}

	if removed, err := q.meta.RemoveStaleTemps(); err != nil {
		q.log.Warn("failed to scan for stale metadata temp files", logging.F("error", err.Error()))
	} else if removed > 0 {
		q.log.Debug("removed stale metadata temp files", logging.F("count", removed))
	}

	SetSize(q.cfg.Path, m.Size)
	q.log.Info("queue opened", logging.F(
		"size", m.Size,
		"head", m.Head.String(),
		"tail", m.Tail.String(),
	))
	return nil
}
