package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bolao/internal/domain"
)

// archiveBatchSize bounds how many journal rows one archive pass loads.
const archiveBatchSize = 10_000

// EventArchiveStore provides the journal access the archiver needs: paging
// through rows older than a cutoff and pruning them once archived.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Event, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlobWriter is the upload surface the archiver requires.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves old event-journal rows to object storage as JSONL and then
// prunes them from the primary store. Pruning only happens after the upload
// succeeded, so a failed pass leaves the journal intact.
type Archiver struct {
	writer BlobWriter
	store  EventArchiveStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer BlobWriter, store EventArchiveStore) *Archiver {
	return &Archiver{writer: writer, store: store}
}

// ArchiveEvents archives every journal row older than before and returns the
// number of rows moved. A pass with nothing to move is a successful no-op.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	var total int64

	for {
		events, err := a.store.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events query: %w", err)
		}
		if len(events) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(events)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events marshal: %w", err)
		}

		// Key by the last event in the batch so successive passes never
		// overwrite each other.
		last := events[len(events)-1]
		path := archivePath(last.At, last.ID)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive events upload: %w", err)
		}

		cutoff := last.At.Add(time.Nanosecond)
		if cutoff.After(before) {
			cutoff = before
		}
		deleted, err := a.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events prune: %w", err)
		}
		total += deleted

		if len(events) < archiveBatchSize {
			return total, nil
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the newest archived event:
//
//	archive/events/2026-08/<uuid>.jsonl
func archivePath(at time.Time, id string) string {
	return fmt.Sprintf("archive/events/%s/%s.jsonl", at.Format("2006-01"), id)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL(events []domain.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
