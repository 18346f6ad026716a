package s3blob

import (
	"context"
	"io"
	"testing"
	"time"

	"bolao/internal/domain"
)

type fakeStore struct {
	events  []domain.Event
	deleted []time.Time
}

func (f *fakeStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range f.events {
		if ev.At.Before(cutoff) {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.deleted = append(f.deleted, cutoff)
	var kept []domain.Event
	var n int64
	for _, ev := range f.events {
		if ev.At.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return n, nil
}

type fakeWriter struct {
	paths []string
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	f.paths = append(f.paths, path)
	_, err := io.ReadAll(data)
	return err
}

func TestArchiveEvents(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		events: []domain.Event{
			domain.NewEvent(domain.EvBetAccepted, base, nil),
			domain.NewEvent(domain.EvResultFinalized, base.Add(time.Hour), nil),
			domain.NewEvent(domain.EvWinnerPaid, base.Add(48*time.Hour), nil),
		},
	}
	writer := &fakeWriter{}
	a := NewArchiver(writer, store)

	moved, err := a.ArchiveEvents(context.Background(), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ArchiveEvents: %v", err)
	}
	if moved != 2 {
		t.Fatalf("moved = %d, want 2", moved)
	}
	if len(writer.paths) != 1 {
		t.Fatalf("uploads = %d, want 1", len(writer.paths))
	}
	if len(store.events) != 1 {
		t.Fatalf("remaining events = %d, want 1", len(store.events))
	}
}

func TestArchiveEventsEmpty(t *testing.T) {
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakeStore{})

	moved, err := a.ArchiveEvents(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveEvents: %v", err)
	}
	if moved != 0 || len(writer.paths) != 0 {
		t.Fatalf("expected no-op, moved=%d uploads=%d", moved, len(writer.paths))
	}
}
