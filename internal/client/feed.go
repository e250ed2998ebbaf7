package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"dinlipi/internal/models"
)

// ErrStale reports a page fetched for a filter that has since been replaced.
var ErrStale = errors.New("stale page discarded")

type entryLister interface {
	ListEntries(ctx context.Context, f models.ListFilter) ([]models.EntryView, error)
}

// EntryFeed pages through entries for infinite scrolling. Every SetFilter
// bumps a sequence number; a page that comes back under an older sequence is
// dropped and Next reports ErrStale.
type EntryFeed struct {
	src      entryLister
	pageSize int

	mu     sync.Mutex
	seq    uint64
	filter models.ListFilter
	offset int
	done   bool
	seen   map[uuid.UUID]struct{}
}

func NewEntryFeed(src entryLister, pageSize int) *EntryFeed {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &EntryFeed{src: src, pageSize: pageSize, seen: map[uuid.UUID]struct{}{}}
}

// SetFilter restarts the feed from the first page.
func (f *EntryFeed) SetFilter(filter models.ListFilter) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	filter.Limit, filter.Offset = 0, 0
	f.filter = filter
	f.offset = 0
	f.done = false
	f.seen = map[uuid.UUID]struct{}{}
	return f.seq
}

// Done reports whether the last page has been delivered.
func (f *EntryFeed) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Next fetches the following page. It returns an empty slice once the feed is
// exhausted. Entries already delivered under the current filter are skipped.
func (f *EntryFeed) Next(ctx context.Context) ([]models.EntryView, error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return []models.EntryView{}, nil
	}
	seq := f.seq
	q := f.filter
	q.Limit, q.Offset = f.pageSize, f.offset
	f.offset += f.pageSize
	f.mu.Unlock()

	page, err := f.src.ListEntries(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return nil, ErrStale
	}
	if err != nil {
		// give the slot back so a retry asks for the same page
		if f.offset == q.Offset+f.pageSize {
			f.offset = q.Offset
		}
		return nil, err
	}
	if len(page) < f.pageSize {
		f.done = true
	}
	out := make([]models.EntryView, 0, len(page))
	for _, e := range page {
		if _, dup := f.seen[e.ID]; dup {
			continue
		}
		f.seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}
