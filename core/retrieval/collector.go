package retrieval

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// collector accumulates the results of a search up to its limit.
// Evidence keys already emitted are dropped, so earlier stages win.
type collector struct {
	limit   int
	seen    map[model.EvidenceKey]bool
	results []*model.SearchResult
}

func newCollector(limit int) *collector {
	return &collector{
		limit:   limit,
		seen:    map[model.EvidenceKey]bool{},
		results: []*model.SearchResult{},
	}
}

func (c *collector) full() bool {
	return len(c.results) >= c.limit
}

func (c *collector) need() int {
	return max(0, c.limit-len(c.results))
}

// fresh counts the distinct keys in results that were not emitted yet
func (c *collector) fresh(results []*model.SearchResult) int {
	keys := map[model.EvidenceKey]bool{}
	for _, r := range results {
		key := r.Evidence.Key()
		if !c.seen[key] {
			keys[key] = true
		}
	}
	return len(keys)
}

// add emits r unless its key was emitted or the limit is reached
func (c *collector) add(r *model.SearchResult) bool {
	if c.full() {
		return false
	}
	key := r.Evidence.Key()
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	c.results = append(c.results, r)
	return true
}

// addAll adds results in order until the limit is reached and returns how many were emitted
func (c *collector) addAll(results []*model.SearchResult) int {
	added := 0
	for _, r := range results {
		if c.full() {
			break
		}
		if c.add(r) {
			added++
		}
	}
	return added
}

// documentCache loads every document at most once per search
type documentCache struct {
	store DocumentStore
	mu    sync.Mutex
	docs  map[uuid.UUID]*model.Document
}

func newDocumentCache(store DocumentStore) *documentCache {
	return &documentCache{
		store: store,
		docs:  map[uuid.UUID]*model.Document{},
	}
}

// attach sets the document of every evidence unit, loading the unknown ones in one query
func (d *documentCache) attach(ctx context.Context, evidence []*model.Evidence) error {
	if d.store == nil || len(evidence) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	missing := []uuid.UUID{}
	queued := map[uuid.UUID]bool{}
	for _, ev := range evidence {
		id := ev.DocumentID()
		if _, ok := d.docs[id]; ok || queued[id] {
			continue
		}
		queued[id] = true
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		docs, err := d.store.SelectDocumentsByIDs(ctx, missing)
		if err != nil {
			return helper.NewError("select documents", err)
		}
		for _, id := range missing {
			d.docs[id] = nil
		}
		for _, doc := range docs {
			d.docs[doc.ID] = doc
		}
	}

	for _, ev := range evidence {
		ev.Document = d.docs[ev.DocumentID()]
	}
	return nil
}
