// Package enrich defines the external enrichment collaborator interface.
// The core never calls an implementation itself; a front end fetches
// enrichment for entries it selects and writes the result back through
// the catalog's update API.
package enrich

import (
	"context"

	"mangashelf/internal/catalog"
)

// Enrichment carries whatever metadata the external client produced.
// Empty fields leave the corresponding entry columns untouched.
type Enrichment struct {
	Genre       string
	Publisher   string
	PublishDate string
	Tags        string
}

// Enricher resolves enrichment metadata for a title/author pair.
type Enricher interface {
	Enrich(ctx context.Context, title, author string) (Enrichment, error)
}

// Apply copies non-empty enrichment fields onto e, marks it processed and
// persists it through the store's ordinary update path.
func Apply(ctx context.Context, store *catalog.Store, e *catalog.Entry, enr Enrichment) error {
	if enr.Genre != "" {
		v := enr.Genre
		e.Genre = &v
	}
	if enr.Publisher != "" {
		v := enr.Publisher
		e.Publisher = &v
	}
	if enr.PublishDate != "" {
		v := enr.PublishDate
		e.PublishDate = &v
	}
	if enr.Tags != "" {
		v := enr.Tags
		e.Tags = &v
	}
	e.AIProcessed = true

	return store.Update(ctx, e)
}
