package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/notion"
)

// TemplateCache fetches the database schema once per process lifetime and
// serves it as the skeleton for create/update payloads. Unspecified
// properties keep correct type metadata that way, without a schema fetch
// per mutation.
//
// There is no TTL and no invalidation: if the remote schema changes, the
// process must be restarted to pick it up.
type TemplateCache struct {
	client     *notion.Client
	databaseID string
	logger     *slog.Logger

	// mu guards the lazy first populate; Get is called from the HTTP
	// handlers and the refresh worker concurrently.
	mu       sync.Mutex
	template *notion.Page
}

// NewTemplateCache creates a template cache for the given database.
func NewTemplateCache(client *notion.Client, databaseID string, logger *slog.Logger) *TemplateCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateCache{
		client:     client,
		databaseID: databaseID,
		logger:     logger,
	}
}

// Get returns a fresh clone of the task template, fetching the database
// schema on the first call. Callers may mutate the returned page freely;
// the cached original is never handed out.
func (c *TemplateCache) Get(ctx context.Context) (*notion.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.template == nil {
		db, err := c.client.GetDatabase(ctx, c.databaseID)
		if err != nil {
			return nil, fmt.Errorf("fetch schema: %w", err)
		}

		properties := make(map[string]notion.Property, len(db.Properties))
		hasTitle := false
		for name, schemaProp := range db.Properties {
			if schemaProp.Type == "title" {
				hasTitle = true
			}
			properties[name] = notion.Property{
				ID:   schemaProp.ID,
				Type: schemaProp.Type,
				Name: schemaProp.Name,
			}
		}
		if !hasTitle {
			return nil, fmt.Errorf("database %s: %w", c.databaseID, apperrors.ErrNoTemplateTitle)
		}

		c.template = &notion.Page{
			Parent: &notion.Parent{
				Type:       "database_id",
				DatabaseID: c.databaseID,
			},
			Properties: properties,
		}

		c.logger.DebugContext(ctx, "task template built",
			"database_id", c.databaseID,
			"properties", len(properties))
	}

	return cloneTemplate(c.template), nil
}

// cloneTemplate deep-copies the template page. Encoding replaces property
// payloads wholesale with fresh values, so copying the map and its entries
// is enough to isolate callers from each other.
func cloneTemplate(template *notion.Page) *notion.Page {
	properties := make(map[string]notion.Property, len(template.Properties))
	for name, prop := range template.Properties {
		properties[name] = prop
	}

	parent := *template.Parent
	return &notion.Page{
		Parent:     &parent,
		Properties: properties,
	}
}
