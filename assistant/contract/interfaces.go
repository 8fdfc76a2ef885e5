package contract

import "context"

// DocumentStore is the read-only port onto the ERP's keyed collections.
// Writes happen elsewhere (the CRUD pages); this subsystem only queries.
type DocumentStore interface {
	// Get loads one document by its natural key. Returns ErrDocNotFound
	// when the key is absent.
	Get(ctx context.Context, collection, key string) (map[string]any, error)

	// FindByField returns documents whose field equals value, up to limit.
	// An empty field selects the whole collection, still bounded by limit.
	// An empty result is not an error.
	FindByField(ctx context.Context, collection, field, value string, limit int) ([]map[string]any, error)
}

// Generator is the external text-generation boundary.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}
