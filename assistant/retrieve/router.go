package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/campora/assistant/assistant/contract"
)

// Scope names which records a registration may query. Scoping is part of the
// query itself; there is no fetch-everything-then-filter fallback.
type Scope string

const (
	// ScopeMine filters on the identity's own id.
	ScopeMine Scope = "mine"
	// ScopeBatch filters on the identity's batch from role context.
	ScopeBatch Scope = "batch"
	// ScopeChild filters on the parent's child id from role context.
	ScopeChild Scope = "child"
	// ScopeChildBatch resolves the child's batch first, then queries by it.
	// Fails closed: no batch on the child means no data, never a global query.
	ScopeChildBatch Scope = "child_batch"
	// ScopeGlobal has no per-owner filter and relies on the record cap.
	ScopeGlobal Scope = "global"
)

type runFunc func(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error)

// registration declares, as data, everything authorization-relevant about
// one (role, intent) fetcher: which collection, which records, which fields.
type registration struct {
	collection string
	scope      Scope
	filter     string   // document field the scope value is compared against
	value      string   // constant filter value; overrides the scope value
	projection []string // the only fields a returned record may carry
	limit      int
	run        runFunc // nil means the generic single-query runner
}

const defaultFetchTimeout = 10 * time.Second

// Router executes the fetcher registered for a (role, intent) pair. It must
// only ever be reached through the access gate.
type Router struct {
	store   contractx.DocumentStore
	timeout time.Duration
}

func NewRouter(store contractx.DocumentStore, timeout time.Duration) (*Router, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Router{store: store, timeout: timeout}, nil
}

// Fetch runs the registered fetcher and returns its projected, intent-shaped
// payload. Store failures surface as ErrRetrievalFailed, distinct from an
// empty result. A missing registration is a deny, not a fallback.
func (r *Router) Fetch(ctx context.Context, role contractx.Role, intent contractx.Intent, ident *contractx.ResolvedIdentity) (any, error) {
	if ident == nil {
		return nil, fmt.Errorf("%w: identity is required", contractx.ErrValidation)
	}
	reg, ok := registrationFor(role, intent)
	if !ok {
		return nil, fmt.Errorf("%w: no fetcher for role=%s intent=%s", contractx.ErrAccessDenied, role, intent)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	run := reg.run
	if run == nil {
		run = runSingleQuery
	}
	out, err := run(ctx, r, reg, ident)
	if err != nil {
		log.Warn().Err(err).
			Str("role", string(role)).
			Str("intent", string(intent)).
			Msg("fetch failed")
		return nil, err
	}
	return out, nil
}

func runSingleQuery(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error) {
	if reg.filter == "" {
		docs, err := r.store.FindByField(ctx, reg.collection, "", "", reg.limit)
		if err != nil {
			return nil, fmt.Errorf("%w: query %s: %v", contractx.ErrRetrievalFailed, reg.collection, err)
		}
		return projectAll(docs, reg.projection), nil
	}

	value := reg.value
	if value == "" {
		value = scopeValue(reg.scope, ident)
		if value == "" {
			// Missing role context: nothing to scope by, so nothing comes back.
			return []map[string]any{}, nil
		}
	}

	docs, err := r.store.FindByField(ctx, reg.collection, reg.filter, value, reg.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s by %s: %v", contractx.ErrRetrievalFailed, reg.collection, reg.filter, err)
	}
	return projectAll(docs, reg.projection), nil
}

func scopeValue(scope Scope, ident *contractx.ResolvedIdentity) string {
	switch scope {
	case ScopeMine:
		return ident.ID
	case ScopeBatch:
		return ident.Context.BatchID
	case ScopeChild:
		return ident.Context.ChildID
	default:
		return ""
	}
}

// project copies exactly the allowed fields out of a raw store document.
// Anything the registration did not declare never leaves this package.
func project(doc map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func projectAll(docs []map[string]any, fields []string) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, project(doc, fields))
	}
	return out
}
