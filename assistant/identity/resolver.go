package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/campora/assistant/assistant/contract"
)

// Identity-bearing collections. Students and faculty key on the principal id;
// admins and parents are looked up by email.
const (
	colStudents = "students"
	colFaculty  = "faculty"
	colAdmins   = "admins"
	colParents  = "parents"
)

// Resolver maps an authenticated principal to a role-scoped identity by
// probing collections in a fixed order and stopping at the first match.
// Read-only and idempotent; callers resolve once and cache for the session,
// since role must not change mid-conversation.
type Resolver struct {
	store contractx.DocumentStore
}

func NewResolver(store contractx.DocumentStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	return &Resolver{store: store}, nil
}

// Resolve probes Student -> Faculty -> Admin -> Parent and returns the first
// match. A principal matching none, or any store failure, yields
// ErrIdentityUnresolved: the assistant stays disabled rather than guessing.
func (r *Resolver) Resolve(ctx context.Context, p contractx.Principal) (*contractx.ResolvedIdentity, error) {
	id := strings.TrimSpace(p.ID)
	email := strings.TrimSpace(p.Email)
	if id == "" {
		return nil, fmt.Errorf("%w: empty principal id", contractx.ErrIdentityUnresolved)
	}

	for _, role := range contractx.Roles() {
		doc, err := r.probe(ctx, role, id, email)
		if err != nil {
			if errors.Is(err, contractx.ErrDocNotFound) {
				continue
			}
			log.Warn().Err(err).Str("role", string(role)).Msg("identity probe failed")
			return nil, fmt.Errorf("%w: probe %s: %v", contractx.ErrIdentityUnresolved, role, err)
		}
		return buildIdentity(role, p, doc), nil
	}

	return nil, fmt.Errorf("%w: principal matches no role", contractx.ErrIdentityUnresolved)
}

func (r *Resolver) probe(ctx context.Context, role contractx.Role, id, email string) (map[string]any, error) {
	switch role {
	case contractx.RoleStudent:
		return r.store.Get(ctx, colStudents, id)
	case contractx.RoleFaculty:
		return r.store.Get(ctx, colFaculty, id)
	case contractx.RoleAdmin:
		return r.findByEmail(ctx, colAdmins, email)
	case contractx.RoleParent:
		return r.findByEmail(ctx, colParents, email)
	default:
		return nil, contractx.ErrDocNotFound
	}
}

func (r *Resolver) findByEmail(ctx context.Context, collection, email string) (map[string]any, error) {
	if email == "" {
		return nil, contractx.ErrDocNotFound
	}
	docs, err := r.store.FindByField(ctx, collection, "email", email, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, contractx.ErrDocNotFound
	}
	return docs[0], nil
}

func buildIdentity(role contractx.Role, p contractx.Principal, doc map[string]any) *contractx.ResolvedIdentity {
	ident := &contractx.ResolvedIdentity{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Role:        role,
	}
	if name := docString(doc, "name"); name != "" {
		ident.DisplayName = name
	}

	switch role {
	case contractx.RoleStudent:
		ident.Context.BatchID = docString(doc, "batchId")
	case contractx.RoleFaculty:
		ident.Context.BatchID = docString(doc, "batchId")
		ident.Context.SubjectIDs = docStrings(doc, "subjectIds")
	case contractx.RoleParent:
		ident.Context.ChildID = docString(doc, "childId")
	}
	return ident
}

func docString(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func docStrings(doc map[string]any, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
