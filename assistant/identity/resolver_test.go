package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	contractx "github.com/campora/assistant/assistant/contract"
	"github.com/campora/assistant/store/memstore"
)

type failingStore struct {
	inner   contractx.DocumentStore
	failCol string
}

func (f *failingStore) Get(ctx context.Context, collection, key string) (map[string]any, error) {
	if collection == f.failCol {
		return nil, errors.New("store unavailable")
	}
	return f.inner.Get(ctx, collection, key)
}

func (f *failingStore) FindByField(ctx context.Context, collection, field, value string, limit int) ([]map[string]any, error) {
	if collection == f.failCol {
		return nil, errors.New("store unavailable")
	}
	return f.inner.FindByField(ctx, collection, field, value, limit)
}

func seededStore() *memstore.Store {
	store := memstore.New()
	store.Put("students", "u-100", map[string]any{
		"name": "Asha Verma", "regNumber": "CS21B042", "batchId": "batch-cs-21",
	})
	store.Put("faculty", "u-200", map[string]any{
		"name": "Dr. Rao", "batchId": "batch-cs-21",
		"subjectIds": []any{"cs301", "cs305"},
	})
	store.Put("admins", "a-1", map[string]any{
		"name": "Registrar", "email": "registrar@campus.edu",
	})
	store.Put("parents", "p-1", map[string]any{
		"name": "Mr. Verma", "email": "verma@home.net", "childId": "u-100",
	})
	return store
}

func TestResolveStudentByPrincipalID(t *testing.T) {
	t.Parallel()

	resolver, err := NewResolver(seededStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ident, err := resolver.Resolve(context.Background(), contractx.Principal{
		ID: "u-100", Email: "asha@campus.edu", DisplayName: "asha",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.Role != contractx.RoleStudent {
		t.Fatalf("unexpected role: %s", ident.Role)
	}
	if ident.Context.BatchID != "batch-cs-21" {
		t.Fatalf("unexpected batch: %s", ident.Context.BatchID)
	}
	if ident.DisplayName != "Asha Verma" {
		t.Fatalf("expected store name to win, got %s", ident.DisplayName)
	}
}

func TestResolveFacultySubjects(t *testing.T) {
	t.Parallel()

	resolver, _ := NewResolver(seededStore())
	ident, err := resolver.Resolve(context.Background(), contractx.Principal{ID: "u-200"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.Role != contractx.RoleFaculty {
		t.Fatalf("unexpected role: %s", ident.Role)
	}
	if len(ident.Context.SubjectIDs) != 2 {
		t.Fatalf("unexpected subjects: %v", ident.Context.SubjectIDs)
	}
}

func TestResolveAdminAndParentByEmail(t *testing.T) {
	t.Parallel()

	resolver, _ := NewResolver(seededStore())

	admin, err := resolver.Resolve(context.Background(), contractx.Principal{
		ID: "auth-uid-9", Email: "registrar@campus.edu",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.Role != contractx.RoleAdmin {
		t.Fatalf("unexpected role: %s", admin.Role)
	}

	parent, err := resolver.Resolve(context.Background(), contractx.Principal{
		ID: "auth-uid-10", Email: "verma@home.net",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parent.Role != contractx.RoleParent {
		t.Fatalf("unexpected role: %s", parent.Role)
	}
	if parent.Context.ChildID != "u-100" {
		t.Fatalf("unexpected child: %s", parent.Context.ChildID)
	}
}

// A principal present in more than one collection resolves to the earliest
// role in probe order.
func TestResolveFirstMatchWins(t *testing.T) {
	t.Parallel()

	store := seededStore()
	store.Put("students", "u-200", map[string]any{"name": "Shadow", "batchId": "batch-x"})

	resolver, _ := NewResolver(store)
	ident, err := resolver.Resolve(context.Background(), contractx.Principal{ID: "u-200"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.Role != contractx.RoleStudent {
		t.Fatalf("expected student to win the probe order, got %s", ident.Role)
	}
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()

	resolver, _ := NewResolver(seededStore())
	_, err := resolver.Resolve(context.Background(), contractx.Principal{
		ID: "u-999", Email: "nobody@campus.edu",
	})
	if !errors.Is(err, contractx.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
	}
}

// A store failure disables the assistant instead of guessing a role.
func TestResolveStoreFailureFailsClosed(t *testing.T) {
	t.Parallel()

	for _, failCol := range []string{"students", "faculty", "admins", "parents"} {
		failCol := failCol
		t.Run(failCol, func(t *testing.T) {
			t.Parallel()

			resolver, _ := NewResolver(&failingStore{inner: seededStore(), failCol: failCol})
			_, err := resolver.Resolve(context.Background(), contractx.Principal{
				ID: "u-999", Email: fmt.Sprintf("ghost+%s@campus.edu", failCol),
			})
			if !errors.Is(err, contractx.ErrIdentityUnresolved) {
				t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
			}
		})
	}
}

func TestResolveEmptyPrincipal(t *testing.T) {
	t.Parallel()

	resolver, _ := NewResolver(seededStore())
	_, err := resolver.Resolve(context.Background(), contractx.Principal{})
	if !errors.Is(err, contractx.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
	}
}
