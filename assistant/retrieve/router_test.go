package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	accessx "github.com/campora/assistant/assistant/access"
	contractx "github.com/campora/assistant/assistant/contract"
)

type storeCall struct {
	method     string
	collection string
	field      string
	value      string
	limit      int
}

type fakeStore struct {
	mu       sync.Mutex
	calls    []storeCall
	findDocs map[string][]map[string]any
	getDocs  map[string]map[string]any
	failCols map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		findDocs: make(map[string][]map[string]any),
		getDocs:  make(map[string]map[string]any),
		failCols: make(map[string]bool),
	}
}

func (f *fakeStore) Get(_ context.Context, collection, key string) (map[string]any, error) {
	f.record(storeCall{method: "get", collection: collection, value: key})
	if f.failCols[collection] {
		return nil, errors.New("store down")
	}
	doc, ok := f.getDocs[collection+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", contractx.ErrDocNotFound, collection, key)
	}
	return doc, nil
}

func (f *fakeStore) FindByField(_ context.Context, collection, field, value string, limit int) ([]map[string]any, error) {
	f.record(storeCall{method: "find", collection: collection, field: field, value: value, limit: limit})
	if f.failCols[collection] {
		return nil, errors.New("store down")
	}
	return f.findDocs[collection], nil
}

func (f *fakeStore) record(c storeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) lastCall() storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testIdentity(role contractx.Role) *contractx.ResolvedIdentity {
	return &contractx.ResolvedIdentity{
		ID:          "u-1",
		DisplayName: "Test User",
		Email:       "user@campus.edu",
		Role:        role,
		Context: contractx.RoleContext{
			BatchID:    "b-1",
			ChildID:    "c-1",
			SubjectIDs: []string{"cs301"},
		},
	}
}

func mustRouter(t *testing.T, store contractx.DocumentStore) *Router {
	t.Helper()
	router, err := NewRouter(store, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return router
}

// secretFields must never appear in any fetcher output, for any role.
var secretFields = []string{"ssn", "feeBalance", "phone", "homeAddress"}

func docWithSecrets(fields []string) map[string]any {
	doc := make(map[string]any, len(fields)+len(secretFields))
	for _, f := range fields {
		doc[f] = "v-" + f
	}
	for _, f := range secretFields {
		doc[f] = "SECRET"
	}
	return doc
}

// collectRecords flattens any fetcher payload shape into its record maps.
func collectRecords(t *testing.T, payload any) []map[string]any {
	t.Helper()
	switch v := payload.(type) {
	case []map[string]any:
		return v
	case map[string]any:
		return []map[string]any{v}
	case FacultyLeaveData:
		return append(append([]map[string]any{}, v.Applications...), v.Balances...)
	default:
		t.Fatalf("unexpected payload shape: %T", payload)
		return nil
	}
}

// Every registered fetcher only returns fields from its declared projection,
// even when the underlying documents carry extras.
func TestProjectionContainmentAcrossAllRegistrations(t *testing.T) {
	t.Parallel()

	for key, reg := range registrations {
		key, reg := key, reg
		t.Run(string(key.role)+"/"+string(key.intent), func(t *testing.T) {
			t.Parallel()

			allowed := make(map[string]bool)
			for _, f := range reg.projection {
				allowed[f] = true
			}
			for _, f := range facultyLeaveProjections.applications {
				allowed[f] = true
			}
			for _, f := range facultyLeaveProjections.balances {
				allowed[f] = true
			}

			store := newFakeStore()
			for _, col := range []string{
				colStudents, colFaculty, colAdmins, colAttendance, colAssignments,
				colTimetables, colLeaveApps, colLeaveBalances, colStudentLeaves,
				colResults, colNotifications, colDepartments, colEvaluations,
			} {
				store.findDocs[col] = []map[string]any{docWithSecrets(reg.projection)}
			}
			childDoc := docWithSecrets(reg.projection)
			childDoc["batchId"] = "b-9"
			store.getDocs[colStudents+"/c-1"] = childDoc
			store.getDocs[colStudents+"/u-1"] = docWithSecrets(reg.projection)
			store.getDocs[colFaculty+"/u-1"] = docWithSecrets(reg.projection)

			router := mustRouter(t, store)
			payload, err := router.Fetch(context.Background(), key.role, key.intent, testIdentity(key.role))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, record := range collectRecords(t, payload) {
				for field := range record {
					if !allowed[field] {
						t.Fatalf("field %q escaped the projection for %s/%s", field, key.role, key.intent)
					}
				}
			}
		})
	}
}

func TestStudentAttendanceScopedToOwnRecords(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.findDocs[colAttendance] = []map[string]any{
		{"date": "2026-08-01", "subject": "cs301", "status": "present"},
	}

	router := mustRouter(t, store)
	payload, err := router.Fetch(context.Background(), contractx.RoleStudent, contractx.IntentAttendance, testIdentity(contractx.RoleStudent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collectRecords(t, payload)) != 1 {
		t.Fatal("expected one record")
	}

	call := store.lastCall()
	if call.collection != colAttendance || call.field != "studentId" || call.value != "u-1" {
		t.Fatalf("query not scoped to own records: %+v", call)
	}
}

func TestParentAttendanceScopedToChild(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	router := mustRouter(t, store)
	if _, err := router.Fetch(context.Background(), contractx.RoleParent, contractx.IntentAttendance, testIdentity(contractx.RoleParent)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := store.lastCall()
	if call.field != "studentId" || call.value != "c-1" {
		t.Fatalf("query not scoped to child: %+v", call)
	}
}

func TestAdminStudentsBoundedGlobalQuery(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	router := mustRouter(t, store)
	if _, err := router.Fetch(context.Background(), contractx.RoleAdmin, contractx.IntentStudents, testIdentity(contractx.RoleAdmin)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := store.lastCall()
	if call.field != "" {
		t.Fatalf("admin scope should not filter by owner, got field %q", call.field)
	}
	if call.limit != 50 {
		t.Fatalf("admin query must be capped, got limit %d", call.limit)
	}
}

// Parent timetable is a two-hop fetch; a child without a batch yields an
// empty result and no second query, never a global one.
func TestParentTimetableTwoHopFailsClosed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.getDocs[colStudents+"/c-1"] = map[string]any{"name": "Child"} // no batchId

	router := mustRouter(t, store)
	payload, err := router.Fetch(context.Background(), contractx.RoleParent, contractx.IntentTimetable, testIdentity(contractx.RoleParent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := collectRecords(t, payload); len(got) != 0 {
		t.Fatalf("expected empty result, got %d records", len(got))
	}
	if store.callCount() != 1 {
		t.Fatalf("expected only the child lookup, got %d store calls", store.callCount())
	}
}

func TestParentTimetableTwoHopQueriesChildBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.getDocs[colStudents+"/c-1"] = map[string]any{"batchId": "b-9"}
	store.findDocs[colTimetables] = []map[string]any{
		{"day": "mon", "period": 1, "subject": "cs301", "room": "A-1"},
	}

	router := mustRouter(t, store)
	payload, err := router.Fetch(context.Background(), contractx.RoleParent, contractx.IntentTimetable, testIdentity(contractx.RoleParent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collectRecords(t, payload)) != 1 {
		t.Fatal("expected one record")
	}

	call := store.lastCall()
	if call.collection != colTimetables || call.field != "batchId" || call.value != "b-9" {
		t.Fatalf("second hop not scoped to child batch: %+v", call)
	}
}

// Both halves of the faculty leave composite must succeed; a failing half
// fails the whole fetch rather than forwarding a partial result.
func TestFacultyLeavesCompositePartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.findDocs[colLeaveApps] = []map[string]any{
		{"fromDate": "2026-09-01", "toDate": "2026-09-02", "reason": "conference", "status": "pending"},
	}
	store.failCols[colLeaveBalances] = true

	router := mustRouter(t, store)
	_, err := router.Fetch(context.Background(), contractx.RoleFaculty, contractx.IntentLeaves, testIdentity(contractx.RoleFaculty))
	if !errors.Is(err, contractx.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
}

func TestFacultyLeavesCompositeShape(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.findDocs[colLeaveApps] = []map[string]any{
		{"fromDate": "2026-09-01", "toDate": "2026-09-02", "reason": "conference", "status": "pending"},
	}
	store.findDocs[colLeaveBalances] = []map[string]any{
		{"type": "casual", "remaining": 4, "total": 12},
	}

	router := mustRouter(t, store)
	payload, err := router.Fetch(context.Background(), contractx.RoleFaculty, contractx.IntentLeaves, testIdentity(contractx.RoleFaculty))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := payload.(FacultyLeaveData)
	if !ok {
		t.Fatalf("unexpected payload type: %T", payload)
	}
	if len(data.Applications) != 1 || len(data.Balances) != 1 {
		t.Fatalf("unexpected composite: %+v", data)
	}
}

// A store error is a distinct retrieval failure, never confused with an
// empty result.
func TestStoreErrorIsRetrievalFailedNotEmpty(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failCols[colAttendance] = true

	router := mustRouter(t, store)
	_, err := router.Fetch(context.Background(), contractx.RoleStudent, contractx.IntentAttendance, testIdentity(contractx.RoleStudent))
	if !errors.Is(err, contractx.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
}

// No registration means deny, not a generic fallback fetch.
func TestFetchWithoutRegistrationIsDenied(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	router := mustRouter(t, store)
	_, err := router.Fetch(context.Background(), contractx.RoleStudent, contractx.IntentDepartments, testIdentity(contractx.RoleStudent))
	if !errors.Is(err, contractx.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if store.callCount() != 0 {
		t.Fatalf("store must not be touched, got %d calls", store.callCount())
	}
}

// Missing role context (e.g. faculty with no batch) scopes to nothing.
func TestMissingScopeValueReturnsEmpty(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.findDocs[colStudents] = []map[string]any{{"name": "X", "regNumber": "1", "batchId": "b"}}

	ident := testIdentity(contractx.RoleFaculty)
	ident.Context.BatchID = ""

	router := mustRouter(t, store)
	payload, err := router.Fetch(context.Background(), contractx.RoleFaculty, contractx.IntentStudents, ident)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := collectRecords(t, payload); len(got) != 0 {
		t.Fatalf("expected empty result, got %d records", len(got))
	}
	if store.callCount() != 0 {
		t.Fatalf("expected no query without a scope value, got %d calls", store.callCount())
	}
}

// The access matrix and the registration table must cover each other
// exactly: an allowed pair without a fetcher would dead-end, a fetcher for a
// disallowed pair would be unreachable code behind the gate.
func TestRegistrationsMatchAccessMatrix(t *testing.T) {
	t.Parallel()

	for _, role := range contractx.Roles() {
		for _, it := range contractx.Intents() {
			_, registered := registrationFor(role, it)
			allowed := accessx.IsAllowed(role, it)
			if registered != allowed {
				t.Fatalf("matrix/registry mismatch for %s/%s: allowed=%v registered=%v", role, it, allowed, registered)
			}
		}
	}
}
