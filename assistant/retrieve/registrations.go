package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	contractx "github.com/campora/assistant/assistant/contract"
)

// ERP collections this router reads. Field names are the schema contract
// with whatever writes them (the CRUD pages).
const (
	colStudents      = "students"
	colFaculty       = "faculty"
	colAdmins        = "admins"
	colAttendance    = "attendance"
	colAssignments   = "assignments"
	colTimetables    = "timetables"
	colLeaveApps     = "leave_applications"
	colLeaveBalances = "leave_balances"
	colStudentLeaves = "student_leaves"
	colResults       = "results"
	colNotifications = "notifications"
	colDepartments   = "departments"
	colEvaluations   = "evaluations"
)

// FacultyLeaveData is the composite payload for the faculty Leaves intent.
// Both halves come from concurrent queries; a partial result is never
// forwarded.
type FacultyLeaveData struct {
	Applications []map[string]any `json:"applications"`
	Balances     []map[string]any `json:"balances"`
}

type routeKey struct {
	role   contractx.Role
	intent contractx.Intent
}

// registrations maps every allowed (role, intent) pair to its fetcher
// descriptor. Two roles sharing an intent get separate entries with separate
// projections; a projection is the complete list of fields that role may see.
var registrations = map[routeKey]registration{
	// Student: everything is scoped to the student's own records or batch.
	{contractx.RoleStudent, contractx.IntentAttendance}: {
		collection: colAttendance, scope: ScopeMine, filter: "studentId",
		projection: []string{"date", "subject", "status"}, limit: 100,
	},
	{contractx.RoleStudent, contractx.IntentAssignments}: {
		collection: colAssignments, scope: ScopeBatch, filter: "batchId",
		projection: []string{"title", "subject", "dueDate", "status"}, limit: 50,
	},
	{contractx.RoleStudent, contractx.IntentTimetable}: {
		collection: colTimetables, scope: ScopeBatch, filter: "batchId",
		projection: []string{"day", "period", "subject", "room"}, limit: 50,
	},
	{contractx.RoleStudent, contractx.IntentLeaves}: {
		collection: colStudentLeaves, scope: ScopeMine, filter: "studentId",
		projection: []string{"fromDate", "toDate", "reason", "status"}, limit: 50,
	},
	{contractx.RoleStudent, contractx.IntentResults}: {
		collection: colResults, scope: ScopeMine, filter: "studentId",
		projection: []string{"subject", "exam", "marks", "maxMarks", "grade"}, limit: 100,
	},
	{contractx.RoleStudent, contractx.IntentNotifications}: {
		collection: colNotifications, scope: ScopeGlobal, filter: "audience", value: "students",
		projection: []string{"title", "message", "date"}, limit: 20,
	},
	{contractx.RoleStudent, contractx.IntentProfile}: {
		collection: colStudents,
		projection: []string{"name", "regNumber", "batchId", "department", "email"},
		run:        runOwnDocument,
	},

	// Faculty: batch-wide visibility for teaching data, own records for the
	// rest. The Students projection deliberately excludes contact and
	// financial fields.
	{contractx.RoleFaculty, contractx.IntentAttendance}: {
		collection: colAttendance, scope: ScopeBatch, filter: "batchId",
		projection: []string{"studentId", "date", "subject", "status"}, limit: 200,
	},
	{contractx.RoleFaculty, contractx.IntentAssignments}: {
		collection: colAssignments, scope: ScopeMine, filter: "facultyId",
		projection: []string{"title", "subject", "dueDate", "batchId"}, limit: 50,
	},
	{contractx.RoleFaculty, contractx.IntentTimetable}: {
		collection: colTimetables, scope: ScopeBatch, filter: "batchId",
		projection: []string{"day", "period", "subject", "room"}, limit: 50,
	},
	{contractx.RoleFaculty, contractx.IntentLeaves}: {
		run: runFacultyLeaves,
	},
	{contractx.RoleFaculty, contractx.IntentNotifications}: {
		collection: colNotifications, scope: ScopeGlobal, filter: "audience", value: "faculty",
		projection: []string{"title", "message", "date"}, limit: 20,
	},
	{contractx.RoleFaculty, contractx.IntentProfile}: {
		collection: colFaculty,
		projection: []string{"name", "department", "designation", "subjectIds", "email"},
		run:        runOwnDocument,
	},
	{contractx.RoleFaculty, contractx.IntentStudents}: {
		collection: colStudents, scope: ScopeBatch, filter: "batchId",
		projection: []string{"name", "regNumber", "batchId"}, limit: 100,
	},
	{contractx.RoleFaculty, contractx.IntentStudentLeaves}: {
		collection: colStudentLeaves, scope: ScopeBatch, filter: "batchId",
		projection: []string{"studentId", "fromDate", "toDate", "reason", "status"}, limit: 50,
	},
	{contractx.RoleFaculty, contractx.IntentEvaluation}: {
		collection: colEvaluations, scope: ScopeMine, filter: "facultyId",
		projection: []string{"exam", "subject", "batchId", "dueDate", "status"}, limit: 50,
	},

	// Admin: everyone, limited volume. Caps stand in for per-owner filters.
	{contractx.RoleAdmin, contractx.IntentStudents}: {
		collection: colStudents, scope: ScopeGlobal,
		projection: []string{"name", "regNumber", "department", "batchId"}, limit: 50,
	},
	{contractx.RoleAdmin, contractx.IntentFaculty}: {
		collection: colFaculty, scope: ScopeGlobal,
		projection: []string{"name", "department", "designation"}, limit: 50,
	},
	{contractx.RoleAdmin, contractx.IntentDepartments}: {
		collection: colDepartments, scope: ScopeGlobal,
		projection: []string{"name", "code", "head"}, limit: 50,
	},
	{contractx.RoleAdmin, contractx.IntentLeaves}: {
		collection: colLeaveApps, scope: ScopeGlobal, filter: "status", value: "pending",
		projection: []string{"facultyId", "fromDate", "toDate", "reason", "status"}, limit: 50,
	},
	{contractx.RoleAdmin, contractx.IntentNotifications}: {
		collection: colNotifications, scope: ScopeGlobal,
		projection: []string{"title", "message", "date", "audience"}, limit: 20,
	},
	{contractx.RoleAdmin, contractx.IntentProfile}: {
		collection: colAdmins,
		projection: []string{"name", "email", "designation"},
		run:        runAdminProfile,
	},

	// Parent: only the linked child's records, by the childId back-reference.
	{contractx.RoleParent, contractx.IntentAttendance}: {
		collection: colAttendance, scope: ScopeChild, filter: "studentId",
		projection: []string{"date", "subject", "status"}, limit: 100,
	},
	{contractx.RoleParent, contractx.IntentResults}: {
		collection: colResults, scope: ScopeChild, filter: "studentId",
		projection: []string{"subject", "exam", "marks", "maxMarks", "grade"}, limit: 100,
	},
	{contractx.RoleParent, contractx.IntentTimetable}: {
		collection: colTimetables, scope: ScopeChildBatch, filter: "batchId",
		projection: []string{"day", "period", "subject", "room"}, limit: 50,
		run:        runChildBatchQuery,
	},
	{contractx.RoleParent, contractx.IntentLeaves}: {
		collection: colStudentLeaves, scope: ScopeChild, filter: "studentId",
		projection: []string{"fromDate", "toDate", "reason", "status"}, limit: 50,
	},
	{contractx.RoleParent, contractx.IntentNotifications}: {
		collection: colNotifications, scope: ScopeGlobal, filter: "audience", value: "parents",
		projection: []string{"title", "message", "date"}, limit: 20,
	},
	{contractx.RoleParent, contractx.IntentProfile}: {
		collection: colStudents,
		projection: []string{"name", "regNumber", "batchId", "department"},
		run:        runChildDocument,
	},
}

func registrationFor(role contractx.Role, intent contractx.Intent) (registration, bool) {
	reg, ok := registrations[routeKey{role, intent}]
	return reg, ok
}

// runOwnDocument returns the identity's own document, projected.
func runOwnDocument(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error) {
	doc, err := r.store.Get(ctx, reg.collection, ident.ID)
	if err != nil {
		if errors.Is(err, contractx.ErrDocNotFound) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: get %s: %v", contractx.ErrRetrievalFailed, reg.collection, err)
	}
	return project(doc, reg.projection), nil
}

// runChildDocument returns the linked child's document, projected. No child
// link means no data.
func runChildDocument(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error) {
	childID := ident.Context.ChildID
	if childID == "" {
		return map[string]any{}, nil
	}
	doc, err := r.store.Get(ctx, reg.collection, childID)
	if err != nil {
		if errors.Is(err, contractx.ErrDocNotFound) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: get %s: %v", contractx.ErrRetrievalFailed, reg.collection, err)
	}
	return project(doc, reg.projection), nil
}

// runAdminProfile looks the admin up by email, since admins are not keyed by
// principal id.
func runAdminProfile(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error) {
	if ident.Email == "" {
		return map[string]any{}, nil
	}
	docs, err := r.store.FindByField(ctx, reg.collection, "email", ident.Email, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s by email: %v", contractx.ErrRetrievalFailed, reg.collection, err)
	}
	if len(docs) == 0 {
		return map[string]any{}, nil
	}
	return project(docs[0], reg.projection), nil
}

// runChildBatchQuery is the two-hop parent fetch: resolve the child's batch,
// then query the target collection by it. Either hop coming up empty yields
// an empty result; there is no unscoped fallback.
func runChildBatchQuery(ctx context.Context, r *Router, reg registration, ident *contractx.ResolvedIdentity) (any, error) {
	childID := ident.Context.ChildID
	if childID == "" {
		return []map[string]any{}, nil
	}

	child, err := r.store.Get(ctx, colStudents, childID)
	if err != nil {
		if errors.Is(err, contractx.ErrDocNotFound) {
			return []map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: resolve child %s: %v", contractx.ErrRetrievalFailed, childID, err)
	}

	batchID, _ := child["batchId"].(string)
	if batchID == "" {
		return []map[string]any{}, nil
	}

	docs, err := r.store.FindByField(ctx, reg.collection, reg.filter, batchID, reg.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s by %s: %v", contractx.ErrRetrievalFailed, reg.collection, reg.filter, err)
	}
	return projectAll(docs, reg.projection), nil
}

var facultyLeaveProjections = struct {
	applications []string
	balances     []string
}{
	applications: []string{"fromDate", "toDate", "reason", "status"},
	balances:     []string{"type", "remaining", "total"},
}

// runFacultyLeaves fans out the applications and balances queries
// concurrently and requires both to succeed before returning anything.
func runFacultyLeaves(ctx context.Context, r *Router, _ registration, ident *contractx.ResolvedIdentity) (any, error) {
	var (
		wg       sync.WaitGroup
		apps     []map[string]any
		balances []map[string]any
		appsErr  error
		balErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		apps, appsErr = r.store.FindByField(ctx, colLeaveApps, "facultyId", ident.ID, 50)
	}()
	go func() {
		defer wg.Done()
		balances, balErr = r.store.FindByField(ctx, colLeaveBalances, "facultyId", ident.ID, 20)
	}()
	wg.Wait()

	if appsErr != nil {
		return nil, fmt.Errorf("%w: query %s: %v", contractx.ErrRetrievalFailed, colLeaveApps, appsErr)
	}
	if balErr != nil {
		return nil, fmt.Errorf("%w: query %s: %v", contractx.ErrRetrievalFailed, colLeaveBalances, balErr)
	}

	return FacultyLeaveData{
		Applications: projectAll(apps, facultyLeaveProjections.applications),
		Balances:     projectAll(balances, facultyLeaveProjections.balances),
	}, nil
}
