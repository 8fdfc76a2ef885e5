package access

import (
	contractx "github.com/campora/assistant/assistant/contract"
)

// matrix is the single source of authorization truth. Nothing outside this
// package may decide whether a (role, intent) pair is reachable, and no
// fetcher runs unless IsAllowed said yes for it.
var matrix = map[contractx.Role]map[contractx.Intent]struct{}{
	contractx.RoleStudent: intentSet(
		contractx.IntentAttendance,
		contractx.IntentAssignments,
		contractx.IntentTimetable,
		contractx.IntentLeaves,
		contractx.IntentResults,
		contractx.IntentNotifications,
		contractx.IntentProfile,
	),
	contractx.RoleFaculty: intentSet(
		contractx.IntentAttendance,
		contractx.IntentAssignments,
		contractx.IntentTimetable,
		contractx.IntentLeaves,
		contractx.IntentNotifications,
		contractx.IntentProfile,
		contractx.IntentStudents,
		contractx.IntentStudentLeaves,
		contractx.IntentEvaluation,
	),
	contractx.RoleAdmin: intentSet(
		contractx.IntentStudents,
		contractx.IntentFaculty,
		contractx.IntentDepartments,
		contractx.IntentLeaves,
		contractx.IntentNotifications,
		contractx.IntentProfile,
	),
	contractx.RoleParent: intentSet(
		contractx.IntentAttendance,
		contractx.IntentResults,
		contractx.IntentTimetable,
		contractx.IntentLeaves,
		contractx.IntentNotifications,
		contractx.IntentProfile,
	),
}

func intentSet(intents ...contractx.Intent) map[contractx.Intent]struct{} {
	set := make(map[contractx.Intent]struct{}, len(intents))
	for _, it := range intents {
		set[it] = struct{}{}
	}
	return set
}

// IsAllowed reports whether role may invoke intent. Total over the full
// cross-product: unknown roles and intents are simply not allowed.
func IsAllowed(role contractx.Role, intent contractx.Intent) bool {
	allowed, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = allowed[intent]
	return ok
}

// AllowedIntents lists the intents role may invoke, in classifier table
// order. This is what a denial or help message may reveal, and nothing more.
func AllowedIntents(role contractx.Role) []contractx.Intent {
	allowed, ok := matrix[role]
	if !ok {
		return nil
	}
	out := make([]contractx.Intent, 0, len(allowed))
	for _, it := range contractx.Intents() {
		if _, ok := allowed[it]; ok {
			out = append(out, it)
		}
	}
	return out
}
