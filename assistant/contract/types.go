package contract

import "time"

// Role is the closed set of principal categories. A role is resolved once per
// session and never changes mid-conversation.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
	RoleParent  Role = "parent"
)

// Roles returns every role, in resolver probe order: a principal present in
// more than one identity collection resolves to the earliest role here.
func Roles() []Role {
	return []Role{RoleStudent, RoleFaculty, RoleAdmin, RoleParent}
}

// Intent is the closed set of information categories a user can ask about.
// Values are only ever produced by the classifier, never parsed from input.
type Intent string

const (
	IntentAttendance    Intent = "attendance"
	IntentAssignments   Intent = "assignments"
	IntentTimetable     Intent = "timetable"
	IntentLeaves        Intent = "leaves"
	IntentResults       Intent = "results"
	IntentNotifications Intent = "notifications"
	IntentProfile       Intent = "profile"
	IntentStudents      Intent = "students"
	IntentFaculty       Intent = "faculty"
	IntentDepartments   Intent = "departments"
	IntentEvaluation    Intent = "evaluation"
	IntentStudentLeaves Intent = "student_leaves"
)

// Intents returns every intent in classifier table order. Ambiguous
// utterances resolve to the earliest matching intent in this order.
func Intents() []Intent {
	return []Intent{
		IntentAttendance,
		IntentAssignments,
		IntentTimetable,
		IntentStudentLeaves,
		IntentLeaves,
		IntentResults,
		IntentNotifications,
		IntentProfile,
		IntentStudents,
		IntentFaculty,
		IntentDepartments,
		IntentEvaluation,
	}
}

// Principal is the already-authenticated user as supplied by the auth
// provider. This subsystem never authenticates; it only consumes this.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// RoleContext carries the role-dependent attributes picked up at resolution
// time. ChildID is a lookup-only back-reference to a student identity, never
// an ownership edge.
type RoleContext struct {
	BatchID    string   `json:"batch_id,omitempty"`
	ChildID    string   `json:"child_id,omitempty"`
	SubjectIDs []string `json:"subject_ids,omitempty"`
}

// ResolvedIdentity is the session-scoped identity the whole pipeline runs
// against. Immutable once created.
type ResolvedIdentity struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	Context     RoleContext `json:"context"`
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// GenerationRequest is the payload handed to the external generation
// boundary. ContextData must already be projected down to the fields the
// role is entitled to see; the boundary renders, it does not filter.
type GenerationRequest struct {
	Role        Role      `json:"role"`
	UserName    string    `json:"user_name"`
	Intent      Intent    `json:"intent"`
	ContextData any       `json:"context_data"`
	ChatHistory []Message `json:"chat_history,omitempty"`
}

type GenerationResponse struct {
	Response string `json:"response"`
}
