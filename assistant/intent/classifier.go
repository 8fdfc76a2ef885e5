package intent

import (
	"strings"

	contractx "github.com/campora/assistant/assistant/contract"
)

// triggerEntry binds one intent to the phrases that can ever invoke it. The
// table is the complete, reviewable set of inputs that can lead to a data
// fetch; matching is plain substring work so the mapping stays auditable.
type triggerEntry struct {
	intent  contractx.Intent
	phrases []string
}

// triggerTable is matched top to bottom; the first entry with any matching
// phrase wins, so an utterance mixing two categories resolves to the earlier
// one. Order follows contract.Intents. StudentLeaves sits before Leaves so
// that "student leave" is not swallowed by the bare "leave" trigger.
var triggerTable = []triggerEntry{
	{contractx.IntentAttendance, []string{"attendance", "absent", "present", "absences"}},
	{contractx.IntentAssignments, []string{"assignment", "homework", "submission"}},
	{contractx.IntentTimetable, []string{"timetable", "time table", "schedule", "class today", "period"}},
	{contractx.IntentStudentLeaves, []string{"student leave", "student leaves", "leave request from student"}},
	{contractx.IntentLeaves, []string{"leave", "leaves", "leave balance", "vacation"}},
	{contractx.IntentResults, []string{"result", "results", "marks", "grade", "score", "exam"}},
	{contractx.IntentNotifications, []string{"notification", "notifications", "announcement", "circular", "notice"}},
	{contractx.IntentProfile, []string{"profile", "my details", "my info"}},
	{contractx.IntentStudents, []string{"student list", "students", "my batch students"}},
	{contractx.IntentFaculty, []string{"faculty", "teacher", "teachers", "staff"}},
	{contractx.IntentDepartments, []string{"department", "departments"}},
	{contractx.IntentEvaluation, []string{"evaluation", "evaluate", "papers to check"}},
}

// Classify maps free text to an intent, or nil when nothing matches.
// Deterministic: same input, same answer. Unmatched input is a normal
// outcome, not an error.
func Classify(utterance string) *contractx.Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return nil
	}
	for _, entry := range triggerTable {
		for _, phrase := range entry.phrases {
			if strings.Contains(text, phrase) {
				matched := entry.intent
				return &matched
			}
		}
	}
	return nil
}
