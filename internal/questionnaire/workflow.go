package questionnaire

import "time"

// Stage is where a patient sits in the onboarding and diet refresh sequence.
type Stage string

const (
	StageInitialIncomplete Stage = "initial_incomplete"
	StageNoDietRecord      Stage = "no_diet_record"
	StageDietDue           Stage = "diet_due"
	StageDietCurrent       Stage = "diet_current"
)

// Evaluate derives the stage from the patient's flags and diet record.
// intervalDays is read from configuration by the caller on every call.
func Evaluate(initialCompleted bool, record *PatientDietQuestion, now time.Time, intervalDays int) Stage {
	if !initialCompleted {
		return StageInitialIncomplete
	}
	if record == nil {
		return StageNoDietRecord
	}
	if !dateOf(now).Before(NextDueDate(record.LastDietUpdate, intervalDays)) {
		return StageDietDue
	}
	return StageDietCurrent
}

// NextDueDate is the calendar day the diet record must be refreshed on.
func NextDueDate(lastUpdate time.Time, intervalDays int) time.Time {
	return dateOf(lastUpdate).AddDate(0, 0, intervalDays)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
