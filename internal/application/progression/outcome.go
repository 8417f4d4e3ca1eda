package progression

// Outcome reports how an engine operation ended. Expected failures such as
// insufficient funds are outcomes, never errors; errors are reserved for
// storage failures and caller bugs.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeAlreadyEnrolled   Outcome = "already_enrolled"
	OutcomeNotEnrolled       Outcome = "not_enrolled"
	OutcomeCourseNotFound    Outcome = "course_not_found"
	OutcomeModuleNotFound    Outcome = "module_not_found"
	OutcomeNotBonus          Outcome = "not_bonus_module"
	OutcomeAlreadyOpen       Outcome = "already_open"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeAlreadyClaimed    Outcome = "already_claimed"
	OutcomeNotCompleted      Outcome = "not_completed"
	OutcomeTimeLimitExceeded Outcome = "time_limit_exceeded"
	OutcomeNoTimeLimit       Outcome = "no_time_limit"
	OutcomeModuleLocked      Outcome = "module_locked"
	OutcomeAlreadyCompleted  Outcome = "already_completed"
)

// OK reports whether the operation took effect.
func (o Outcome) OK() bool {
	return o == OutcomeOK
}

func (o Outcome) String() string {
	return string(o)
}
