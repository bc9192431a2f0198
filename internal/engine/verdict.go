package engine

// Verdict is the outcome of one action submission. Rejections are values, not
// errors: nothing is reported back to the sender over the wire, but callers
// and tests can assert on the reason directly.
type Verdict int

const (
	VerdictAdmitted Verdict = iota + 1
	VerdictMatchNotFound
	VerdictObserverWrite
	VerdictNotCurrentPlayer
	VerdictStaleVersion
	VerdictRuleRejected
)

func (that Verdict) String() string {
	switch that {
	case VerdictAdmitted:
		return "admitted"
	case VerdictMatchNotFound:
		return "match_not_found"
	case VerdictObserverWrite:
		return "observer_write"
	case VerdictNotCurrentPlayer:
		return "not_current_player"
	case VerdictStaleVersion:
		return "stale_version"
	case VerdictRuleRejected:
		return "rule_rejected"
	default:
		return "unknown"
	}
}

// Admitted reports whether the action advanced the match.
func (that Verdict) Admitted() bool {
	return that == VerdictAdmitted
}
