package opd

type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

var transitionMap = map[Action]struct {
	from []TokenStatus
	to   TokenStatus
}{
	ActionCheckIn:  {from: []TokenStatus{StatusBooked}, to: StatusCheckedIn},
	ActionComplete: {from: []TokenStatus{StatusCheckedIn}, to: StatusCompleted},
	ActionNoShow:   {from: []TokenStatus{StatusBooked, StatusCheckedIn}, to: StatusNoShow},
}

// Transition returns the status a token in fromStatus moves to under action.
// Cancellation is not listed: it applies from any status.
func Transition(action Action, fromStatus TokenStatus) (TokenStatus, bool) {
	t, ok := transitionMap[action]
	if !ok {
		return "", false
	}
	for _, status := range t.from {
		if status == fromStatus {
			return t.to, true
		}
	}
	return "", false
}
