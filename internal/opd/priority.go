package opd

import (
	"fmt"
	"strings"
)

// PriorityClass is the patient category that decides queue precedence.
type PriorityClass string

const (
	Emergency    PriorityClass = "EMERGENCY"
	PaidPriority PriorityClass = "PAID_PRIORITY"
	FollowUp     PriorityClass = "FOLLOW_UP"
	Online       PriorityClass = "ONLINE"
	WalkIn       PriorityClass = "WALK_IN"
)

// rankTable is static configuration. Lower rank is served first.
// Ranks are not derived from declaration order so a new class can be slotted
// in between existing ones without renumbering callers.
var rankTable = map[PriorityClass]int{
	Emergency:    0,
	PaidPriority: 1,
	FollowUp:     2,
	Online:       3,
	WalkIn:       4,
}

// PriorityClasses lists every known class in rank order.
func PriorityClasses() []PriorityClass {
	return []PriorityClass{Emergency, PaidPriority, FollowUp, Online, WalkIn}
}

// Rank returns the rank of p and whether p is a known class.
func Rank(p PriorityClass) (int, bool) {
	r, ok := rankTable[p]
	return r, ok
}

func (p PriorityClass) Valid() bool {
	_, ok := rankTable[p]
	return ok
}

func (p PriorityClass) String() string {
	return string(p)
}

// ParsePriorityClass accepts the wire names case-insensitively, with either
// underscores or dashes.
func ParsePriorityClass(s string) (PriorityClass, error) {
	p := PriorityClass(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
	return p, nil
}
