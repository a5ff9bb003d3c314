// Package check implements degree-of-success math shared by all game systems.
package check

// MeetsDifficulty returns true if total >= difficulty.
// This is the most common difficulty check in tabletop RPGs.
func MeetsDifficulty(total, difficulty int) bool {
	return total >= difficulty
}

// Margin calculates the margin of success or failure.
// Positive values indicate success, negative indicate failure.
func Margin(total, difficulty int) int {
	return total - difficulty
}

// Degree is one of the four ordinal check outcomes.
type Degree int

const (
	DegreeCriticalFailure Degree = iota
	DegreeFailure
	DegreeSuccess
	DegreeCriticalSuccess
)

func (d Degree) String() string {
	switch d {
	case DegreeCriticalFailure:
		return "Critical Failure"
	case DegreeFailure:
		return "Failure"
	case DegreeSuccess:
		return "Success"
	case DegreeCriticalSuccess:
		return "Critical Success"
	default:
		return "Unknown"
	}
}

// Valid reports whether the degree is within the 0..3 range.
func (d Degree) Valid() bool {
	return d >= DegreeCriticalFailure && d <= DegreeCriticalSuccess
}

// Shift moves the degree by steps and clamps the result to the 0..3 range.
func (d Degree) Shift(steps int) Degree {
	return Clamp(Degree(int(d) + steps))
}

// Success reports whether the degree is a plain or critical success.
func (d Degree) Success() bool {
	return d >= DegreeSuccess
}

// Clamp forces a degree into the 0..3 range.
func Clamp(d Degree) Degree {
	if d < DegreeCriticalFailure {
		return DegreeCriticalFailure
	}
	if d > DegreeCriticalSuccess {
		return DegreeCriticalSuccess
	}
	return d
}

// DegreeByMargin classifies a total against a difficulty using the margin
// rule: 10 or more over the difficulty is a critical success, 10 or more
// under a critical failure. The natural d20 value then steps the degree once
// in its direction (20 up, 1 down), clamped.
func DegreeByMargin(total, difficulty, natural int) Degree {
	var degree Degree
	switch {
	case total >= difficulty+10:
		degree = DegreeCriticalSuccess
	case total >= difficulty:
		degree = DegreeSuccess
	case total <= difficulty-10:
		degree = DegreeCriticalFailure
	default:
		degree = DegreeFailure
	}
	switch natural {
	case 20:
		degree = degree.Shift(1)
	case 1:
		degree = degree.Shift(-1)
	}
	return degree
}

// DegreeByTarget classifies a total using the flat comparison rule: a natural
// 20 always critically succeeds, a natural 1 always critically fails, and the
// total otherwise only decides between success and failure.
func DegreeByTarget(total, difficulty, natural int) Degree {
	switch natural {
	case 1:
		return DegreeCriticalFailure
	case 20:
		return DegreeCriticalSuccess
	}
	if MeetsDifficulty(total, difficulty) {
		return DegreeSuccess
	}
	return DegreeFailure
}
