package matcher

import "time"

// WideningPolicy loosens the compatibility threshold for players who have
// waited a long time. Once a player has waited After, their threshold grows by
// Step immediately and again every Every, capped at Max. The zero value never
// widens.
type WideningPolicy struct {
	After time.Duration
	Every time.Duration
	Step  int
	Max   int
}

// Threshold returns the effective threshold for a player who has waited
// waited, starting from base
func (p WideningPolicy) Threshold(base int, waited time.Duration) int {
	if p.Step <= 0 || waited < p.After {
		return base
	}

	steps := 1
	if p.Every > 0 {
		steps += int((waited - p.After) / p.Every)
	}

	t := base + steps*p.Step
	if p.Max > 0 && t > p.Max {
		t = p.Max
	}
	if t < base {
		return base
	}
	return t
}
