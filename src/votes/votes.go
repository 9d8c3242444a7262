// Package votes maps a paid vote fee to voting power on a sub-linear curve.
package votes

import (
	"math"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

type Tier string

const (
	TierMinimal  Tier = "minimal"
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierMaximum  Tier = "maximum"
)

// percentages of the theoretical maximum
const (
	highPercent     = 70
	moderatePercent = 35
	lowPercent      = 15
	minimalPercent  = 5
)

var semitone = math.Pow(2, 1.0/12)

type Result struct {
	Votes  uint64
	Amount uint64
	Tier   Tier
}

// Thresholds are the minimum votes for each tier, derived from the configured fees.
type Thresholds struct {
	Max      uint64
	High     uint64
	Moderate uint64
	Low      uint64
	Minimal  uint64
}

type Calculator struct {
	MinFee   uint64 `yaml:"min_vote_fee"`
	MaxFee   uint64 `yaml:"max_vote_fee"`
	MaxVotes uint64 `yaml:"max_votes"` // 0 means uncapped
}

func (c Calculator) validate() error {
	if c.MinFee == 0 || c.MaxFee < c.MinFee {
		return errors.Errorf("invalid vote fee range [%d, %d]", c.MinFee, c.MaxFee)
	}
	return nil
}

// curve computes floor(2^(floor(o)*2/3) * r^((o*12 mod 12)*2/3)) for o = log2(n).
// Whole octaves and the semitone remainder are both compressed by 2/3, which
// keeps the curve continuous across octave boundaries.
func curve(normalized uint64) uint64 {
	if normalized <= 1 {
		return 1
	}
	octaves := math.Log2(float64(normalized))
	whole := math.Floor(octaves)
	semitones := math.Mod(octaves*12, 12)
	v := math.Pow(2, whole*2/3) * math.Pow(semitone, semitones*2/3)
	// absorb float error at exact powers, e.g. 8^(2/3) evaluating to 3.9999999
	votes := uint64(math.Floor(v + 1e-9))
	if votes < 1 {
		return 1
	}
	return votes
}

func (c Calculator) normalize(amount uint64) uint64 {
	n := amount / c.MinFee
	if ceiling := c.MaxFee / c.MinFee; n > ceiling {
		n = ceiling
	}
	return n
}

func (c Calculator) clamp(votes uint64) uint64 {
	if c.MaxVotes > 0 && votes > c.MaxVotes {
		return c.MaxVotes
	}
	return votes
}

// Weight is pure in amount. Amounts over MaxFee weigh the same as MaxFee.
func (c Calculator) Weight(amount uint64) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{}, err
	}
	if amount < c.MinFee {
		return Result{}, errors.Wrapf(model.ErrBelowMinimum, "vote fee %d below minimum %d", amount, c.MinFee)
	}
	votes := c.clamp(curve(c.normalize(amount)))
	th, _ := c.Thresholds()
	return Result{Votes: votes, Amount: amount, Tier: th.Classify(votes)}, nil
}

// Thresholds recomputes the tier bands from the configured fee range.
func (c Calculator) Thresholds() (Thresholds, error) {
	if err := c.validate(); err != nil {
		return Thresholds{}, err
	}
	top := c.clamp(curve(c.normalize(c.MaxFee)))
	at := func(percent float64) uint64 {
		return uint64(math.Ceil(float64(top) * percent / 100))
	}
	return Thresholds{
		Max:      top,
		High:     at(highPercent),
		Moderate: at(moderatePercent),
		Low:      at(lowPercent),
		Minimal:  at(minimalPercent),
	}, nil
}

func (t Thresholds) Classify(votes uint64) Tier {
	switch {
	case votes >= t.Max:
		return TierMaximum
	case votes >= t.High:
		return TierHigh
	case votes >= t.Moderate:
		return TierModerate
	case votes >= t.Low:
		return TierLow
	default:
		return TierMinimal
	}
}
