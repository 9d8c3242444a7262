package votes

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

var calc = Calculator{MinFee: 100, MaxFee: 100000}

func TestMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		amounts := make([]uint64, 200)
		for i := range amounts {
			amounts[i] = calc.MinFee + uint64(rng.Int63n(int64(calc.MaxFee*3)))
		}
		sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
		prev := uint64(0)
		for _, a := range amounts {
			res, err := calc.Weight(a)
			if err != nil {
				t.Fatal(err)
			}
			if res.Votes < 1 {
				t.Fatalf("weight(%d) = %d, want at least 1", a, res.Votes)
			}
			if res.Votes < prev {
				t.Fatalf("weight decreased at %d: %d < %d", a, res.Votes, prev)
			}
			prev = res.Votes
		}
	}
}

func TestEveryStepNonDecreasing(t *testing.T) {
	prev := uint64(0)
	for n := calc.MinFee; n <= calc.MaxFee; n += calc.MinFee {
		res, err := calc.Weight(n)
		if err != nil {
			t.Fatal(err)
		}
		if res.Votes < prev {
			t.Fatalf("weight decreased at %d: %d < %d", n, res.Votes, prev)
		}
		prev = res.Votes
	}
}

func TestCap(t *testing.T) {
	atMax, _ := calc.Weight(100000)
	over, _ := calc.Weight(200000)
	if atMax.Votes != over.Votes {
		t.Fatalf("weight(100000)=%d, weight(200000)=%d", atMax.Votes, over.Votes)
	}
	if over.Amount != 200000 {
		t.Fatal("result should carry the original amount")
	}
}

func TestKnownPoints(t *testing.T) {
	cases := []struct {
		amount uint64
		votes  uint64
	}{
		{100, 1},     // n=1
		{199, 1},     // rounds down to n=1
		{800, 4},     // 8^(2/3)
		{2700, 9},    // 27^(2/3)
		{6400, 16},   // 64^(2/3)
		{100000, 99}, // 1000^(2/3) is 100, float noise floors to 99 or 100
	}
	for _, c := range cases {
		res, err := calc.Weight(c.amount)
		if err != nil {
			t.Fatal(err)
		}
		if c.amount == 100000 {
			if res.Votes < 99 || res.Votes > 100 {
				t.Errorf("weight(%d) = %d", c.amount, res.Votes)
			}
			continue
		}
		if res.Votes != c.votes {
			t.Errorf("weight(%d) = %d, want %d", c.amount, res.Votes, c.votes)
		}
	}
}

func TestBelowMinimum(t *testing.T) {
	_, err := calc.Weight(99)
	if !errors.Is(err, model.ErrBelowMinimum) {
		t.Fatalf("expected below minimum, got %v", err)
	}
	if model.Kind(err) != model.KindReportable {
		t.Fatal("below minimum should be reportable")
	}
}

func TestMaxVotesClamp(t *testing.T) {
	capped := Calculator{MinFee: 100, MaxFee: 100000, MaxVotes: 10}
	res, err := capped.Weight(100000)
	if err != nil {
		t.Fatal(err)
	}
	if res.Votes != 10 || res.Tier != TierMaximum {
		t.Fatalf("got %+v", res)
	}
}

func TestTiers(t *testing.T) {
	th, err := calc.Thresholds()
	if err != nil {
		t.Fatal(err)
	}
	if !(th.Minimal <= th.Low && th.Low <= th.Moderate && th.Moderate <= th.High && th.High <= th.Max) {
		t.Fatalf("thresholds out of order: %+v", th)
	}
	cases := []struct {
		votes uint64
		tier  Tier
	}{
		{1, TierMinimal},
		{th.Low, TierLow},
		{th.Moderate, TierModerate},
		{th.High, TierHigh},
		{th.Max, TierMaximum},
	}
	for _, c := range cases {
		if got := th.Classify(c.votes); got != c.tier {
			t.Errorf("classify(%d) = %s, want %s", c.votes, got, c.tier)
		}
	}

	// thresholds follow the configured fees
	wider := Calculator{MinFee: 100, MaxFee: 1000000}
	wth, _ := wider.Thresholds()
	if wth.Max <= th.Max {
		t.Fatalf("raising max fee should raise the maximum, got %d vs %d", wth.Max, th.Max)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, c := range []Calculator{{}, {MinFee: 100, MaxFee: 10}} {
		if _, err := c.Weight(1000); err == nil {
			t.Errorf("expected %+v to be rejected", c)
		}
	}
}

// Leaving the semitone remainder uncompressed dips from 3 votes at n=3 to 2
// at n=4, so the remainder is compressed like the whole octaves.
func TestSemitoneRemainderCompressed(t *testing.T) {
	uncompressed := func(n float64) uint64 {
		o := math.Log2(n)
		return uint64(math.Floor(math.Pow(2, o*2/3) * math.Pow(semitone, math.Mod(o*12, 12))))
	}
	if uncompressed(3) != 3 || uncompressed(4) != 2 {
		t.Fatalf("uncompressed curve: n=3 -> %d, n=4 -> %d", uncompressed(3), uncompressed(4))
	}
	if curve(3) != 2 || curve(4) != 2 {
		t.Fatalf("curve: n=3 -> %d, n=4 -> %d, want 2 and 2", curve(3), curve(4))
	}
	for n := uint64(2); n < 1000; n++ {
		want := uint64(math.Floor(math.Pow(float64(n), 2.0/3) + 1e-9))
		if got := curve(n); got != want {
			t.Fatalf("curve(%d) = %d, want floor(n^(2/3)) = %d", n, got, want)
		}
	}
}
