package rewardmath_test

import (
	"math/big"
	"testing"

	"FarmLedger/internal/rewardmath"
)

func big0() *big.Int  { return new(big.Int) }
func bigN(n int64) *big.Int { return big.NewInt(n) }

func TestRewardPerToken_EmptyPoolUnchanged(t *testing.T) {
	stored := bigN(12345)
	got := rewardmath.RewardPerToken(stored, 100, bigN(100), big0())
	if got.Cmp(stored) != 0 {
		t.Errorf("empty pool: got %s, want %s", got, stored)
	}
}

func TestRewardPerToken_ZeroElapsedUnchanged(t *testing.T) {
	stored := bigN(999)
	got := rewardmath.RewardPerToken(stored, 0, bigN(100), bigN(1000))
	if got.Cmp(stored) != 0 {
		t.Errorf("zero elapsed: got %s, want %s", got, stored)
	}
}

// Worked scenario: rate=100, one staker deposits 1000 at t=0; at t=10 the
// accumulator is (10*100*1e18)/1000 = 1e18 and earned = 1000.
func TestRewardPerToken_SingleStakerScenario(t *testing.T) {
	rpt := rewardmath.RewardPerToken(big0(), 10, bigN(100), bigN(1000))
	if rpt.Cmp(rewardmath.Scale) != 0 {
		t.Fatalf("rewardPerToken: got %s, want %s", rpt, rewardmath.Scale)
	}

	earned := rewardmath.Earned(bigN(1000), rpt, big0(), big0())
	if earned.Cmp(bigN(1000)) != 0 {
		t.Errorf("earned: got %s, want 1000", earned)
	}
}

func TestRewardPerToken_DoesNotMutateStored(t *testing.T) {
	stored := bigN(500)
	rewardmath.RewardPerToken(stored, 10, bigN(7), bigN(3))
	if stored.Cmp(bigN(500)) != 0 {
		t.Errorf("stored mutated: %s", stored)
	}
}

func TestRewardPerToken_TruncatesTowardZero(t *testing.T) {
	// 1 second * rate 1 * 1e18 / 3 = 333...333 (truncated, never rounded up)
	got := rewardmath.RewardPerToken(big0(), 1, bigN(1), bigN(3))
	want, _ := new(big.Int).SetString("333333333333333333", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRewardPerToken_Monotonic(t *testing.T) {
	rpt := big0()
	for i := 0; i < 50; i++ {
		next := rewardmath.RewardPerToken(rpt, int64(i%7), bigN(100), bigN(int64(1+i*13)))
		if next.Cmp(rpt) < 0 {
			t.Fatalf("accumulator decreased at step %d: %s -> %s", i, rpt, next)
		}
		rpt = next
	}
}

func TestEarned_ZeroStakeReducesToPrior(t *testing.T) {
	prior := bigN(42)
	got := rewardmath.Earned(big0(), bigN(1e9), big0(), prior)
	if got.Cmp(prior) != 0 {
		t.Errorf("got %s, want %s", got, prior)
	}
}

func TestEarned_NoDeltaReducesToPrior(t *testing.T) {
	rpt := new(big.Int).Mul(bigN(3), rewardmath.Scale)
	got := rewardmath.Earned(bigN(500), rpt, rpt, bigN(7))
	if got.Cmp(bigN(7)) != 0 {
		t.Errorf("got %s, want 7", got)
	}
}

func TestEarned_AccumulatesDelta(t *testing.T) {
	paid := new(big.Int).Set(rewardmath.Scale)                 // 1.0
	current := new(big.Int).Mul(bigN(3), rewardmath.Scale)     // 3.0
	got := rewardmath.Earned(bigN(250), current, paid, bigN(10))

	// 10 + 250 * 2.0 = 510
	if got.Cmp(bigN(510)) != 0 {
		t.Errorf("got %s, want 510", got)
	}
}

// Determinism: identical inputs must produce identical outputs across calls.
func TestDeterminism(t *testing.T) {
	for i := 0; i < 10; i++ {
		a := rewardmath.RewardPerToken(bigN(777), 13, bigN(901), bigN(12345))
		b := rewardmath.RewardPerToken(bigN(777), 13, bigN(901), bigN(12345))
		if a.Cmp(b) != 0 {
			t.Fatalf("non-deterministic: %s vs %s", a, b)
		}

		c := rewardmath.Earned(bigN(12345), a, bigN(777), bigN(3))
		d := rewardmath.Earned(bigN(12345), b, bigN(777), bigN(3))
		if c.Cmp(d) != 0 {
			t.Fatalf("non-deterministic earned: %s vs %s", c, d)
		}
	}
}
