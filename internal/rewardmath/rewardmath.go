// Package rewardmath implements the reward-per-token accrual arithmetic
// shared by every farm. All functions are pure: given identical inputs they
// produce identical outputs, with no side effects.
package rewardmath

import "math/big"

// Scale is the fixed-point precision of reward-per-token accumulators.
var Scale = big.NewInt(1_000_000_000_000_000_000) // 1e18

// RewardPerToken advances a stored reward-per-token accumulator by the amount
// accrued over elapsed seconds at the given emission rate.
//
// When total is zero the stored value is returned unchanged: an empty pool
// accrues nothing, and the division below is never reached. Integer division
// truncates toward zero, so rounding never over-credits.
func RewardPerToken(stored *big.Int, elapsed int64, rate, total *big.Int) *big.Int {
	result := new(big.Int)
	if stored != nil {
		result.Set(stored)
	}

	if elapsed <= 0 || rate == nil || rate.Sign() == 0 || total == nil || total.Sign() == 0 {
		return result
	}

	// accrual = elapsed * rate * Scale / total
	accrual := new(big.Int).SetInt64(elapsed)
	accrual.Mul(accrual, rate)
	accrual.Mul(accrual, Scale)
	accrual.Quo(accrual, total)

	return result.Add(result, accrual)
}

// Earned returns the total reward owed to an account: the reward already
// accrued plus the delta since the account's last checkpoint.
//
// currentRPT must be >= paidRPT; the update protocol in the farms guarantees
// this because checkpoints are only ever set to the stored accumulator, which
// is non-decreasing. A zero staked amount reduces to prior.
func Earned(staked, currentRPT, paidRPT, prior *big.Int) *big.Int {
	result := new(big.Int)
	if prior != nil {
		result.Set(prior)
	}

	if staked == nil || staked.Sign() == 0 {
		return result
	}

	delta := new(big.Int).Set(currentRPT)
	delta.Sub(delta, paidRPT)
	if delta.Sign() <= 0 {
		return result
	}

	delta.Mul(delta, staked)
	delta.Quo(delta, Scale)

	return result.Add(result, delta)
}
