package paylink

import (
	"math/big"

	am "github.com/mbd888/splitpay/internal/amount"
)

var oneHundred = big.NewInt(100)

// ComputeTotalAmount returns the quoted total for a payment list: the sum of
// all payout amounts plus the fixed quoted commission, floor(sum * 1 / 100).
//
// This is the funding threshold shown to payers. It deliberately uses
// QuotedCommissionRatePercent rather than the live rate; see Complete.
func ComputeTotalAmount(payments []IndividualPayment) *big.Int {
	total := big.NewInt(0)
	for _, p := range payments {
		amt, ok := am.Parse(p.Amount)
		if !ok {
			continue
		}
		total.Add(total, amt)
	}

	commission := new(big.Int).Mul(total, big.NewInt(QuotedCommissionRatePercent))
	commission.Quo(commission, oneHundred)
	total.Add(total, commission)

	return total
}

// ComputeCommission returns floor(usedAmount * rate / 100).
func ComputeCommission(usedAmount *big.Int, rate uint64) *big.Int {
	commission := new(big.Int).Mul(usedAmount, new(big.Int).SetUint64(rate))
	return commission.Quo(commission, oneHundred)
}
