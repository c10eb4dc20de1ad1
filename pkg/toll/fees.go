package toll

import (
	"strings"

	"github.com/openroads/tollgate/pkg/wallet"
)

// FeePolicy is the per-gate charging configuration. Rates are flat per
// gate, not distance- or vehicle-type-based.
type FeePolicy struct {
	BaseTollRate       wallet.Amount
	OverweightFineRate wallet.Amount
	WeightLimitKg      float64
}

// OverweightBasis selects which limit a measured weight is compared
// against. The two hardware entry points historically disagree on this
// (gate limit vs. declared vehicle capacity); the basis is explicit so the
// divergence is visible instead of buried in the adapters.
type OverweightBasis string

const (
	BasisGateLimit       OverweightBasis = "gate_limit"
	BasisVehicleCapacity OverweightBasis = "vehicle_capacity"
)

// FeeBreakdown is the outcome of fee computation for one passage.
type FeeBreakdown struct {
	Toll       wallet.Amount
	Fine       wallet.Amount
	Total      wallet.Amount
	Overweight bool
}

// ExemptionRule decides whether a vehicle/owner pair passes free of charge.
type ExemptionRule interface {
	Exempt(owner wallet.Account, vehicle Vehicle) bool
}

// NoExemption never exempts.
type NoExemption struct{}

// Exempt implements ExemptionRule.
func (NoExemption) Exempt(wallet.Account, Vehicle) bool {
	return false
}

// GovernmentalPrefix exempts owners whose license number carries the
// configured prefix.
type GovernmentalPrefix struct {
	Prefix string
}

// Exempt implements ExemptionRule.
func (rule GovernmentalPrefix) Exempt(owner wallet.Account, _ Vehicle) bool {
	if rule.Prefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(owner.LicenseNumber)), strings.ToUpper(rule.Prefix))
}

// ComputeFees maps a gate policy, a measured weight, and the applicable
// limit to the charged amounts. It is pure: same inputs, same outputs.
//
// A weight exactly at the limit is not overweight; the comparison is
// strictly greater-than. Exempt passages are forced to zero amounts but the
// overweight flag is preserved for the audit trail.
func ComputeFees(policy FeePolicy, basis OverweightBasis, measuredKg float64, vehicleCapacityKg float64, exempt bool) FeeBreakdown {
	limit := policy.WeightLimitKg
	if basis == BasisVehicleCapacity && vehicleCapacityKg > 0 {
		limit = vehicleCapacityKg
	}
	overweight := limit > 0 && measuredKg > limit

	if exempt {
		return FeeBreakdown{
			Toll:       wallet.ZeroAmount(),
			Fine:       wallet.ZeroAmount(),
			Total:      wallet.ZeroAmount(),
			Overweight: overweight,
		}
	}

	fine := wallet.ZeroAmount()
	if overweight {
		fine = policy.OverweightFineRate
	}
	return FeeBreakdown{
		Toll:       policy.BaseTollRate,
		Fine:       fine,
		Total:      policy.BaseTollRate.Add(fine),
		Overweight: overweight,
	}
}
