// Package allocation splits owner expenses across apartments.
package allocation

import (
	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"

	"github.com/shopspring/decimal"
)

// Basis is the input of one apartment: its surface or milliemes,
// depending on the mode. Value is ignored in forfait mode.
type Basis struct {
	ApartmentID uint
	Value       decimal.NullDecimal
}

type Share struct {
	ApartmentID uint
	Amount      decimal.Decimal
	Basis       decimal.NullDecimal
	Coefficient decimal.Decimal
}

type Plan struct {
	Shares  []Share
	Skipped []uint // apartments without a usable basis
}

func (p Plan) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range p.Shares {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Compute divides total between the apartments. Each share is rounded to
// the cent and the rounding residue goes to the largest share, the first
// one on ties, so the shares always add up to total.
func Compute(total decimal.Decimal, mode models.AllocationMode, bases []Basis) (Plan, error) {
	if len(bases) == 0 {
		return Plan{}, apperr.Validation(apperr.CodeEmptyTarget, "aucun appartement à répartir")
	}
	var plan Plan
	switch mode {
	case models.ModeFlat:
		n := decimal.NewFromInt(int64(len(bases)))
		coef := decimal.NewFromInt(1).Div(n)
		for _, b := range bases {
			plan.Shares = append(plan.Shares, Share{
				ApartmentID: b.ApartmentID,
				Amount:      total.Div(n),
				Coefficient: coef,
			})
		}
	case models.ModeSurface, models.ModeTantieme:
		sum := decimal.Zero
		var kept []Basis
		for _, b := range bases {
			if !b.Value.Valid || !b.Value.Decimal.IsPositive() {
				plan.Skipped = append(plan.Skipped, b.ApartmentID)
				continue
			}
			kept = append(kept, b)
			sum = sum.Add(b.Value.Decimal)
		}
		if len(kept) == 0 {
			return Plan{}, apperr.Validation(apperr.CodeMissingBasis, "aucun appartement n'a de %s renseigné", basisLabel(mode))
		}
		for _, b := range kept {
			ratio := b.Value.Decimal.Div(sum)
			plan.Shares = append(plan.Shares, Share{
				ApartmentID: b.ApartmentID,
				Amount:      ratio.Mul(total),
				Basis:       b.Value,
				Coefficient: ratio,
			})
		}
	default:
		return Plan{}, apperr.Validation(apperr.CodeInvalidInput, "mode de répartition %q non calculable", mode)
	}

	settle(plan.Shares, total)
	return plan, nil
}

func settle(shares []Share, total decimal.Decimal) {
	largest := 0
	sum := decimal.Zero
	for i := range shares {
		if shares[i].Amount.GreaterThan(shares[largest].Amount) {
			largest = i
		}
	}
	for i := range shares {
		shares[i].Amount = shares[i].Amount.Round(2)
		shares[i].Coefficient = shares[i].Coefficient.Round(6)
		sum = sum.Add(shares[i].Amount)
	}
	if residue := total.Round(2).Sub(sum); !residue.IsZero() {
		shares[largest].Amount = shares[largest].Amount.Add(residue)
	}
}

func basisLabel(mode models.AllocationMode) string {
	if mode == models.ModeSurface {
		return "surface"
	}
	return "millièmes"
}
