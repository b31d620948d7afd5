package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// InsuranceStore holds life insurance policies. Totals only count active
// policies.
type InsuranceStore struct {
	*Collection[model.LifeInsurance]
}

// NewInsuranceStore creates an empty policy store.
func NewInsuranceStore(clock Clock) *InsuranceStore {
	return &InsuranceStore{Collection: NewCollection[model.LifeInsurance](clock)}
}

// Update applies patch to the policy with the given id.
func (s *InsuranceStore) Update(id string, patch model.InsurancePatch) (model.LifeInsurance, error) {
	return s.Collection.Update(id, func(p *model.LifeInsurance, now time.Time) {
		patch.Apply(p, now)
	})
}

// PayPremium moves the next premium date of an active policy one period
// forward, counting from today when none was scheduled. A premium that would
// fall after the policy ends clears the date.
func (s *InsuranceStore) PayPremium(id string, today time.Time) (model.LifeInsurance, error) {
	return s.Mutate(id, func(p *model.LifeInsurance, now time.Time) error {
		if !p.IsActive {
			return fmt.Errorf("%w: policy %s is not active", common.ErrValidation, p.PolicyName)
		}
		from := p.NextPremiumDate
		if from.IsZero() {
			from = today
		}
		next := p.PremiumFrequency.Next(from, 1)
		if !p.EndDate.IsZero() && next.After(p.EndDate) {
			next = time.Time{}
		}
		p.NextPremiumDate = next
		p.Touch(now)
		return nil
	})
}

// Active returns the active policies.
func (s *InsuranceStore) Active() []model.LifeInsurance {
	return s.Filter(isActivePolicy)
}

// DuePremiums returns active policies with a premium due within the window.
func (s *InsuranceStore) DuePremiums(now time.Time, within time.Duration) []model.LifeInsurance {
	return s.Filter(func(p model.LifeInsurance) bool { return p.PremiumDue(now, within) })
}

// TotalCoverage sums coverage of active policies.
func (s *InsuranceStore) TotalCoverage() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(ps []model.LifeInsurance) {
		total = sumOf(ps, isActivePolicy, func(p model.LifeInsurance) decimal.Decimal { return p.CoverageAmount })
	})
	return total
}

// TotalPremium sums premiums of active policies.
func (s *InsuranceStore) TotalPremium() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(ps []model.LifeInsurance) {
		total = sumOf(ps, isActivePolicy, func(p model.LifeInsurance) decimal.Decimal { return p.PremiumAmount })
	})
	return total
}

func isActivePolicy(p model.LifeInsurance) bool {
	return p.IsActive
}
