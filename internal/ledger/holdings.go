package ledger

import (
	"context"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// AddInvestment records a holding.
func (l *Ledger) AddInvestment(ctx context.Context, i model.Investment) (model.Investment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Investment{}, err
	}
	defer l.remember(ctx, user.ID)
	now := l.now()
	prepare(&i.ID, &i.UserID, &i.Timestamps, user.ID, now)
	if i.Currency == "" {
		i.Currency = currencyOf(user)
	}
	if i.StartDate.IsZero() {
		i.StartDate = now
	}
	if err := model.Validate(i); err != nil {
		return model.Investment{}, err
	}
	if err := l.state.Investments.Insert(i); err != nil {
		return model.Investment{}, err
	}
	return i, save(ctx, l.sync.Investments, i)
}

// UpdateInvestment applies patch, typically a new current value.
func (l *Ledger) UpdateInvestment(ctx context.Context, id string, patch model.InvestmentPatch) (model.Investment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Investment{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := preview(l.state.Investments.Collection, user.ID, id,
		func(i *model.Investment, now time.Time) { patch.Apply(i, now) },
		validateRecord[model.Investment]); err != nil {
		return model.Investment{}, err
	}
	updated, err := l.state.Investments.Update(id, patch)
	if err != nil {
		return model.Investment{}, err
	}
	return updated, save(ctx, l.sync.Investments, updated)
}

// DeleteInvestment removes a holding.
func (l *Ledger) DeleteInvestment(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	return removeOwned(ctx, l.state.Investments.Collection, l.sync.Investments, user.ID, id)
}

// AddPolicy records a life insurance policy. Beneficiary shares, when given,
// must add up to 100 percent.
func (l *Ledger) AddPolicy(ctx context.Context, p model.LifeInsurance) (model.LifeInsurance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.LifeInsurance{}, err
	}
	defer l.remember(ctx, user.ID)
	prepare(&p.ID, &p.UserID, &p.Timestamps, user.ID, l.now())
	if p.Currency == "" {
		p.Currency = currencyOf(user)
	}
	if err := model.ValidateInsurance(p); err != nil {
		return model.LifeInsurance{}, err
	}
	if err := l.state.Insurance.Insert(p); err != nil {
		return model.LifeInsurance{}, err
	}
	return p, save(ctx, l.sync.Insurance, p)
}

// UpdatePolicy applies patch to a policy.
func (l *Ledger) UpdatePolicy(ctx context.Context, id string, patch model.InsurancePatch) (model.LifeInsurance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.LifeInsurance{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := preview(l.state.Insurance.Collection, user.ID, id,
		func(p *model.LifeInsurance, now time.Time) { patch.Apply(p, now) },
		model.ValidateInsurance); err != nil {
		return model.LifeInsurance{}, err
	}
	updated, err := l.state.Insurance.Update(id, patch)
	if err != nil {
		return model.LifeInsurance{}, err
	}
	return updated, save(ctx, l.sync.Insurance, updated)
}

// PayPremium records that the current premium of a policy was paid and
// schedules the next one.
func (l *Ledger) PayPremium(ctx context.Context, id string) (model.LifeInsurance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.LifeInsurance{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := owned(l.state.Insurance.Collection, user.ID, id); err != nil {
		return model.LifeInsurance{}, err
	}
	paid, err := l.state.Insurance.PayPremium(id, l.now())
	if err != nil {
		return model.LifeInsurance{}, err
	}
	return paid, save(ctx, l.sync.Insurance, paid)
}

// DeletePolicy removes a policy.
func (l *Ledger) DeletePolicy(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	return removeOwned(ctx, l.state.Insurance.Collection, l.sync.Insurance, user.ID, id)
}
