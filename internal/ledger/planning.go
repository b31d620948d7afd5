package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// AddBudget creates a budget. StartDate defaults to now, EndDate to the end
// of the period and AlertThreshold to model.DefaultAlertThreshold.
func (l *Ledger) AddBudget(ctx context.Context, b model.Budget) (model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Budget{}, err
	}
	defer l.remember(ctx, user.ID)
	now := l.now()
	prepare(&b.ID, &b.UserID, &b.Timestamps, user.ID, now)
	if b.StartDate.IsZero() {
		b.StartDate = now
	}
	if b.EndDate.IsZero() {
		b.EndDate = b.Period.End(b.StartDate)
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = model.DefaultAlertThreshold
	}
	if err := model.Validate(b); err != nil {
		return model.Budget{}, err
	}
	if err := l.state.Budgets.Insert(b); err != nil {
		return model.Budget{}, err
	}
	return b, save(ctx, l.sync.Budgets, b)
}

// UpdateBudget applies patch to a budget.
func (l *Ledger) UpdateBudget(ctx context.Context, id string, patch model.BudgetPatch) (model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Budget{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := preview(l.state.Budgets.Collection, user.ID, id,
		func(b *model.Budget, now time.Time) { patch.Apply(b, now) },
		validateRecord[model.Budget]); err != nil {
		return model.Budget{}, err
	}
	updated, err := l.state.Budgets.Update(id, patch)
	if err != nil {
		return model.Budget{}, err
	}
	return updated, save(ctx, l.sync.Budgets, updated)
}

// DeleteBudget removes a budget.
func (l *Ledger) DeleteBudget(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	return removeOwned(ctx, l.state.Budgets.Collection, l.sync.Budgets, user.ID, id)
}

// AddGoal creates a savings goal.
func (l *Ledger) AddGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Goal{}, err
	}
	defer l.remember(ctx, user.ID)
	prepare(&g.ID, &g.UserID, &g.Timestamps, user.ID, l.now())
	if g.Currency == "" {
		g.Currency = currencyOf(user)
	}
	if g.Priority == "" {
		g.Priority = model.PriorityMedium
	}
	g.IsCompleted = g.Reached()
	if err := model.Validate(g); err != nil {
		return model.Goal{}, err
	}
	if err := l.state.Goals.Insert(g); err != nil {
		return model.Goal{}, err
	}
	return g, save(ctx, l.sync.Goals, g)
}

// UpdateGoal applies patch to a goal. Completion follows the amounts.
func (l *Ledger) UpdateGoal(ctx context.Context, id string, patch model.GoalPatch) (model.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Goal{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := preview(l.state.Goals.Collection, user.ID, id,
		func(g *model.Goal, now time.Time) { patch.Apply(g, now) },
		validateRecord[model.Goal]); err != nil {
		return model.Goal{}, err
	}
	updated, err := l.state.Goals.Update(id, patch)
	if err != nil {
		return model.Goal{}, err
	}
	return updated, save(ctx, l.sync.Goals, updated)
}

// AddToGoal contributes amount to a goal.
func (l *Ledger) AddToGoal(ctx context.Context, id string, amount decimal.Decimal) (model.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Goal{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := owned(l.state.Goals.Collection, user.ID, id); err != nil {
		return model.Goal{}, err
	}
	updated, err := l.state.Goals.AddToGoal(id, amount)
	if err != nil {
		return model.Goal{}, err
	}
	return updated, save(ctx, l.sync.Goals, updated)
}

// DeleteGoal removes a goal.
func (l *Ledger) DeleteGoal(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	return removeOwned(ctx, l.state.Goals.Collection, l.sync.Goals, user.ID, id)
}

// AddBill creates a bill. Frequency defaults to one-time.
func (l *Ledger) AddBill(ctx context.Context, b model.Bill) (model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Bill{}, err
	}
	defer l.remember(ctx, user.ID)
	prepare(&b.ID, &b.UserID, &b.Timestamps, user.ID, l.now())
	if b.Frequency == "" {
		b.Frequency = model.FrequencyOneTime
	}
	if err := model.Validate(b); err != nil {
		return model.Bill{}, err
	}
	if err := l.state.Bills.Insert(b); err != nil {
		return model.Bill{}, err
	}
	return b, save(ctx, l.sync.Bills, b)
}

// UpdateBill applies patch to a bill.
func (l *Ledger) UpdateBill(ctx context.Context, id string, patch model.BillPatch) (model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Bill{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := preview(l.state.Bills.Collection, user.ID, id,
		func(b *model.Bill, now time.Time) { patch.Apply(b, now) },
		validateRecord[model.Bill]); err != nil {
		return model.Bill{}, err
	}
	updated, err := l.state.Bills.Update(id, patch)
	if err != nil {
		return model.Bill{}, err
	}
	return updated, save(ctx, l.sync.Bills, updated)
}

// MarkBillPaid marks a bill as paid now.
func (l *Ledger) MarkBillPaid(ctx context.Context, id string) (model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Bill{}, err
	}
	defer l.remember(ctx, user.ID)
	if _, err := owned(l.state.Bills.Collection, user.ID, id); err != nil {
		return model.Bill{}, err
	}
	paid, err := l.state.Bills.MarkAsPaid(id, l.now())
	if err != nil {
		return model.Bill{}, err
	}
	return paid, save(ctx, l.sync.Bills, paid)
}

// DeleteBill removes a bill.
func (l *Ledger) DeleteBill(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	return removeOwned(ctx, l.state.Bills.Collection, l.sync.Bills, user.ID, id)
}
