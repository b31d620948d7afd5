package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// GoalStore holds savings goals.
type GoalStore struct {
	*Collection[model.Goal]
}

// NewGoalStore creates an empty goal store.
func NewGoalStore(clock Clock) *GoalStore {
	return &GoalStore{Collection: NewCollection[model.Goal](clock)}
}

// Insert adds a goal with IsCompleted derived from its amounts.
func (s *GoalStore) Insert(g model.Goal) error {
	g.IsCompleted = g.Reached()
	return s.Collection.Insert(g)
}

// Update applies patch to the goal. Completion is recomputed.
func (s *GoalStore) Update(id string, patch model.GoalPatch) (model.Goal, error) {
	return s.Collection.Update(id, func(g *model.Goal, now time.Time) {
		patch.Apply(g, now)
	})
}

// AddToGoal adds amount to the goal's savings and recomputes completion in
// the same step. Non-positive amounts fail with ErrInvalidAmount and leave
// the goal unchanged.
func (s *GoalStore) AddToGoal(id string, amount decimal.Decimal) (model.Goal, error) {
	if !amount.IsPositive() {
		return model.Goal{}, fmt.Errorf("%w: got %s", common.ErrInvalidAmount, amount)
	}
	return s.Collection.Update(id, func(g *model.Goal, now time.Time) {
		g.Contribute(amount, now)
	})
}

// Completed returns goals that reached their target.
func (s *GoalStore) Completed() []model.Goal {
	return s.Filter(func(g model.Goal) bool { return g.IsCompleted })
}

// Active returns goals still in progress.
func (s *GoalStore) Active() []model.Goal {
	return s.Filter(func(g model.Goal) bool { return !g.IsCompleted })
}

// TotalSaved sums current amounts.
func (s *GoalStore) TotalSaved() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(gs []model.Goal) {
		total = sumOf(gs, nil, func(g model.Goal) decimal.Decimal { return g.CurrentAmount })
	})
	return total
}

// TotalTarget sums target amounts.
func (s *GoalStore) TotalTarget() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(gs []model.Goal) {
		total = sumOf(gs, nil, func(g model.Goal) decimal.Decimal { return g.TargetAmount })
	})
	return total
}
