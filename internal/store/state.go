package store

// State bundles one store per entity type. It is constructed explicitly and
// passed to whatever needs it; there is no package-level instance.
type State struct {
	Wallets      *WalletStore
	Transactions *TransactionStore
	Budgets      *BudgetStore
	Goals        *GoalStore
	Bills        *BillStore
	Investments  *InvestmentStore
	Insurance    *InsuranceStore
}

// NewState creates empty stores sharing clock. A nil clock means SystemClock.
func NewState(clock Clock) *State {
	return &State{
		Wallets:      NewWalletStore(clock),
		Transactions: NewTransactionStore(clock),
		Budgets:      NewBudgetStore(clock),
		Goals:        NewGoalStore(clock),
		Bills:        NewBillStore(clock),
		Investments:  NewInvestmentStore(clock),
		Insurance:    NewInsuranceStore(clock),
	}
}

// Reset empties every store, for example after logout.
func (s *State) Reset() {
	s.Wallets.ReplaceAll(nil)
	_ = s.Wallets.Select("")
	s.Transactions.ReplaceAll(nil)
	s.Budgets.ReplaceAll(nil)
	s.Goals.ReplaceAll(nil)
	s.Bills.ReplaceAll(nil)
	s.Investments.ReplaceAll(nil)
	s.Insurance.ReplaceAll(nil)
}
