package model

// Category classifies a transaction, budget or bill.
type Category string

// Income categories.
const (
	CategorySalary      Category = "salary"
	CategoryFreelance   Category = "freelance"
	CategoryBusiness    Category = "business"
	CategoryInvestment  Category = "investment"
	CategoryRental      Category = "rental"
	CategoryOtherIncome Category = "other_income"
)

// Expense categories.
const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryBills         Category = "bills"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryEducation     Category = "education"
	CategoryGroceries     Category = "groceries"
	CategoryEMI           Category = "emi"
	CategoryInsurance     Category = "insurance"
	CategoryOtherExpense  Category = "other_expense"
)

// IncomeCategories lists the categories valid for income transactions.
var IncomeCategories = []Category{
	CategorySalary,
	CategoryFreelance,
	CategoryBusiness,
	CategoryInvestment,
	CategoryRental,
	CategoryOtherIncome,
}

// ExpenseCategories lists the categories valid for expense transactions.
var ExpenseCategories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategoryEntertainment,
	CategoryHealth,
	CategoryEducation,
	CategoryGroceries,
	CategoryEMI,
	CategoryInsurance,
	CategoryOtherExpense,
}

var categoryNames = map[Category]string{
	CategorySalary:        "Salary",
	CategoryFreelance:     "Freelance",
	CategoryBusiness:      "Business",
	CategoryInvestment:    "Investment",
	CategoryRental:        "Rental",
	CategoryOtherIncome:   "Other Income",
	CategoryFood:          "Food & Dining",
	CategoryTransport:     "Transport",
	CategoryShopping:      "Shopping",
	CategoryBills:         "Bills & Utilities",
	CategoryEntertainment: "Entertainment",
	CategoryHealth:        "Health & Fitness",
	CategoryEducation:     "Education",
	CategoryGroceries:     "Groceries",
	CategoryEMI:           "EMI",
	CategoryInsurance:     "Insurance",
	CategoryOtherExpense:  "Other Expense",
}

// DisplayName returns the human readable name of the category.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// IsIncome reports whether the category belongs to the income partition.
func (c Category) IsIncome() bool {
	for _, ic := range IncomeCategories {
		if ic == c {
			return true
		}
	}
	return false
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	_, ok := categoryNames[c]
	return ok
}
