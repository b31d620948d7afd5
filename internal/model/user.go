package model

// UserType describes who the app is tracking money for.
type UserType string

// User types.
const (
	UserPersonal UserType = "personal"
	UserFamily   UserType = "family"
	UserBusiness UserType = "business"
)

// IncomeSource is the user's main income source, collected at onboarding.
type IncomeSource string

// Income sources.
const (
	IncomeSalary      IncomeSource = "salary"
	IncomePocketMoney IncomeSource = "pocket_money"
	IncomeBusiness    IncomeSource = "business"
	IncomeFreelance   IncomeSource = "freelance"
	IncomeCommission  IncomeSource = "commission"
	IncomeRental      IncomeSource = "rental"
)

// Focus is what the user wants to achieve with the app.
type Focus string

// User focus options.
const (
	FocusSave           Focus = "save"
	FocusReduceSpending Focus = "reduce_spending"
	FocusTrackBills     Focus = "track_bills"
	FocusSharedFinances Focus = "shared_finances"
)

// ReminderPreference controls how often reminders are sent.
type ReminderPreference string

// Reminder preferences.
const (
	ReminderDaily     ReminderPreference = "daily"
	ReminderWeekly    ReminderPreference = "weekly"
	ReminderImportant ReminderPreference = "important"
	ReminderNone      ReminderPreference = "none"
)

// ThemePreference is the requested color scheme.
type ThemePreference string

// Theme preferences.
const (
	ThemeLight  ThemePreference = "light"
	ThemeDark   ThemePreference = "dark"
	ThemeSystem ThemePreference = "system"
)

// User is the profile bound to the active session.
type User struct {
	Timestamps
	ID                 string             `json:"id" validate:"required"`
	Email              string             `json:"email" validate:"omitempty,email"`
	DisplayName        string             `json:"displayName,omitempty"`
	PhotoURL           string             `json:"photoURL,omitempty"`
	UserType           UserType           `json:"userType,omitempty"`
	IncomeSource       IncomeSource       `json:"incomeSource,omitempty"`
	Focus              Focus              `json:"focus,omitempty"`
	ReminderPreference ReminderPreference `json:"reminderPreference,omitempty"`
	ThemePreference    ThemePreference    `json:"themePreference,omitempty"`
	Currency           string             `json:"currency,omitempty"`
	HasSecretWallet    bool               `json:"hasSecretWallet"`
	SecurityEnabled    bool               `json:"securityEnabled"`
	BiometricEnabled   bool               `json:"biometricEnabled"`
	PinEnabled         bool               `json:"pinEnabled"`
}

// RecordID implements Record.
func (u User) RecordID() string { return u.ID }

// OwnerID implements Record. A profile is owned by its own user.
func (u User) OwnerID() string { return u.ID }

// UserPatch lists the profile fields that onboarding and settings may change.
type UserPatch struct {
	DisplayName        *string
	PhotoURL           *string
	UserType           *UserType
	IncomeSource       *IncomeSource
	Focus              *Focus
	ReminderPreference *ReminderPreference
	ThemePreference    *ThemePreference
	Currency           *string
	HasSecretWallet    *bool
	SecurityEnabled    *bool
	BiometricEnabled   *bool
	PinEnabled         *bool
}

// Apply copies the set fields onto u. The caller refreshes UpdatedAt.
func (p UserPatch) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.PhotoURL != nil {
		u.PhotoURL = *p.PhotoURL
	}
	if p.UserType != nil {
		u.UserType = *p.UserType
	}
	if p.IncomeSource != nil {
		u.IncomeSource = *p.IncomeSource
	}
	if p.Focus != nil {
		u.Focus = *p.Focus
	}
	if p.ReminderPreference != nil {
		u.ReminderPreference = *p.ReminderPreference
	}
	if p.ThemePreference != nil {
		u.ThemePreference = *p.ThemePreference
	}
	if p.Currency != nil {
		u.Currency = *p.Currency
	}
	if p.HasSecretWallet != nil {
		u.HasSecretWallet = *p.HasSecretWallet
	}
	if p.SecurityEnabled != nil {
		u.SecurityEnabled = *p.SecurityEnabled
	}
	if p.BiometricEnabled != nil {
		u.BiometricEnabled = *p.BiometricEnabled
	}
	if p.PinEnabled != nil {
		u.PinEnabled = *p.PinEnabled
	}
}
