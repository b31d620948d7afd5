package localstore

// Plain namespace keys.
const (
	KeyUser                 = "user"
	KeyOnboardingCompleted  = "onboarding_completed"
	KeyTheme                = "theme"
	KeyCurrency             = "currency"
	KeyPin                  = "pin"
	KeyBiometricEnabled     = "biometric_enabled"
	KeyLastSync             = "last_sync"
	KeyOfflineQueue         = "offline_queue"
	KeyStreakData           = "streak_data"
	KeyNotificationsEnabled = "notifications_enabled"

	// KeyCachePrefix prefixes the last known copy of each synced
	// collection, e.g. "cache_wallets".
	KeyCachePrefix = "cache_"
)

// Secret namespace keys.
const (
	SecretWalletData   = "secret_wallet_data"
	SecretTransactions = "secret_transactions"
	SecretUserPin      = "user_pin"
)
