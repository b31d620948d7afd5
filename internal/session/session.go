// Package session binds the process to at most one signed-in user and owns
// the profile, onboarding state and logout wipe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/store"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

// Session is the active user binding.
type Session struct {
	users      *syncer.Repo[model.User]
	kv         service.KeyValueStore
	state      *store.State
	now        func() time.Time
	user       *model.User
	background sync.WaitGroup
	mu         sync.RWMutex
	onboarded  bool
}

// New creates a signed-out session. state is emptied on logout and may be nil.
func New(users *syncer.Repo[model.User], kv service.KeyValueStore, state *store.State) *Session {
	return &Session{users: users, kv: kv, state: state, now: store.SystemClock}
}

// SignIn makes identity the active user. The profile comes from the remote
// users collection; when it is missing or cannot be fetched, the locally
// cached profile or one built from identity is used instead and saved in
// the background.
func (s *Session) SignIn(ctx context.Context, identity service.Identity) (model.User, error) {
	if identity.UserID == "" {
		return model.User{}, fmt.Errorf("%w: user id", common.ErrMissingField)
	}

	user, err := s.users.Get(ctx, identity.UserID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("Profile fetch failed, using local profile",
				"user", identity.UserID,
				"error", err)
		}
		user = s.fallbackProfile(ctx, identity)
		s.saveInBackground(ctx, user)
	}

	var onboarded bool
	if _, err := s.kv.Get(ctx, localstore.KeyOnboardingCompleted, &onboarded); err != nil {
		return model.User{}, fmt.Errorf("failed to read onboarding state: %w", err)
	}
	if err := s.kv.Set(ctx, localstore.KeyUser, user); err != nil {
		return model.User{}, fmt.Errorf("failed to cache profile: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.onboarded = onboarded
	s.mu.Unlock()

	slog.Info("Signed in", "user", user.ID, "onboarded", onboarded)
	return user, nil
}

func (s *Session) fallbackProfile(ctx context.Context, identity service.Identity) model.User {
	var cached model.User
	ok, err := s.kv.Get(ctx, localstore.KeyUser, &cached)
	if err != nil {
		slog.Debug("Ignoring unreadable cached profile", "error", err)
	}
	if ok && err == nil && cached.ID == identity.UserID {
		return cached
	}

	user := model.User{
		ID:              identity.UserID,
		Email:           identity.Email,
		DisplayName:     identity.DisplayName,
		PhotoURL:        identity.PhotoURL,
		ThemePreference: model.ThemeSystem,
	}
	user.Touch(s.now())
	return user
}

func (s *Session) saveInBackground(ctx context.Context, user model.User) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		queued, err := s.users.SaveOrQueue(ctx, user)
		switch {
		case err != nil:
			slog.Warn("Failed to save profile", "user", user.ID, "error", err)
		case queued:
			slog.Info("Profile will be saved when online", "user", user.ID)
		}
	}()
}

// Wait blocks until background profile saves have finished.
func (s *Session) Wait() {
	s.background.Wait()
}

// Current returns the active user.
func (s *Session) Current() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID returns the active user's id, or "" when signed out.
func (s *Session) UserID() string {
	u, _ := s.Current()
	return u.ID
}

// Require returns the active user or common.ErrNoSession.
func (s *Session) Require() (model.User, error) {
	u, ok := s.Current()
	if !ok {
		return model.User{}, common.ErrNoSession
	}
	return u, nil
}

// IsOnboardingCompleted reports the onboarding flag of the active session.
func (s *Session) IsOnboardingCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.onboarded
}

// UpdateProfile applies patch to the active profile and saves it. The local
// profile changes even when the remote save fails; that error is returned.
func (s *Session) UpdateProfile(ctx context.Context, patch model.UserPatch) (model.User, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return model.User{}, common.ErrNoSession
	}
	updated := *s.user
	patch.Apply(&updated)
	updated.Touch(s.now())
	if err := model.Validate(updated); err != nil {
		s.mu.Unlock()
		return model.User{}, err
	}
	s.user = &updated
	s.mu.Unlock()

	if err := s.kv.Set(ctx, localstore.KeyUser, updated); err != nil {
		return updated, fmt.Errorf("failed to cache profile: %w", err)
	}
	if updated.ThemePreference != "" {
		if err := s.kv.Set(ctx, localstore.KeyTheme, updated.ThemePreference); err != nil {
			return updated, fmt.Errorf("failed to save theme: %w", err)
		}
	}
	if _, err := s.users.SaveOrQueue(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// CompleteOnboarding stores the onboarding answers on the profile and marks
// onboarding as done on this device.
func (s *Session) CompleteOnboarding(ctx context.Context, answers model.UserPatch) (model.User, error) {
	user, err := s.UpdateProfile(ctx, answers)
	if err != nil {
		return user, err
	}
	if err := s.kv.Set(ctx, localstore.KeyOnboardingCompleted, true); err != nil {
		return user, fmt.Errorf("failed to save onboarding state: %w", err)
	}

	s.mu.Lock()
	s.onboarded = true
	s.mu.Unlock()
	return user, nil
}

// Logout ends the session and wipes everything stored on the device for it:
// the stores, all plain keys and the whole secret namespace.
func (s *Session) Logout(ctx context.Context) error {
	s.background.Wait()

	s.mu.Lock()
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.user = nil
	s.onboarded = false
	s.mu.Unlock()

	if s.state != nil {
		s.state.Reset()
	}
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear local storage: %w", err)
	}
	if err := s.kv.ClearSecret(ctx); err != nil {
		return fmt.Errorf("failed to clear secret storage: %w", err)
	}

	slog.Info("Logged out", "user", userID)
	return nil
}

// DeleteAccount removes the remote profile and logs out.
func (s *Session) DeleteAccount(ctx context.Context) error {
	user, err := s.Require()
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return s.Logout(ctx)
}
