package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"alibi/internal/domain"
)

// UserStore is a JSON-file-backed user directory, guarded by a mutex since
// every write rewrites the whole file. It is sized for tens of operator
// accounts, not a multi-tenant user base.
type UserStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]domain.User
}

// OpenUserStore loads users from path, creating an empty store file if one
// does not exist yet.
func OpenUserStore(path string) (*UserStore, error) {
	store := &UserStore{path: path, users: map[string]domain.User{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := store.persistLocked(); werr != nil {
				return nil, werr
			}
			return store, nil
		}
		return nil, fmt.Errorf("read user store: %w", err)
	}
	if len(data) == 0 {
		return store, nil
	}

	var list []domain.User
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode user store: %w", err)
	}
	for _, u := range list {
		store.users[u.Username] = u
	}
	return store, nil
}

// Authenticate verifies username/password and returns the domain user on
// success. Disabled accounts and unknown usernames both fail with
// ErrAuthFailed so callers cannot distinguish the two by error alone.
func (s *UserStore) Authenticate(username, password string) (domain.User, error) {
	s.mu.RLock()
	stored, ok := s.users[username]
	s.mu.RUnlock()
	if !ok || !stored.Enabled {
		return domain.User{}, domain.ErrAuthFailed
	}
	if err := VerifyPassword(password, stored.PasswordHash); err != nil {
		return domain.User{}, domain.ErrAuthFailed
	}
	return stripHash(stored), nil
}

// Get returns the user record for username.
func (s *UserStore) Get(username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.users[username]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	return stripHash(stored), nil
}

// Create adds a new user with the given plaintext password, bcrypt-hashing
// it before persisting. Fails with ErrConflict if the username exists.
func (s *UserStore) Create(username, password string, role domain.Role) (domain.User, error) {
	if username == "" {
		return domain.User{}, fmt.Errorf("%w: username cannot be empty", domain.ErrBadInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return domain.User{}, fmt.Errorf("%w: user %q already exists", domain.ErrConflict, username)
	}
	record := domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Enabled:      true,
		CreatedTS:    time.Now().UTC(),
	}
	s.users[username] = record
	if err := s.persistLocked(); err != nil {
		return domain.User{}, err
	}
	return stripHash(record), nil
}

// SetDisabled enables or disables a user account without deleting it.
func (s *UserStore) SetDisabled(username string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	stored.Enabled = !disabled
	s.users[username] = stored
	return s.persistLocked()
}

// ResetPassword overwrites a user's password hash.
func (s *UserStore) ResetPassword(username, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	stored.PasswordHash = hash
	s.users[username] = stored
	return s.persistLocked()
}

// List returns every user account, sorted by username, for the admin
// console's user management view.
func (s *UserStore) List() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, stripHash(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Count returns the number of user accounts, used to decide whether
// bootstrap defaults are needed.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *UserStore) persistLocked() error {
	list := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create user store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write user store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit user store: %w", err)
	}
	return nil
}

// stripHash returns a copy of u with PasswordHash cleared, so callers that
// return a User to HTTP handlers never leak the hash.
func stripHash(u domain.User) domain.User {
	u.PasswordHash = ""
	return u
}

// BootstrapDefaultUsers creates one account per role named in roles when the
// store is empty, writing each generated password to credentialsPath
// (mode 0600) so an operator can retrieve them exactly once. It is a no-op
// if the store already has any users.
func BootstrapDefaultUsers(store *UserStore, roles []domain.Role, credentialsPath string) error {
	if store.Count() > 0 {
		return nil
	}

	var lines []string
	for _, role := range roles {
		username := fmt.Sprintf("%s_operator", role)
		password, err := GenerateRandomPassword()
		if err != nil {
			return err
		}
		if _, err := store.Create(username, password, role); err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", username, role, password))
	}

	content := fmt.Sprintf("# generated %s — read once and delete\n", time.Now().UTC().Format(time.RFC3339))
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(credentialsPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write initial credentials: %w", err)
	}
	return nil
}
