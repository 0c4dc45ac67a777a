package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Login looks the user up by email and remembers them in the session.
//
// Unless password verification is enabled, any password is accepted for a
// registered email.
func (s *Store) Login(email, password string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, s.fail(fmt.Errorf("state: login: email is required: %w", store.ErrInvalid))
	}
	u, err := s.users.GetByEmail(email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(ErrUnauthorized)
	}
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: login: %w", err))
	}
	if s.verify {
		if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return nil, s.fail(ErrUnauthorized)
		}
	}
	if err := s.session.Set(u); err != nil {
		return nil, s.fail(fmt.Errorf("state: login: %w", err))
	}

	s.userMap[u.ID] = *u
	cur := *u
	s.current = &cur
	s.err = nil
	s.log.Info().Str("user", u.Email).Str("role", string(u.Role)).Msg("logged in")
	return &cur, nil
}

// Logout forgets the current user. It cannot fail; a session backend error
// is only logged.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("clear session")
	}
	s.current = nil
}

// CurrentUser returns the logged-in user, or nil.
func (s *Store) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// Register creates a user. The password is optional; without one the user
// can only log in while password verification is off.
func (s *Store) Register(name, email, password string, role models.Role) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name == "":
		return nil, s.fail(fmt.Errorf("state: register: name is required: %w", store.ErrInvalid))
	case !strings.Contains(email, "@"):
		return nil, s.fail(fmt.Errorf("state: register: email %q is malformed: %w", email, store.ErrInvalid))
	case !role.Valid():
		return nil, s.fail(fmt.Errorf("state: register: role %q: %w", role, store.ErrInvalid))
	}

	_, err := s.users.GetByEmail(email)
	if err == nil {
		return nil, s.fail(fmt.Errorf("state: register: email %s already registered: %w", email, store.ErrInvalid))
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(fmt.Errorf("state: register: %w", err))
	}

	u := models.User{ID: uuid.NewString(), Name: name, Email: email, Role: role}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, s.fail(fmt.Errorf("state: register: hash password: %w", err))
		}
		u.PasswordHash = string(hash)
	}
	if err := s.users.Save(&u); err != nil {
		return nil, s.fail(fmt.Errorf("state: register: %w", err))
	}
	s.userMap[u.ID] = u
	s.log.Info().Str("user", u.Email).Str("role", string(u.Role)).Msg("user registered")
	return &u, nil
}
