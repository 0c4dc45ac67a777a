// Package session remembers which user is logged in between CLI
// invocations and dashboard restarts.
package session

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stageboard/stageboard/internal/config"
	"github.com/stageboard/stageboard/internal/models"
)

// Session stores the current user. Get returns nil, nil when nobody is
// logged in.
type Session interface {
	Get() (*models.User, error)
	Set(u *models.User) error
	Clear() error
}

// New builds the backend selected by cfg.
func New(cfg config.SessionConfig) (Session, error) {
	switch cfg.Backend {
	case "file":
		return NewFile(cfg.Path), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(client, cfg.Redis.Key), nil
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("session: unsupported backend %q", cfg.Backend)
	}
}

// Memory keeps the user in process memory. It is what the tests and the
// dashboard's ephemeral mode use.
type Memory struct {
	mu   sync.Mutex
	user *models.User
}

// NewMemory returns an empty in-memory session.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Get() (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	u := *m.user
	return &u, nil
}

func (m *Memory) Set(u *models.User) error {
	if u == nil {
		return m.Clear()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.user = &cp
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}
