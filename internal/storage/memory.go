package storage

import (
	"sync"

	"github.com/seroka/quill/internal/models"
)

// Memory is an in-process backend for tests and ephemeral deployments where
// no writable filesystem is available. State is lost on process exit.
type Memory struct {
	mu    sync.Mutex
	posts []models.Post
	admin *models.Admin
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LoadPosts() ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Post, len(m.posts))
	copy(out, m.posts)
	return out, nil
}

func (m *Memory) SavePosts(posts []models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = make([]models.Post, len(posts))
	copy(m.posts, posts)
	return nil
}

func (m *Memory) LoadAdmin(def models.Admin) (models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admin == nil {
		cp := def
		m.admin = &cp
	}
	return *m.admin, nil
}

func (m *Memory) SaveAdmin(admin models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := admin
	m.admin = &cp
	return nil
}

func (m *Memory) Close() error {
	return nil
}
