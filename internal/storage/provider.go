// Package storage defines the persistence abstraction for posts and the
// admin record, with pluggable backends.
//
// All backends expose snapshot semantics: a load returns the full collection
// and a save replaces it wholesale. Concurrent writers therefore follow
// last-writer-wins on the entire snapshot; that is the intended consistency
// model for a single-admin blog and holds identically across backends.
package storage

import "github.com/seroka/quill/internal/models"

// Backend names accepted in configuration.
const (
	BackendJSON   = "json"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Provider is the interface all storage backends implement.
type Provider interface {
	// LoadPosts returns the full post collection in storage order.
	LoadPosts() ([]models.Post, error)
	// SavePosts replaces the full post collection.
	SavePosts(posts []models.Post) error
	// LoadAdmin returns the admin record, creating and persisting def when
	// no record exists yet.
	LoadAdmin(def models.Admin) (models.Admin, error)
	// SaveAdmin replaces the admin record.
	SaveAdmin(admin models.Admin) error
	// Close releases backend resources.
	Close() error
}
