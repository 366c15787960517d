package storage

import (
	"fmt"

	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/recordstore"
)

// Document names inside the data directory.
const (
	postsDoc = "posts.json"
	adminDoc = "admin.json"
)

// JSONFile persists posts and the admin record as two independent
// pretty-printed JSON documents in a data directory.
type JSONFile struct {
	rs *recordstore.Store
}

// NewJSONFile creates the backend rooted at dir, creating dir if needed.
func NewJSONFile(dir string) (*JSONFile, error) {
	rs, err := recordstore.New(dir)
	if err != nil {
		return nil, err
	}
	return &JSONFile{rs: rs}, nil
}

// Dir returns the data directory holding the documents.
func (j *JSONFile) Dir() string {
	return j.rs.Dir()
}

// PostsPath returns the absolute path of the posts document.
func (j *JSONFile) PostsPath() string {
	return j.rs.Path(postsDoc)
}

// AdminPath returns the absolute path of the admin document.
func (j *JSONFile) AdminPath() string {
	return j.rs.Path(adminDoc)
}

func (j *JSONFile) LoadPosts() ([]models.Post, error) {
	return recordstore.Read(j.rs, postsDoc, []models.Post{}), nil
}

func (j *JSONFile) SavePosts(posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	return recordstore.Write(j.rs, postsDoc, posts)
}

func (j *JSONFile) LoadAdmin(def models.Admin) (models.Admin, error) {
	// First run: persist the default so later reads are never empty. A
	// present-but-corrupt document is an error, not a reset.
	if !j.rs.Exists(adminDoc) {
		if err := recordstore.Write(j.rs, adminDoc, def); err != nil {
			return models.Admin{}, fmt.Errorf("storage: bootstrap admin: %w", err)
		}
		return def, nil
	}
	return recordstore.ReadStrict[models.Admin](j.rs, adminDoc)
}

func (j *JSONFile) SaveAdmin(admin models.Admin) error {
	return recordstore.Write(j.rs, adminDoc, admin)
}

func (j *JSONFile) Close() error {
	return nil
}
