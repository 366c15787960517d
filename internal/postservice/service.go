// Package postservice implements the domain operations over the blog post
// collection.
//
// Every operation follows the same shape: load the full snapshot from
// storage, mutate a local copy, write the full snapshot back. Two concurrent
// mutations therefore resolve last-writer-wins on the whole collection; no
// cross-operation locking is attempted.
package postservice

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/seroka/quill/internal/apperr"
	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/storage"
)

// Field length bounds enforced on create and update.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// ImageCleaner removes a previously stored image by its reference. Cleanup is
// best-effort: failures are logged by the implementation, never propagated.
type ImageCleaner interface {
	Remove(ref string)
}

// Service coordinates storage operations for posts.
type Service struct {
	store  storage.Provider
	images ImageCleaner
}

// NewService creates a post service. images may be nil when no local image
// storage is in use.
func NewService(store storage.Provider, images ImageCleaner) *Service {
	return &Service{store: store, images: images}
}

// CreateInput carries the fields for a new post. Tags is the raw
// comma-separated form value.
type CreateInput struct {
	Title       string
	Description string
	Content     string
	Image       string
	Tags        string
	IsPublished *bool
}

// Validate checks required fields and length bounds after trimming.
func (in CreateInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	return validation.Errors{
		"title":       validation.Validate(title, validation.Required, validation.Length(1, MaxTitleLen)),
		"description": validation.Validate(description, validation.Required, validation.Length(1, MaxDescriptionLen)),
		"content":     validation.Validate(in.Content, validation.Required),
	}.Filter()
}

// UpdateInput carries a partial update; nil fields are left untouched.
// A non-nil Tags replaces the tag list wholesale.
type UpdateInput struct {
	Title       *string
	Description *string
	Content     *string
	Image       *string
	Tags        *string
	IsPublished *bool
}

// Page is one page of the full (drafts included) collection.
type Page struct {
	Items       []models.Post `json:"posts"`
	Total       int           `json:"total"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

// ParseTags splits a comma-separated tag string: segments are trimmed, empty
// segments dropped, order preserved, no case folding.
func ParseTags(raw string) []string {
	out := []string{}
	for _, seg := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(seg); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// ListPublished returns all published posts in storage order.
func (s *Service) ListPublished() ([]models.Post, error) {
	posts, err := s.store.LoadPosts()
	if err != nil {
		return nil, fmt.Errorf("postservice: list published: %w", err)
	}
	out := []models.Post{}
	for _, p := range posts {
		if p.IsPublished {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListAll returns a 1-indexed page over the full collection, drafts
// included. A page past the end yields empty items, not an error.
func (s *Service) ListAll(page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	posts, err := s.store.LoadPosts()
	if err != nil {
		return Page{}, fmt.Errorf("postservice: list all: %w", err)
	}

	total := len(posts)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	items := []models.Post{}
	if start < total {
		if end > total {
			end = total
		}
		items = append(items, posts[start:end]...)
	}
	return Page{Items: items, Total: total, CurrentPage: page, TotalPages: totalPages}, nil
}

// Get returns a post by id regardless of publish state.
func (s *Service) Get(id string) (models.Post, error) {
	posts, err := s.store.LoadPosts()
	if err != nil {
		return models.Post{}, fmt.Errorf("postservice: get: %w", err)
	}
	for _, p := range posts {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Post{}, apperr.ErrNotFound
}

// GetPublished returns a published post by id and increments its view
// counter as a side effect. Drafts are indistinguishable from missing posts.
func (s *Service) GetPublished(id string) (models.Post, error) {
	posts, err := s.store.LoadPosts()
	if err != nil {
		return models.Post{}, fmt.Errorf("postservice: get published: %w", err)
	}
	for i, p := range posts {
		if p.ID != id || !p.IsPublished {
			continue
		}
		posts[i].Views++
		if err := s.store.SavePosts(posts); err != nil {
			return models.Post{}, fmt.Errorf("postservice: persist views: %w", err)
		}
		return posts[i], nil
	}
	return models.Post{}, apperr.ErrNotFound
}

// Create validates the input and inserts the new post at the front of the
// collection (most-recent-first for the admin listing).
func (s *Service) Create(in CreateInput) (models.Post, error) {
	if err := in.Validate(); err != nil {
		return models.Post{}, fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
	}

	now := time.Now().UTC()
	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}
	post := models.Post{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Content:     in.Content,
		Image:       in.Image,
		Tags:        ParseTags(in.Tags),
		IsPublished: published,
		Views:       0,
		PublishDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	posts, err := s.store.LoadPosts()
	if err != nil {
		return models.Post{}, fmt.Errorf("postservice: create: %w", err)
	}
	posts = append([]models.Post{post}, posts...)
	if err := s.store.SavePosts(posts); err != nil {
		return models.Post{}, fmt.Errorf("postservice: persist create: %w", err)
	}
	return post, nil
}

// Update applies a partial update. Supplied fields overwrite stored values;
// updatedAt is always refreshed. When the image is replaced and the previous
// one was a locally stored upload, the old file is removed best-effort after
// the snapshot is committed.
func (s *Service) Update(id string, in UpdateInput) (models.Post, error) {
	posts, err := s.store.LoadPosts()
	if err != nil {
		return models.Post{}, fmt.Errorf("postservice: update: %w", err)
	}

	idx := -1
	for i, p := range posts {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Post{}, apperr.ErrNotFound
	}

	post := posts[idx]
	oldImage := post.Image

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validation.Validate(title, validation.Required, validation.Length(1, MaxTitleLen)); err != nil {
			return models.Post{}, fmt.Errorf("%w: title: %s", apperr.ErrInvalid, err.Error())
		}
		post.Title = title
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if err := validation.Validate(description, validation.Required, validation.Length(1, MaxDescriptionLen)); err != nil {
			return models.Post{}, fmt.Errorf("%w: description: %s", apperr.ErrInvalid, err.Error())
		}
		post.Description = description
	}
	if in.Content != nil {
		if *in.Content == "" {
			return models.Post{}, fmt.Errorf("%w: content cannot be empty", apperr.ErrInvalid)
		}
		post.Content = *in.Content
	}
	if in.Image != nil {
		post.Image = *in.Image
	}
	if in.Tags != nil {
		post.Tags = ParseTags(*in.Tags)
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}
	post.UpdatedAt = time.Now().UTC()

	posts[idx] = post
	if err := s.store.SavePosts(posts); err != nil {
		return models.Post{}, fmt.Errorf("postservice: persist update: %w", err)
	}

	if in.Image != nil && oldImage != post.Image {
		s.removeLocalImage(oldImage)
	}
	return post, nil
}

// Delete removes the post and its locally stored image, if any.
func (s *Service) Delete(id string) error {
	posts, err := s.store.LoadPosts()
	if err != nil {
		return fmt.Errorf("postservice: delete: %w", err)
	}

	idx := -1
	for i, p := range posts {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return apperr.ErrNotFound
	}

	image := posts[idx].Image
	posts = append(posts[:idx], posts[idx+1:]...)
	if err := s.store.SavePosts(posts); err != nil {
		return fmt.Errorf("postservice: persist delete: %w", err)
	}

	s.removeLocalImage(image)
	return nil
}

// removeLocalImage fires the cleanup hook for locally stored uploads only;
// external URLs and data URIs are left alone.
func (s *Service) removeLocalImage(ref string) {
	if s.images == nil || !strings.HasPrefix(ref, "/uploads/") {
		return
	}
	s.images.Remove(ref)
}
