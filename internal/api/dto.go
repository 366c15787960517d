package api

import (
	"time"

	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/postservice"
)

// PostSummary is a list item on the public surface; it carries everything a
// listing needs except the full content body.
type PostSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Tags        []string  `json:"tags"`
	Views       int       `json:"views"`
	PublishDate time.Time `json:"publishDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func summarize(p models.Post) PostSummary {
	return PostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		Tags:        p.Tags,
		Views:       p.Views,
		PublishDate: p.PublishDate,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// PostListResponse is the public listing payload.
type PostListResponse struct {
	Posts       []PostSummary `json:"posts"`
	Total       int           `json:"total"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

// AdminListResponse is the admin listing payload (drafts included).
type AdminListResponse = postservice.Page

// LoginRequest is the credentials payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminProfile is the client-safe projection of the admin record.
type AdminProfile struct {
	Username  string     `json:"username"`
	LastLogin *time.Time `json:"lastLogin"`
}

func profile(a models.Admin) AdminProfile {
	return AdminProfile{Username: a.Username, LastLogin: a.LastLogin}
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	Admin   AdminProfile `json:"admin"`
}

// VerifyResponse is returned by GET /auth/verify.
type VerifyResponse struct {
	Valid bool         `json:"valid"`
	Admin AdminProfile `json:"admin"`
}

// createRequest is the JSON body for POST /posts. Multipart requests carry
// the same fields as form values.
type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Image       string `json:"image"`
	Tags        string `json:"tags"`
	IsPublished *bool  `json:"isPublished"`
}

// updateRequest is the JSON body for PUT /posts/{id}; absent fields leave the
// stored values untouched.
type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	Image       *string `json:"image"`
	Tags        *string `json:"tags"`
	IsPublished *bool   `json:"isPublished"`
}
