// Package models defines the domain types for Quill.
package models

import "time"

// Post represents a single blog entry.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Image       string    `json:"image"`
	Tags        []string  `json:"tags"`
	IsPublished bool      `json:"isPublished"`
	Views       int       `json:"views"`
	PublishDate time.Time `json:"publishDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Admin is the single administrative identity. The password field holds a
// bcrypt hash and must never be serialized into API responses.
type Admin struct {
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	LastLogin *time.Time `json:"lastLogin"`
}
