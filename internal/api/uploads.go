package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxImageBytes bounds a single image upload (enforced at the multipart
// parsing boundary).
const maxImageBytes = 5 << 20 // 5 MB

// Uploads stores and serves post cover images on local disk. Stored names
// are server-generated; the client filename only contributes its extension.
type Uploads struct {
	dir string
}

// NewUploads creates the handler rooted at dir, creating it if missing.
func NewUploads(dir string) (*Uploads, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("uploads: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &Uploads{dir: abs}, nil
}

// safeName validates that name is a plain filename (no separators, no
// traversal) and returns the absolute path under the uploads dir.
func (u *Uploads) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("uploads: filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("uploads: invalid filename: %s", name)
	}
	abs := filepath.Join(u.dir, cleaned)
	if !strings.HasPrefix(abs, u.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("uploads: path escapes uploads directory")
	}
	return abs, nil
}

// Save stores an uploaded image and returns its public reference
// ("/uploads/<name>"). Only image/* payloads are accepted.
func (u *Uploads) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("uploads: only image files are allowed")
	}
	if header.Size > maxImageBytes {
		return "", fmt.Errorf("uploads: file exceeds %d bytes", maxImageBytes)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := fmt.Sprintf("blog-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	abs, err := u.safeName(name)
	if err != nil {
		return "", err
	}

	dst, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("uploads: create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("uploads: write file: %w", err)
	}
	return "/uploads/" + name, nil
}

// Remove deletes a stored image by its public reference. Failure is logged,
// never propagated: image cleanup is a side effect, not part of any
// operation's success contract.
func (u *Uploads) Remove(ref string) {
	name := strings.TrimPrefix(ref, "/uploads/")
	abs, err := u.safeName(name)
	if err != nil {
		slog.Warn("uploads: refusing removal", slog.String("ref", ref), slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		slog.Warn("uploads: remove failed", slog.String("ref", ref), slog.String("error", err.Error()))
	}
}

// ServeFile handles GET /uploads/{filename}.
func (u *Uploads) ServeFile(w http.ResponseWriter, r *http.Request, filename string) {
	abs, err := u.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
