package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seroka/quill/internal/auth"
	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/postservice"
	"github.com/seroka/quill/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *postservice.Service
	authSvc *auth.Service
	uploads *Uploads
	events  *sse.Broker
}

// NewHandler creates a new Handler. uploads may be nil when local image
// storage is disabled; uploaded files are then rejected. events may be nil
// when no SSE broker is running.
func NewHandler(svc *postservice.Service, authSvc *auth.Service, uploads *Uploads, events *sse.Broker) *Handler {
	return &Handler{svc: svc, authSvc: authSvc, uploads: uploads, events: events}
}

// publish broadcasts a post-change event to connected SSE clients. Successful
// mutations publish regardless of storage backend; the data-file watcher only
// covers edits made outside the process.
func (h *Handler) publish(kind, id string) {
	if h.events != nil {
		h.events.PublishPostEvent(kind, id)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// ListPosts handles GET /api/posts (public). Only published posts are
// visible; results are sorted by publish date descending and paginated.
// An optional search term filters on title, description, and tags.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPublished()
	if err != nil {
		writeError(w, "list posts", err)
		return
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		posts = filterPosts(posts, search)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishDate.After(posts[j].PublishDate)
	})

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	total := len(posts)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	end := start + limit
	items := []PostSummary{}
	if start < total {
		if end > total {
			end = total
		}
		for _, p := range posts[start:end] {
			items = append(items, summarize(p))
		}
	}

	writeJSON(w, http.StatusOK, PostListResponse{
		Posts:       items,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages,
	})
}

// filterPosts keeps posts whose title, description, or any tag contains the
// search term, case-insensitively.
func filterPosts(posts []models.Post, search string) []models.Post {
	needle := strings.ToLower(search)
	out := []models.Post{}
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
			continue
		}
		for _, tag := range p.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// GetPost handles GET /api/posts/{id} (public). Fetching a published post
// increments its view counter; drafts look identical to missing posts.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPublished(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get post", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// ListAdminPosts handles GET /api/posts/admin (admin). The full collection,
// drafts included, paginated; views are not touched.
func (h *Handler) ListAdminPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListAll(queryInt(r, "page", 1), queryInt(r, "pageSize", 10))
	if err != nil {
		writeError(w, "list admin posts", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreatePost handles POST /api/posts (admin). Accepts either a JSON body or
// multipart/form-data with an optional image file.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseCreate(w, r)
	if !ok {
		return
	}
	post, err := h.svc.Create(in)
	if err != nil {
		writeError(w, "create post", err)
		return
	}
	h.publish("created", post.ID)
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) parseCreate(w http.ResponseWriter, r *http.Request) (postservice.CreateInput, bool) {
	var in postservice.CreateInput

	if !isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return in, false
		}
		return postservice.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			Content:     req.Content,
			Image:       req.Image,
			Tags:        req.Tags,
			IsPublished: req.IsPublished,
		}, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return in, false
	}

	in = postservice.CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Content:     r.FormValue("content"),
		Image:       r.FormValue("image"),
		Tags:        r.FormValue("tags"),
	}
	if v := r.FormValue("isPublished"); v != "" {
		b := v == "true"
		in.IsPublished = &b
	}

	ref, ok := h.saveImageIfPresent(w, r)
	if !ok {
		return in, false
	}
	if ref != "" {
		in.Image = ref
	}
	return in, true
}

// UpdatePost handles PUT /api/posts/{id} (admin). Fields absent from the
// request leave the stored values untouched.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseUpdate(w, r)
	if !ok {
		return
	}
	post, err := h.svc.Update(chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "update post", err)
		return
	}
	h.publish("updated", post.ID)
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) parseUpdate(w http.ResponseWriter, r *http.Request) (postservice.UpdateInput, bool) {
	var in postservice.UpdateInput

	if !isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return in, false
		}
		return postservice.UpdateInput{
			Title:       req.Title,
			Description: req.Description,
			Content:     req.Content,
			Image:       req.Image,
			Tags:        req.Tags,
			IsPublished: req.IsPublished,
		}, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return in, false
	}

	// Form-field presence decides which fields participate in the update.
	formValue := func(key string) *string {
		vals, present := r.MultipartForm.Value[key]
		if !present || len(vals) == 0 {
			return nil
		}
		return &vals[0]
	}
	in.Title = formValue("title")
	in.Description = formValue("description")
	in.Content = formValue("content")
	in.Image = formValue("image")
	in.Tags = formValue("tags")
	if v := formValue("isPublished"); v != nil {
		b := *v == "true"
		in.IsPublished = &b
	}

	ref, ok := h.saveImageIfPresent(w, r)
	if !ok {
		return in, false
	}
	if ref != "" {
		in.Image = &ref
	}
	return in, true
}

// saveImageIfPresent stores an uploaded "image" form file when one is
// attached. It returns the new public reference, or "" when no file was
// sent. The bool result is false when the request has already been answered
// with an error.
func (h *Handler) saveImageIfPresent(w http.ResponseWriter, r *http.Request) (string, bool) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return "", true
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid image upload"))
		return "", false
	}
	defer file.Close()

	if h.uploads == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("image uploads are disabled"))
		return "", false
	}
	ref, err := h.uploads.Save(file, header)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return ref, true
}

// DeletePost handles DELETE /api/posts/{id} (admin).
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(id); err != nil {
		writeError(w, "delete post", err)
		return
	}
	h.publish("deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// Login handles POST /api/auth/login (public).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("username and password are required"))
		return
	}

	token, admin, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "login successful",
		Token:   token,
		Admin:   profile(admin),
	})
}

// VerifyToken handles GET /api/auth/verify (admin). Reaching the handler
// means RequireAdmin already validated the credential.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	admin, ok := adminFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid token"))
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, Admin: profile(admin)})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
