package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seroka/quill/internal/auth"
	"github.com/seroka/quill/internal/models"
	"github.com/seroka/quill/internal/postservice"
	"github.com/seroka/quill/internal/sse"
	"github.com/seroka/quill/internal/storage"
)

const (
	testUser     = "admin"
	testPassword = "correct horse"
)

// testEnv builds a memory-backed service, auth, uploads dir, and router.
func testEnv(t *testing.T) (*postservice.Service, http.Handler, *Uploads) {
	t.Helper()

	store := storage.NewMemory()
	authSvc, err := auth.New(store, "test-secret", time.Hour, testUser, testPassword)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	uploads, err := NewUploads(t.TempDir())
	if err != nil {
		t.Fatalf("NewUploads: %v", err)
	}
	svc := postservice.NewService(store, uploads)
	router := NewRouter(svc, authSvc, uploads, nil)
	return svc, router, uploads
}

// loginToken logs in with the test credentials and returns the bearer token.
func loginToken(t *testing.T, router http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Username: testUser, Password: testPassword})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
	return resp.Token
}

func doJSON(router http.Handler, method, target, token string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createPost(t *testing.T, router http.Handler, token, title string, published bool) models.Post {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/posts", token, map[string]any{
		"title":       title,
		"description": "about " + title,
		"content":     "body of " + title,
		"tags":        "go, testing",
		"isPublished": published,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var post models.Post
	if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
		t.Fatalf("create response: %v", err)
	}
	return post
}

func TestCreateAndGetPost(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	post := createPost(t, router, token, "Hello", true)
	if post.ID == "" {
		t.Fatal("created post has no id")
	}
	if len(post.Tags) != 2 || post.Tags[0] != "go" || post.Tags[1] != "testing" {
		t.Errorf("tags = %v", post.Tags)
	}

	w := doJSON(router, http.MethodGet, "/posts/"+post.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Post
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Hello" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content == "" {
		t.Error("single post fetch should include content")
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	_, router, _ := testEnv(t)

	cases := []struct {
		method, target string
	}{
		{http.MethodPost, "/posts"},
		{http.MethodPut, "/posts/some-id"},
		{http.MethodDelete, "/posts/some-id"},
		{http.MethodGet, "/posts/admin"},
		{http.MethodGet, "/auth/verify"},
	}
	for _, tc := range cases {
		w := doJSON(router, tc.method, tc.target, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", tc.method, tc.target, w.Code)
		}

		w = doJSON(router, tc.method, tc.target, "not-a-jwt", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with garbage token = %d, want 401", tc.method, tc.target, w.Code)
		}
	}
}

func TestLoginFailures(t *testing.T) {
	_, router, _ := testEnv(t)

	w := doJSON(router, http.MethodPost, "/auth/login", "", LoginRequest{Username: testUser, Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", w.Code)
	}

	w = doJSON(router, http.MethodPost, "/auth/login", "", LoginRequest{Username: testUser})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing password = %d, want 400", w.Code)
	}

	w = doJSON(router, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ADMIN", Password: testPassword})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("username is case-sensitive, got %d, want 401", w.Code)
	}
}

func TestVerifyToken(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	w := doJSON(router, http.MethodGet, "/auth/verify", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	var resp VerifyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Valid || resp.Admin.Username != testUser {
		t.Errorf("verify = %+v", resp)
	}
}

func TestPublicListHidesDrafts(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	createPost(t, router, token, "published one", true)
	draft := createPost(t, router, token, "secret draft", false)

	w := doJSON(router, http.MethodGet, "/posts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Posts) != 1 {
		t.Fatalf("total = %d, items = %d, want 1/1", resp.Total, len(resp.Posts))
	}
	if resp.Posts[0].Title != "published one" {
		t.Errorf("title = %q", resp.Posts[0].Title)
	}

	// Drafts look exactly like missing posts.
	w = doJSON(router, http.MethodGet, "/posts/"+draft.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("draft fetch = %d, want 404", w.Code)
	}
}

func TestAdminListIncludesDrafts(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	createPost(t, router, token, "live", true)
	createPost(t, router, token, "draft", false)

	w := doJSON(router, http.MethodGet, "/posts/admin", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list status = %d", w.Code)
	}
	var resp AdminListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Errorf("total = %d, items = %d, want 2/2", resp.Total, len(resp.Items))
	}
	// Newest first.
	if resp.Items[0].Title != "draft" {
		t.Errorf("first item = %q, want newest", resp.Items[0].Title)
	}
}

func TestPublicListPagination(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	for i := 0; i < 5; i++ {
		createPost(t, router, token, fmt.Sprintf("post %d", i), true)
	}

	w := doJSON(router, http.MethodGet, "/posts?page=2&limit=2", "", nil)
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 5 || resp.TotalPages != 3 || resp.CurrentPage != 2 {
		t.Errorf("envelope = %+v", resp)
	}
	if len(resp.Posts) != 2 {
		t.Errorf("page 2 items = %d, want 2", len(resp.Posts))
	}

	// Page past the end is empty, not an error.
	w = doJSON(router, http.MethodGet, "/posts?page=99&limit=2", "", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Posts) != 0 {
		t.Errorf("out-of-range page: status = %d, items = %d", w.Code, len(resp.Posts))
	}
}

func TestPublicListSearch(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	createPost(t, router, token, "Profiling Go services", true)
	createPost(t, router, token, "Cooking with cast iron", true)

	w := doJSON(router, http.MethodGet, "/posts?search=profiling", "", nil)
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Posts[0].Title != "Profiling Go services" {
		t.Errorf("search result = %+v", resp)
	}

	// Tags participate in search too (every test post carries "testing").
	w = doJSON(router, http.MethodGet, "/posts?search=TESTING", "", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("tag search total = %d, want 2", resp.Total)
	}
}

func TestViewsIncrementOnPublicFetchOnly(t *testing.T) {
	svc, router, _ := testEnv(t)
	token := loginToken(t, router)
	post := createPost(t, router, token, "counted", true)

	for i := 1; i <= 3; i++ {
		w := doJSON(router, http.MethodGet, "/posts/"+post.ID, "", nil)
		var got models.Post
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if got.Views != i {
			t.Fatalf("fetch %d: views = %d", i, got.Views)
		}
	}

	// Admin reads never count.
	doJSON(router, http.MethodGet, "/posts/admin", token, nil)
	got, err := svc.Get(post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 3 {
		t.Errorf("views after admin list = %d, want 3", got.Views)
	}
}

func TestUpdatePartial(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)
	post := createPost(t, router, token, "original", true)

	w := doJSON(router, http.MethodPut, "/posts/"+post.ID, token, map[string]any{
		"title": "renamed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Post
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "renamed" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != post.Content {
		t.Errorf("content changed: %q", got.Content)
	}
	if !got.PublishDate.Equal(post.PublishDate) {
		t.Error("publishDate must not change on update")
	}
}

func TestValidationErrors(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	w := doJSON(router, http.MethodPost, "/posts", token, map[string]any{
		"title": "   ", "description": "d", "content": "c",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}

	w = doJSON(router, http.MethodPost, "/posts", token, map[string]any{
		"title": strings.Repeat("x", 201), "description": "d", "content": "c",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("overlong title = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rec.Code)
	}
}

func TestDeletePost(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)
	post := createPost(t, router, token, "doomed", true)

	w := doJSON(router, http.MethodDelete, "/posts/"+post.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/posts/"+post.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted post fetch = %d, want 404", w.Code)
	}

	w = doJSON(router, http.MethodDelete, "/posts/"+post.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", w.Code)
	}
}

// multipartBody builds a multipart form with the given fields and an optional
// file part named "image" carrying an explicit Content-Type.
func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func TestCreateMultipartWithImage(t *testing.T) {
	_, router, uploads := testEnv(t)
	token := loginToken(t, router)

	body, contentType := multipartBody(t, map[string]string{
		"title":       "with cover",
		"description": "d",
		"content":     "c",
		"isPublished": "true",
	}, "cover.png", "image/png", []byte("fake-png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart create = %d, body = %s", w.Code, w.Body.String())
	}

	var post models.Post
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	if !strings.HasPrefix(post.Image, "/uploads/blog-") {
		t.Fatalf("image ref = %q", post.Image)
	}
	if !strings.HasSuffix(post.Image, ".png") {
		t.Errorf("image ref keeps extension: %q", post.Image)
	}
	if !post.IsPublished {
		t.Error("isPublished form field not applied")
	}

	stored := filepath.Join(uploads.dir, strings.TrimPrefix(post.Image, "/uploads/"))
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != "fake-png-bytes" {
		t.Errorf("stored bytes = %q", data)
	}
}

func TestCreateMultipartRejectsNonImage(t *testing.T) {
	_, router, _ := testEnv(t)
	token := loginToken(t, router)

	body, contentType := multipartBody(t, map[string]string{
		"title": "t", "description": "d", "content": "c",
	}, "payload.sh", "application/x-sh", []byte("#!/bin/sh"))

	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-image upload = %d, want 400", w.Code)
	}
}

func TestUpdateMultipartReplacesImageAndCleansOld(t *testing.T) {
	_, router, uploads := testEnv(t)
	token := loginToken(t, router)

	body, contentType := multipartBody(t, map[string]string{
		"title": "img", "description": "d", "content": "c",
	}, "one.jpg", "image/jpeg", []byte("one"))
	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var post models.Post
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	oldFile := filepath.Join(uploads.dir, strings.TrimPrefix(post.Image, "/uploads/"))

	body, contentType = multipartBody(t, nil, "two.jpg", "image/jpeg", []byte("two"))
	req = httptest.NewRequest(http.MethodPut, "/posts/"+post.ID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("multipart update = %d, body = %s", w.Code, w.Body.String())
	}

	var updated models.Post
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Image == post.Image {
		t.Error("image ref should change")
	}
	if updated.Title != "img" {
		t.Errorf("absent form fields must not clear values, title = %q", updated.Title)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("old image should be removed, stat err = %v", err)
	}
}

func TestServeFileRejectsTraversal(t *testing.T) {
	_, _, uploads := testEnv(t)

	for _, name := range []string{"../secret", "..", "a/b.png", ""} {
		w := httptest.NewRecorder()
		uploads.ServeFile(w, httptest.NewRequest(http.MethodGet, "/uploads/x", nil), name)
		if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
			t.Errorf("ServeFile(%q) = %d, want 400 or 404", name, w.Code)
		}
	}
}

// waitEvent reads from the subscriber channel until an event of the wanted
// type arrives or the deadline passes.
func waitEvent(t *testing.T, ch chan []byte, eventType, id string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if !strings.Contains(s, "event: "+eventType) {
				continue
			}
			if !strings.Contains(s, id) {
				t.Fatalf("%s event missing id %s: %q", eventType, id, s)
			}
			return
		case <-deadline:
			t.Fatalf("timeout waiting for %s", eventType)
		}
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	store := storage.NewMemory()
	authSvc, err := auth.New(store, "test-secret", time.Hour, testUser, testPassword)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	uploads, err := NewUploads(t.TempDir())
	if err != nil {
		t.Fatalf("NewUploads: %v", err)
	}
	svc := postservice.NewService(store, uploads)
	broker := sse.NewBroker()
	defer broker.Close()
	router := NewRouter(svc, authSvc, uploads, broker)

	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)
	token := loginToken(t, router)

	post := createPost(t, router, token, "observed", true)
	waitEvent(t, ch, "post.created", post.ID)

	w := doJSON(router, http.MethodPut, "/posts/"+post.ID, token, map[string]any{"title": "renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}
	waitEvent(t, ch, "post.updated", post.ID)

	w = doJSON(router, http.MethodDelete, "/posts/"+post.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	waitEvent(t, ch, "post.deleted", post.ID)
}

func TestFailedMutationsPublishNothing(t *testing.T) {
	store := storage.NewMemory()
	authSvc, err := auth.New(store, "test-secret", time.Hour, testUser, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	svc := postservice.NewService(store, nil)
	broker := sse.NewBroker()
	defer broker.Close()
	router := NewRouter(svc, authSvc, nil, broker)

	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)
	token := loginToken(t, router)

	w := doJSON(router, http.MethodPost, "/posts", token, map[string]any{"title": " "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid create = %d", w.Code)
	}
	w = doJSON(router, http.MethodDelete, "/posts/absent", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing = %d", w.Code)
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected event after failed mutations: %q", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUploadsRemoveIgnoresForeignRefs(t *testing.T) {
	_, _, uploads := testEnv(t)

	// Must not panic or touch anything outside the uploads dir.
	uploads.Remove("/uploads/../../../etc/passwd")
	uploads.Remove("https://cdn.example.com/pic.png")
	uploads.Remove("/uploads/never-existed.png")
}
