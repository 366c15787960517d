package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/seroka/quill/internal/postservice"
	"github.com/seroka/quill/internal/storage"
)

func testServer(t *testing.T) (*Server, *postservice.Service) {
	t.Helper()
	svc := postservice.NewService(storage.NewMemory(), nil)
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we invoke the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "read_post":
		result, err = srv.readPost(ctx, req)
	case "create_draft":
		result, err = srv.createDraft(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateDraftIsNeverPublished(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "create_draft", map[string]interface{}{
		"title":       "Agent-written post",
		"description": "A draft",
		"content":     "Body",
		"tags":        "ai, drafts",
	})
	text := resultText(r)
	if !strings.HasPrefix(text, "created draft: ") {
		t.Fatalf("create result = %q", text)
	}
	id := strings.TrimPrefix(text, "created draft: ")

	post, err := svc.Get(id)
	if err != nil {
		t.Fatalf("created draft not found: %v", err)
	}
	if post.IsPublished {
		t.Error("drafts created over MCP must be unpublished")
	}
	if len(post.Tags) != 2 || post.Tags[0] != "ai" {
		t.Errorf("tags = %v", post.Tags)
	}
}

func TestCreateDraftMissingTitle(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_draft", map[string]interface{}{
		"description": "d",
		"content":     "c",
	})
	if !r.IsError {
		t.Error("expected error for missing title")
	}
}

func TestListAndReadPosts(t *testing.T) {
	srv, svc := testServer(t)
	published := true
	post, err := svc.Create(postservice.CreateInput{
		Title: "Visible", Description: "d", Content: "full body", IsPublished: &published,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_posts", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, post.ID) {
		t.Errorf("list missing post id: %q", text)
	}

	r = callTool(t, srv, "read_post", map[string]interface{}{"id": post.ID})
	if text := resultText(r); !strings.Contains(text, "full body") {
		t.Errorf("read missing content: %q", text)
	}
}

func TestReadPostMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_post", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing post")
	}
}

func TestGetPostContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_post_contract", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "title") {
		t.Errorf("contract looks wrong: %q", text)
	}
}
