// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Quill post tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/seroka/quill/internal/postservice"
)

// Server wraps the MCP server with Quill tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all Quill tools registered.
func New(svc *postservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List all blog posts (drafts included) with id, title, publish state, and views."),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the full content of a blog post by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("create_draft",
		mcp.WithDescription("Create a new UNPUBLISHED draft post. Drafts never appear on the "+
			"public site until an admin publishes them. Read the post format first via the "+
			"get_post_contract tool or the quill://post-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Post title (max 200 chars)")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Short summary (max 1000 chars)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full post body (Markdown)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags (optional)")),
	), s.createDraft)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the canonical Quill post format contract. "+
			"Call this before creating drafts to ensure correct structure."),
	), s.getPostContract)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource("quill://post-format", "Post Format Contract",
			mcp.WithResourceDescription("Canonical blog post structure that all drafts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.svc.ListAll(1, 1000)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type item struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		IsPublished bool   `json:"isPublished"`
		Views       int    `json:"views"`
	}
	items := make([]item, len(page.Items))
	for i, p := range page.Items {
		items[i] = item{ID: p.ID, Title: p.Title, IsPublished: p.IsPublished, Views: p.Views}
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags := ""
	if v, err := req.RequireString("tags"); err == nil {
		tags = v
	}

	// Drafts only: MCP clients never publish directly.
	published := false
	post, err := s.svc.Create(postservice.CreateInput{
		Title:       title,
		Description: description,
		Content:     content,
		Tags:        tags,
		IsPublished: &published,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created draft: %s", post.ID)), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "quill://post-format",
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
