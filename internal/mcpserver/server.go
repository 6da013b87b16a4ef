// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the governance corpus for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/muninn/internal/content"
	"github.com/halvard/muninn/internal/models"
)

// Server wraps the MCP server with the corpus tools.
type Server struct {
	mcp *server.MCPServer
	svc *content.Service
}

// New creates a new MCP server with all corpus tools registered.
func New(svc *content.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Muninn",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a governance document by category and identifier. "+
			"Identifiers resolve flexibly: canonical form (10_supply-chain), full stem "+
			"(ri-10_supply-chain), filename, or bare sequence number. See the "+
			"muninn://corpus-guide resource for the full convention."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Document category: risk, mitigation, or framework")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document identifier (e.g. 1_prompt-injection)")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List a category's documents in canonical order. Entries that "+
			"could not be fetched appear as filename placeholders."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Document category: risk, mitigation, or framework")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Case-insensitive substring search over titles and previews of "+
			"known documents. Runs entirely against local state and never touches the network."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("category", mcp.Description("Optional category to scope the search (empty searches all)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report cache hit rates, seed list revision, and snapshot size."),
	), s.cacheStats)

	s.mcp.AddTool(mcp.NewTool("sync_fallback",
		mcp.WithDescription("Refresh the static fallback list from live directory listings "+
			"and persist it when file-backed."),
	), s.syncFallback)

	s.mcp.AddTool(mcp.NewTool("get_corpus_guide",
		mcp.WithDescription("Returns the corpus guide: categories, identifier forms, "+
			"document format, and degradation outcomes."),
	), s.getCorpusGuide)

	// Resource: corpus guide.
	s.mcp.AddResource(
		mcp.NewResource("muninn://corpus-guide", "Corpus Guide",
			mcp.WithResourceDescription("Corpus layout, identifier conventions, and degradation outcomes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCorpusGuideResource,
	)

	// Resource template: one document per category/id URI.
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate("muninn://{category}/{id}", "Governance Document",
			mcp.WithTemplateDescription("Markdown body of a single governance document."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.readDocumentResource,
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

// errResult renders a classified error as a tool error payload.
func errResult(err error) *mcp.CallToolResult {
	out, _ := json.Marshal(content.Describe(err))
	return mcp.NewToolResultError(string(out))
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := models.ParseCategory(category)
	if err != nil {
		return errResult(err), nil
	}

	res, err := s.svc.Get(ctx, c, id)
	if err != nil {
		return errResult(err), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := models.ParseCategory(category)
	if err != nil {
		return errResult(err), nil
	}

	summaries, err := s.svc.List(ctx, c)
	if err != nil {
		return errResult(err), nil
	}
	out, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope := ""
	if raw, err := req.RequireString("category"); err == nil {
		scope = raw
	}
	var c models.Category
	if scope != "" {
		parsed, err := models.ParseCategory(scope)
		if err != nil {
			return errResult(err), nil
		}
		c = parsed
	}

	matches, err := s.svc.Search(ctx, c, query)
	if err != nil {
		return errResult(err), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) cacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Stats(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncFallback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.svc.SyncSeed(ctx)
	if err != nil {
		return errResult(err), nil
	}
	out, _ := json.MarshalIndent(map[string]interface{}{"synced": counts}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCorpusGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CorpusGuide), nil
}

func (s *Server) readCorpusGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "muninn://corpus-guide",
			MIMEType: "text/markdown",
			Text:     CorpusGuide,
		},
	}, nil
}

func (s *Server) readDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	rest := strings.TrimPrefix(req.Params.URI, "muninn://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed document URI: %s", req.Params.URI)
	}
	c, err := models.ParseCategory(parts[0])
	if err != nil {
		return nil, err
	}

	res, err := s.svc.Get(ctx, c, parts[1])
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     res.Document.Body,
		},
	}, nil
}
