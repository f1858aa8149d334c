package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("ingest_policy",
		mcp.WithDescription("Chunk and index a local policy document (.pdf, .txt or .md). Re-ingesting a file replaces its previous chunks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document on the server's filesystem")),
	), s.handleIngest)

	s.server.AddTool(mcp.NewTool("query_policy",
		mcp.WithDescription("Answer a question using only the indexed text of one policy document, with cited chunks."),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("Identifier returned by ingest_policy")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the policy, may reference a control such as A.7")),
	), s.handleQuery)

	s.server.AddTool(mcp.NewTool("list_controls",
		mcp.WithDescription("List the compliance controls known to the reviewer."),
	), s.handleListControls)
}

func (s *Server) handleIngest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path = strings.TrimSpace(path)
	if !s.fileTypes.Supports(path) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file type %q, expected one of %s",
			filepath.Ext(path), strings.Join(s.fileTypes.Extensions(), ", "))), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer file.Close()

	result, err := s.ports.Ingestor.Ingest(ctx, filepath.Base(path), file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := request.RequireString("file_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.ports.Answerer.Answer(ctx, fileID, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answer)
}

func (s *Server) handleListControls(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := s.ports.Catalog.IDs()
	sort.Strings(ids)
	controls := make([]domain.Control, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.ports.Catalog.Lookup(id); ok {
			controls = append(controls, c)
		}
	}
	return jsonResult(map[string]any{"controls": controls, "count": len(controls)})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
