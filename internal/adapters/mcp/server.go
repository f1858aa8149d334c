// Package mcpadapter exposes policy ingestion and question answering as
// Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

const Version = "1.0.0"

// Ports are the use cases the tools delegate to.
type Ports struct {
	Ingestor ports.DocumentIngestor
	Answerer ports.PolicyQuestionAnswerer
	Catalog  ports.ControlCatalog
	// FileTypes decides which paths ingest_policy accepts. Nil accepts .pdf,
	// .txt and .md.
	FileTypes ports.FileTypes
}

func (p *Ports) Validate() error {
	if p == nil {
		return errors.New("ports are required")
	}
	if p.Ingestor == nil {
		return errors.New("ingestor is required")
	}
	if p.Answerer == nil {
		return errors.New("answerer is required")
	}
	if p.Catalog == nil {
		return errors.New("control catalog is required")
	}
	return nil
}

type Server struct {
	ports     *Ports
	server    *server.MCPServer
	fileTypes ports.FileTypes
}

func NewServer(name string, p *Ports) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fileTypes := p.FileTypes
	if fileTypes == nil {
		fileTypes = extensionSet{".md", ".pdf", ".txt"}
	}

	s := &Server{
		ports:     p,
		server:    server.NewMCPServer(name, Version, server.WithToolCapabilities(false)),
		fileTypes: fileTypes,
	}
	s.registerTools()
	return s, nil
}

type extensionSet []string

func (s extensionSet) Supports(filename string) bool {
	return slices.Contains(s, strings.ToLower(filepath.Ext(filename)))
}

func (s extensionSet) Extensions() []string { return s }

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.server).Listen(ctx, in, out)
}
