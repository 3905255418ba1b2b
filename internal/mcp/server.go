package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/analyzer"
	"github.com/dshills/entityscan/internal/engine"
)

const (
	// ServerName is the MCP server name
	ServerName = "entityscan"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	engine engine.Engine
	opts   analyzer.Options
	logger *zap.Logger

	// One directory scan at a time across all chunk sizes
	scanLock analyzer.ScanLock

	mu        sync.Mutex
	analyzers map[int]*analyzer.Analyzer // by chunk size
}

// maxCachedAnalyzers bounds the per-chunk-size analyzer cache
const maxCachedAnalyzers = 16

// NewServer creates a server that analyzes with eng. opts.ChunkSize is the
// default for calls that do not pass chunk_size.
func NewServer(eng engine.Engine, opts analyzer.Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Validate the defaults up front
	def, err := analyzer.New(eng, opts)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		engine:    eng,
		opts:      opts,
		logger:    logger,
		analyzers: map[int]*analyzer.Analyzer{def.ChunkSize(): def},
	}
	s.opts.ChunkSize = def.ChunkSize()

	s.registerTools()
	return s, nil
}

// Serve runs the MCP protocol on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))

	s.logger.Info("mcp server listening on stdio", zap.String("engine", s.engine.Name()))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(analyzeFileTool(), s.handleAnalyzeFile)
	s.mcp.AddTool(analyzeTextTool(), s.handleAnalyzeText)
	s.mcp.AddTool(scanDirectoryTool(), s.handleScanDirectory)
}

// analyzerFor returns the analyzer for chunkSize, 0 meaning the default
func (s *Server) analyzerFor(chunkSize int) (*analyzer.Analyzer, error) {
	if chunkSize == 0 {
		chunkSize = s.opts.ChunkSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.analyzers[chunkSize]; ok {
		return a, nil
	}

	opts := s.opts
	opts.ChunkSize = chunkSize
	a, err := analyzer.New(s.engine, opts)
	if err != nil {
		return nil, fmt.Errorf("chunk_size %d: %w", chunkSize, err)
	}
	if len(s.analyzers) < maxCachedAnalyzers {
		s.analyzers[chunkSize] = a
	}
	return a, nil
}
