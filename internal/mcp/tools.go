package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/analyzer"
	"github.com/dshills/entityscan/internal/format"
	"github.com/dshills/entityscan/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeInputNotFound  = -32001 // Path does not exist
	ErrorCodeScanInProgress = -32002 // Another directory scan is already running
	ErrorCodeBinaryInput    = -32003 // File is not text
	ErrorCodeEngineFailure  = -32004 // Recognition engine failed
	ErrorCodeConfiguration  = -32005 // Invalid chunk size or engine settings
)

// DefaultMaxFiles caps the files reported by scan_directory
const DefaultMaxFiles = 100

// errMaxFiles stops a directory walk once enough files were reported
var errMaxFiles = errors.New("file limit reached")

// handleAnalyzeFile handles the analyze_file tool invocation
func (s *Server) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireAbsPath(args)
	if err != nil {
		return nil, err
	}

	a, err := s.analyzerFromArgs(args)
	if err != nil {
		return nil, err
	}

	report, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, analysisError(err)
	}

	return resultJSON(format.MarshalResult(report.Hits))
}

// handleAnalyzeText handles the analyze_text tool invocation
func (s *Server) handleAnalyzeText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	// Empty text is valid and yields no entities
	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or not a string",
		})
	}

	a, err := s.analyzerFromArgs(args)
	if err != nil {
		return nil, err
	}

	report, err := a.AnalyzeText(ctx, text)
	if err != nil {
		return nil, analysisError(err)
	}

	return resultJSON(format.MarshalResult(report.Hits))
}

// handleScanDirectory handles the scan_directory tool invocation
func (s *Server) handleScanDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireAbsPath(args)
	if err != nil {
		return nil, err
	}

	maxFiles := getIntDefault(args, "max_files", DefaultMaxFiles)
	if maxFiles < 1 || maxFiles > 1000 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_files must be between 1 and 1000", map[string]interface{}{
			"param": "max_files",
			"value": maxFiles,
		})
	}

	a, err := s.analyzerFromArgs(args)
	if err != nil {
		return nil, err
	}

	if !s.scanLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeScanInProgress, "a directory scan is already running", nil)
	}
	defer s.scanLock.Release()

	files := make([]format.FileResult, 0)
	stats, err := a.AnalyzeDir(ctx, path, func(r *analyzer.Report) error {
		files = append(files, format.FileResult{Path: r.Path, Entities: r.Hits})
		if len(files) >= maxFiles {
			return errMaxFiles
		}
		return nil
	})
	truncated := errors.Is(err, errMaxFiles)
	if err != nil && !truncated {
		return nil, analysisError(err)
	}

	response := map[string]interface{}{
		"files":         files,
		"files_scanned": stats.Files,
		"files_skipped": stats.SkippedFiles,
		"files_failed":  stats.FailedFiles,
		"entities":      stats.Entities,
		"duration_ms":   stats.Duration.Milliseconds(),
		"truncated":     truncated,
	}
	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	s.logger.Debug("scan_directory finished",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Bool("truncated", truncated))

	return resultJSON(format.Marshal(response))
}

// Helper functions

// analyzerFromArgs resolves the optional chunk_size argument
func (s *Server) analyzerFromArgs(args map[string]interface{}) (*analyzer.Analyzer, error) {
	chunkSize := getIntDefault(args, "chunk_size", 0)
	if _, present := args["chunk_size"]; present && chunkSize < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_size must be a positive integer", map[string]interface{}{
			"param": "chunk_size",
			"value": args["chunk_size"],
		})
	}

	a, err := s.analyzerFor(chunkSize)
	if err != nil {
		return nil, newMCPError(ErrorCodeConfiguration, "invalid chunk_size", map[string]interface{}{
			"param":  "chunk_size",
			"reason": err.Error(),
		})
	}
	return a, nil
}

// analysisError maps analyzer errors onto MCP error codes
func analysisError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, types.ErrInputNotFound):
		return newMCPError(ErrorCodeInputNotFound, "path does not exist", data)
	case errors.Is(err, types.ErrBinaryInput):
		return newMCPError(ErrorCodeBinaryInput, "file is not a text file", data)
	case errors.Is(err, analyzer.ErrScanInProgress):
		return newMCPError(ErrorCodeScanInProgress, "a directory scan is already running", data)
	case errors.Is(err, types.ErrConfiguration):
		return newMCPError(ErrorCodeConfiguration, "invalid configuration", data)
	case errors.Is(err, types.ErrEngineFailure):
		return newMCPError(ErrorCodeEngineFailure, "entity engine failed", data)
	default:
		return newMCPError(ErrorCodeInternalError, "analysis failed", data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireAbsPath extracts and checks the path argument
func requireAbsPath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) {
			code = ErrorCodeInputNotFound
		}
		return "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// validatePath checks if a path is absolute and exists
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	return nil
}

// resultJSON wraps marshalled JSON as a text result
func resultJSON(data []byte, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode result", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(data)), nil
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
)
