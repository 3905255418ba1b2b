package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func chunkSizeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum characters per engine call; lines are never split",
		"minimum":     1,
	}
}

// analyzeFileTool returns the tool definition for analyze_file
func analyzeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_file",
		Description: "Find named entities in a text file and report line, offsets and context lines for each",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a UTF-8 text file",
				},
				"chunk_size": chunkSizeProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// analyzeTextTool returns the tool definition for analyze_text
func analyzeTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_text",
		Description: "Find named entities in the given text and report line, offsets and context lines for each",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Document text; line terminators are preserved",
				},
				"chunk_size": chunkSizeProperty(),
			},
			Required: []string{"text"},
		},
	}
}

// scanDirectoryTool returns the tool definition for scan_directory
func scanDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "scan_directory",
		Description: "Analyze every text file below a directory, skipping hidden directories and binary files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to scan",
				},
				"chunk_size": chunkSizeProperty(),
				"max_files": map[string]interface{}{
					"type":        "integer",
					"description": "Stop after this many files with results (1-1000)",
					"default":     DefaultMaxFiles,
					"minimum":     1,
					"maximum":     1000,
				},
			},
			Required: []string{"path"},
		},
	}
}
