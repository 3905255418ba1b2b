// Package mcp implements the Model Context Protocol (MCP) server for entityscan.
//
// The server exposes three tools:
//   - analyze_file: find entities in one text file
//   - analyze_text: find entities in text passed inline
//   - scan_directory: analyze every text file below a directory
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	entityscan serve
//
// Logs go to stderr since stdout carries the protocol.
//
// # Tool: analyze_file
//
//	Request:
//	{
//	  "name": "analyze_file",
//	  "arguments": {"path": "/data/brief.txt", "chunk_size": 5000}
//	}
//
//	Response text:
//	{"entities":[{"text":"Hans Müller","label":"PER","hit_line_position":0,
//	  "start":0,"end":11,"prev_line":null,"hit_line":"Hans Müller wohnt in Berlin.",
//	  "next_line":null}]}
//
// analyze_text takes "text" instead of "path" and answers the same way.
//
// # Tool: scan_directory
//
//	Request:
//	{
//	  "name": "scan_directory",
//	  "arguments": {"path": "/data", "max_files": 50}
//	}
//
//	Response text:
//	{"files":[{"path":"/data/a.txt","entities":[...]}],"files_scanned":1,
//	 "files_skipped":0,"files_failed":0,"entities":3,"duration_ms":12,"truncated":false}
//
// Only one scan runs at a time; a concurrent call fails with -32002.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing or invalid arguments)
//   - -32603: Internal error
//   - -32001: Path not found
//   - -32002: Scan in progress
//   - -32003: Binary input
//   - -32004: Engine failure
//   - -32005: Invalid configuration (e.g. chunk_size above the engine limit)
package mcp
