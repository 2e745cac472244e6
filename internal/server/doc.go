// Package server implements the MCP (Model Context Protocol) tool server
// for the soroban pipeline.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Detection:
//   - soroban_detect_frame: Find the frame, its corners and perspective metrics
//   - soroban_extract: Rectify the frame and cut lanes and bead cells
//
// Recognition:
//   - soroban_read: Classify every bead and read the value
//   - soroban_overlay: Draw frame, lanes and value onto the image
//   - soroban_interpret: Compute a value from bead states, no image needed
//
// Configuration:
//   - soroban_config: Read or patch preprocessing, detection and tensor settings
//
// Image tools take either a path or an inline base64 payload. Decoded files
// are cached by path and re-read when they change on disk.
//
// # Results and Errors
//
// Every tool result is wrapped in an envelope carrying a fresh request id
// (a UUID), the tool name and the elapsed time. The same id is attached to
// the server's log lines for that call.
//
// A frame without a soroban is a normal result: the extraction tools report
// success=false with error_code "frame not detected". JSON-RPC errors
// (code -32000) are reserved for bad arguments, unreadable images and
// internal failures; their data holds the request id and pipeline error
// code.
//
// # Usage
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//	srv := server.New(p, logger)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
