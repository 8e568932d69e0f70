// Package server implements the MCP (Model Context Protocol) server for the
// dataset tools.
//
// This package provides a JSON-RPC 2.0 server that exposes the diagnose,
// clean, split and export stages through the MCP protocol, so an MCP client
// can inspect and prepare a COCO dataset without shelling out to the CLI.
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
// Dataset stages:
//   - dataset_diagnose: Report on a dataset without modifying it
//   - dataset_clean: Clean a dataset and save the result
//   - dataset_split: Assign images to train, val and test
//   - dataset_export: Write the YOLO layout from the cleaned dataset
//   - dataset_manifest: Read back the dataset.yaml of an export
//
// Image information:
//   - image_dimensions: Get the oriented width and height of an image file
//
// Every dataset tool starts from the server configuration; arguments such as
// "annotations", "export_dir" or "seed" override it for one call only.
//
// # Dimension Caching
//
// Probed image sizes are cached by path for the lifetime of the server
// process. Failed probes are not cached.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Image copy failures during dataset_export are not tool failures: they are
// listed in the "failures" field of the result.
//
// # Usage
//
// The server is typically started by an MCP client through "coco2yolo serve":
//
//	srv := server.New(afero.NewOsFs(), settings, logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal().Err(err).Msg("server error")
//	}
package server
