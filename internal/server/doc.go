// Package server exposes the augmentation pipeline as MCP tools over stdio.
//
// The server speaks JSON-RPC 2.0, one request per line on stdin and one
// response per line on stdout:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - augment_list_operations: Every operation with its fields and defaults
//   - augment_validate: Check a pipeline without running it
//   - augment_apply: Run a pipeline on one image and its annotations
//   - augment_new_session: Open a replay session
//   - augment_end_session: Drop a replay session
//
// # Replay Sessions
//
// A session owns one draw cache. Every augment_apply call that names the
// session replays the draws recorded by the earlier calls, so an image and
// its companion (a depth map, a second camera) can be augmented identically
// in separate calls. Requests are handled one at a time, which keeps each
// session cache single-writer.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors. An invalid pipeline is
// reported with code -32602 and any other failure with -32000; data holds
// the error text.
package server
