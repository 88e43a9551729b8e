// Package server implements the MCP (Model Context Protocol) server for
// graticule calibration tools.
//
// The server exposes each step of a calibration run as a separate tool, so a
// client can inspect a graticule profile, check where the lines are, compute
// the scale factor and burn a scale bar into a target image one call at a
// time.
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
// Image Information:
//   - image_load: Load image and get metadata, including its intensity range
//
// Graticule Measurement:
//   - graticule_profile: Intensity values along one row
//   - graticule_detect_lines: Locate graticule lines on a profile row
//   - graticule_calibrate: Length per pixel from two reference positions
//
// Target Image Operations:
//   - image_normalize: Rescale intensities to [0, 1]
//   - image_scale_bar: Normalize and burn in a labelled scale bar
//
// # Image Caching
//
// Images are cached by path for the lifetime of the server process. A
// graticule that is profiled, line-detected and calibrated is decoded once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Logging
//
// Diagnostics go to the zerolog logger passed to New. It must write to
// stderr or a file, never stdout, which carries the protocol.
//
// # Usage
//
//	srv := server.New(logger, version)
//	if err := srv.Run(); err != nil {
//	    logger.Fatal().Err(err).Msg("server error")
//	}
package server
