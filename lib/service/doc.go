// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the socket transport lull-service and its
// clients speak.
//
//   - Socket server: CBOR Unix socket server with action dispatch,
//     connection timeouts, and graceful shutdown. Each connection
//     carries exactly one request and one response.
//   - Client: one connection per call, error codes surfaced as
//     *ServiceError, context deadlines forwarded to the server so a
//     blocking handler ends when its caller stops waiting.
//
// Responses are the envelope {ok, error, code, data}. The code is
// taken from the handler error's ErrorCode() method, which lets typed
// clients rebuild sentinel errors on their side of the socket.
//
// Services compose these utilities in their own main() function rather
// than subclassing a framework. The package provides building blocks,
// not a runtime.
//
// # Authentication
//
// There is no caller authentication. The socket lives in a directory
// owned by the service user; filesystem permissions decide who can
// connect.
package service
