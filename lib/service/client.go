// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"time"

	"github.com/bureau-foundation/lull/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// service socket. This is separate from the server's read/write
// timeouts: it covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request when the caller's context
// has no deadline. Matched to the server's readTimeout + writeTimeout
// to account for handler execution time.
const responseReadTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR response. A
// list response carries every buffered message of every instance, so
// it is larger than the request limit.
const maxResponseSize = 16 * 1024 * 1024

// ServiceError is returned by Call when the server responds with
// ok=false. It carries the server's error message, its error code (if
// any), and the action that failed.
type ServiceError struct {
	Action  string
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ErrorCode returns the code the server attached to the failure.
func (e *ServiceError) ErrorCode() string { return e.Code }

// ServiceClient sends CBOR requests to a service socket. Each Call
// opens a new connection (matching the server's one-request-per-
// connection model), sends the request, reads the response, and
// closes the connection.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient creates a client for the socket at socketPath. No
// connection is made until the first Call.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client connects to.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends a CBOR request to the service and decodes the response.
//
// The fields parameter holds the handler-specific request fields: a
// map[string]any, a struct with cbor or json tags, or nil for actions
// that take no parameters. The client adds "action" automatically, and
// "deadline" when ctx has one. fields must not set either key.
//
// The wait for the response ends at ctx's deadline when it has one,
// otherwise after a fixed read timeout. Cancelling ctx abandons the
// call.
//
// On success (response ok=true), if result is non-nil and the
// response contains data, the data is CBOR-decoded into result.
//
// On failure (response ok=false), returns a *ServiceError containing
// the server's error message and code. Connection and encoding errors
// are returned as plain errors (not *ServiceError).
func (c *ServiceClient) Call(ctx context.Context, action string, fields any, result any) error {
	request, err := buildRequest(ctx, action, fields)
	if err != nil {
		return fmt.Errorf("encoding %q request: %w", action, err)
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		// A handler that ended with the caller's deadline answers with
		// the bare context error. Report it as the caller's own.
		if ctxErr := expired(ctx); ctxErr != nil && response.Code == "" {
			return fmt.Errorf("calling %q on %s: %s: %w", action, c.socketPath, response.Error, ctxErr)
		}
		return &ServiceError{
			Action:  action,
			Message: response.Error,
			Code:    response.Code,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

// buildRequest constructs the CBOR request map. Starts with the
// caller's fields (if any), then injects "action" and, when ctx has a
// deadline, "deadline".
func buildRequest(ctx context.Context, action string, fields any) (map[string]any, error) {
	request := make(map[string]any)
	switch typed := fields.(type) {
	case nil:
	case map[string]any:
		maps.Copy(request, typed)
	default:
		encoded, err := codec.Marshal(fields)
		if err != nil {
			return nil, err
		}
		if err := codec.Unmarshal(encoded, &request); err != nil {
			return nil, err
		}
	}

	request["action"] = action
	if deadline, ok := ctx.Deadline(); ok {
		request["deadline"] = deadline.UnixNano()
	}
	return request, nil
}

// send connects to the socket, writes the request, and reads the
// response. Each call creates a new connection.
func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	// Closing the connection unblocks the read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Write the request.
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close the write side. CBOR is self-delimiting so this
	// isn't strictly necessary, but it lets the server's read side
	// see EOF cleanly.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	// Read the response.
	readDeadline := time.Now().Add(responseReadTimeout)
	if deadline, ok := ctx.Deadline(); ok {
		readDeadline = deadline
	}
	conn.SetReadDeadline(readDeadline)
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctxErr := expired(ctx); ctxErr != nil {
			return nil, fmt.Errorf("reading response: %w", ctxErr)
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}

// expired returns ctx's error, or context.DeadlineExceeded once ctx's
// deadline has passed even if its timer has not fired yet. The read
// deadline equals the context deadline, so the socket can time out
// first.
func expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}
