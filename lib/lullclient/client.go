// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lullclient is the typed client for the lull-service socket.
// Each method maps to one socket action. Failures the service reports
// with an error code come back as errors that match the debounce
// package's sentinels, so callers on either side of the socket check
// them the same way:
//
//	if errors.Is(err, debounce.ErrLateIntake) { ... }
package lullclient

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
)

// Client provides typed access to lull-service over its Unix socket.
type Client struct {
	client *service.ServiceClient
}

// New creates a client for the socket at socketPath. No connection is
// made until the first call.
func New(socketPath string) (*Client, error) {
	if socketPath == "" {
		return nil, errors.New("lull service socket path is required")
	}
	return &Client{client: service.NewServiceClient(socketPath)}, nil
}

// SocketPath returns the socket the client talks to.
func (c *Client) SocketPath() string { return c.client.SocketPath() }

// Start creates an instance seeded with message. A zero quietPeriod
// uses the service default.
func (c *Client) Start(ctx context.Context, instanceID, message string, quietPeriod time.Duration) (lull.Status, error) {
	var status lull.Status
	err := c.call(ctx, lull.ActionStart, instanceID, lull.StartRequest{
		InstanceID:  instanceID,
		Message:     message,
		QuietPeriod: quietPeriod,
	}, &status)
	return status, err
}

// AddMessage appends message to an accumulating instance and returns
// the snapshot that includes it.
func (c *Client) AddMessage(ctx context.Context, instanceID, message string) (lull.Status, error) {
	var status lull.Status
	err := c.call(ctx, lull.ActionAddMessage, instanceID, lull.AddMessageRequest{
		InstanceID: instanceID,
		Message:    message,
	}, &status)
	return status, err
}

// Status returns the current snapshot of an instance.
func (c *Client) Status(ctx context.Context, instanceID string) (lull.Status, error) {
	var status lull.Status
	err := c.call(ctx, lull.ActionStatus, instanceID, lull.InstanceRequest{InstanceID: instanceID}, &status)
	return status, err
}

// Result blocks until the instance is done, or ctx ends, and returns
// the downstream output. A failed or cancelled instance returns a
// *debounce.InvocationError.
func (c *Client) Result(ctx context.Context, instanceID string) (string, error) {
	var response lull.ResultResponse
	err := c.call(ctx, lull.ActionResult, instanceID, lull.InstanceRequest{InstanceID: instanceID}, &response)
	return response.Result, err
}

// Cancel ends an accumulating instance without invoking downstream.
func (c *Client) Cancel(ctx context.Context, instanceID, reason string) (lull.Status, error) {
	var status lull.Status
	err := c.call(ctx, lull.ActionCancel, instanceID, lull.CancelRequest{
		InstanceID: instanceID,
		Reason:     reason,
	}, &status)
	return status, err
}

// List returns a snapshot of every instance the service knows, sorted
// by instance ID.
func (c *Client) List(ctx context.Context) ([]lull.Status, error) {
	var response lull.ListResponse
	if err := c.call(ctx, lull.ActionList, "", nil, &response); err != nil {
		return nil, err
	}
	return response.Instances, nil
}

// Health returns the service version and instance counts.
func (c *Client) Health(ctx context.Context) (lull.HealthResponse, error) {
	var response lull.HealthResponse
	err := c.call(ctx, lull.ActionHealth, "", nil, &response)
	return response, err
}

func (c *Client) call(ctx context.Context, action, instanceID string, fields, result any) error {
	if err := c.client.Call(ctx, action, fields, result); err != nil {
		return translate(instanceID, err)
	}
	return nil
}
