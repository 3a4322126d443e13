// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/lull/lib/codec"
	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
	"github.com/bureau-foundation/lull/lib/version"
)

// LullService adapts the debounce manager to the socket protocol.
type LullService struct {
	manager *debounce.Manager
	logger  *slog.Logger
}

// invalidRequestError is a request that decoded but cannot be served.
type invalidRequestError struct{ message string }

func (e *invalidRequestError) Error() string     { return e.message }
func (e *invalidRequestError) ErrorCode() string { return lull.CodeInvalidRequest }

func invalidRequest(format string, args ...any) error {
	return &invalidRequestError{message: fmt.Sprintf(format, args...)}
}

// decodeRequest unmarshals the raw request into target and checks the
// instance ID when the action names one.
func decodeRequest(raw []byte, target any, instanceID func() string) error {
	if err := codec.Unmarshal(raw, target); err != nil {
		return invalidRequest("invalid request: %v", err)
	}
	if instanceID != nil && strings.TrimSpace(instanceID()) == "" {
		return invalidRequest("missing required field: instance_id")
	}
	return nil
}

// registerActions wires every lull action to the server.
func (s *LullService) registerActions(server *service.SocketServer) {
	server.Handle(lull.ActionStart, s.handleStart)
	server.Handle(lull.ActionAddMessage, s.handleAddMessage)
	server.Handle(lull.ActionStatus, s.handleStatus)
	server.Handle(lull.ActionResult, s.handleResult)
	server.Handle(lull.ActionCancel, s.handleCancel)
	server.Handle(lull.ActionList, s.handleList)
	server.Handle(lull.ActionHealth, s.handleHealth)
}

func (s *LullService) handleStart(ctx context.Context, raw []byte) (any, error) {
	var request lull.StartRequest
	if err := decodeRequest(raw, &request, func() string { return request.InstanceID }); err != nil {
		return nil, err
	}
	if request.QuietPeriod < 0 {
		return nil, invalidRequest("quiet_period must not be negative, got %s", request.QuietPeriod)
	}
	return s.manager.Start(ctx, request.InstanceID, request.Message, request.QuietPeriod)
}

func (s *LullService) handleAddMessage(ctx context.Context, raw []byte) (any, error) {
	var request lull.AddMessageRequest
	if err := decodeRequest(raw, &request, func() string { return request.InstanceID }); err != nil {
		return nil, err
	}
	return s.manager.AddMessage(ctx, request.InstanceID, request.Message)
}

func (s *LullService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	var request lull.InstanceRequest
	if err := decodeRequest(raw, &request, func() string { return request.InstanceID }); err != nil {
		return nil, err
	}
	status, err := s.manager.Status(request.InstanceID)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// handleResult blocks until the instance is done or the request's
// deadline passes.
func (s *LullService) handleResult(ctx context.Context, raw []byte) (any, error) {
	var request lull.InstanceRequest
	if err := decodeRequest(raw, &request, func() string { return request.InstanceID }); err != nil {
		return nil, err
	}
	result, err := s.manager.Result(ctx, request.InstanceID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logger.Debug("result wait ended before completion",
				"instance_id", request.InstanceID, "error", err)
		}
		return nil, err
	}
	return lull.ResultResponse{InstanceID: request.InstanceID, Result: result}, nil
}

func (s *LullService) handleCancel(ctx context.Context, raw []byte) (any, error) {
	var request lull.CancelRequest
	if err := decodeRequest(raw, &request, func() string { return request.InstanceID }); err != nil {
		return nil, err
	}
	return s.manager.Cancel(ctx, request.InstanceID, request.Reason)
}

func (s *LullService) handleList(ctx context.Context, raw []byte) (any, error) {
	return lull.ListResponse{Instances: s.manager.List()}, nil
}

func (s *LullService) handleHealth(ctx context.Context, raw []byte) (any, error) {
	counts := s.manager.Counts()
	return lull.HealthResponse{
		Version:      version.Short(),
		Accumulating: counts.Accumulating,
		Flushing:     counts.Flushing,
		Done:         counts.Done,
		Failed:       counts.Failed,
	}, nil
}
