// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package services

import (
	"context"
	"errors"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/stream"
)

// StreamRunner is the part of stream.Consumer the service needs.
type StreamRunner interface {
	Run(ctx context.Context) error
	Endpoint() string
}

// StreamService supervises the upstream threat stream consumer.
type StreamService struct {
	consumer StreamRunner
	name     string
}

// NewStreamService wraps consumer.
func NewStreamService(consumer StreamRunner) *StreamService {
	return &StreamService{
		consumer: consumer,
		name:     "threat-stream",
	}
}

// Serve implements suture.Service.
func (s *StreamService) Serve(ctx context.Context) error {
	err := s.consumer.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, stream.ErrRetriesExhausted) {
		logging.Warn().Err(err).Str("endpoint", s.consumer.Endpoint()).
			Msg("Threat stream unreachable, handing restart to supervisor")
	}
	return err
}

func (s *StreamService) String() string {
	return s.name
}
