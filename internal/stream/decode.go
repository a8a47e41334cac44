// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/validation"
)

// Decode failure reasons, also used as metric labels.
const (
	ReasonSyntax     = "syntax"
	ReasonType       = "type"
	ReasonValidation = "validation"
)

// DecodeError describes a message that is not a valid threat.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode threat (%s): %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeResult is either a Threat or the reason the payload was rejected.
type DecodeResult struct {
	Threat models.Threat
	Err    *DecodeError
}

// OK reports whether the payload decoded into a valid threat.
func (r DecodeResult) OK() bool { return r.Err == nil }

// wireThreat mirrors the stream payload. Pointers tell a missing field
// from a zero value; the producer sends null for absent addresses.
type wireThreat struct {
	Hash       *string  `json:"hash" validate:"required,min=1"`
	Type       *string  `json:"type" validate:"required,min=1"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=100"`
	SourceIP   *string  `json:"source_ip" validate:"omitempty,ip"`
	DestIP     *string  `json:"dest_ip" validate:"omitempty,ip"`
	Timestamp  *int64   `json:"timestamp" validate:"required,gte=0"`
	NodeID     *string  `json:"node_id" validate:"required,min=1"`
}

// Decode parses and validates one stream message.
func Decode(data []byte) DecodeResult {
	var w wireThreat
	if err := json.Unmarshal(data, &w); err != nil {
		return DecodeResult{Err: &DecodeError{Reason: jsonReason(data, err), Err: err}}
	}
	if verrs := validation.ValidateStruct(&w); verrs != nil {
		return DecodeResult{Err: &DecodeError{Reason: ReasonValidation, Err: verrs}}
	}

	return DecodeResult{Threat: models.Threat{
		Hash:       *w.Hash,
		Type:       *w.Type,
		Confidence: *w.Confidence,
		SourceIP:   deref(w.SourceIP),
		DestIP:     deref(w.DestIP),
		Timestamp:  *w.Timestamp,
		NodeID:     *w.NodeID,
	}}
}

// jsonReason tells malformed JSON from well-formed JSON of the wrong shape.
// go-json reports some mismatches, such as 1.5 into an integer, as syntax
// errors, so the payload itself is checked.
func jsonReason(data []byte, err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) || json.Valid(data) {
		return ReasonType
	}
	return ReasonSyntax
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
