// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type fieldStage struct{}
type fieldCorrelationID struct{}
type fieldClientIP struct{}
type fieldQueueID struct{}

// WithStage adds the MTA hook stage being processed to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, fieldStage{}, stage)
}

// WithCorrelationID adds a request correlation id to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, fieldCorrelationID{}, correlationID)
}

// WithClientIP adds the connecting client's IP address to the context. Callers
// are responsible for redacting it beforehand when LOG_REDACT_IPS is set.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, fieldClientIP{}, clientIP)
}

// WithQueueID adds the MTA-supplied queue id to the context.
func WithQueueID(ctx context.Context, queueID string) context.Context {
	return context.WithValue(ctx, fieldQueueID{}, queueID)
}

// appendContextFields adds defined fields in the context to the log event.
func appendContextFields(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if stage, ok := ctx.Value(fieldStage{}).(string); ok {
		event.Str("stage", stage)
	}

	if correlationID, ok := ctx.Value(fieldCorrelationID{}).(string); ok {
		event.Str("correlationId", correlationID)
	}

	if clientIP, ok := ctx.Value(fieldClientIP{}).(string); ok {
		event.Str("clientIp", clientIP)
	}

	if queueID, ok := ctx.Value(fieldQueueID{}).(string); ok {
		event.Str("queueId", queueID)
	}

	return event
}
