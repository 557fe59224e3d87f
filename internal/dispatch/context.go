package dispatch

import (
	"context"

	"github.com/dmitrymomot/notemail/pkg/logger"
)

type (
	ownerKey struct{}
	sendKey  struct{}
)

// WithOwnerID stores the owner id for log correlation.
func WithOwnerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

func withSendID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sendKey{}, id)
}

// LogExtractors adds owner_id and send_id to log records.
func LogExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		logger.StringExtractor(ownerKey{}, "owner_id"),
		logger.StringExtractor(sendKey{}, "send_id"),
	}
}
