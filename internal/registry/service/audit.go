package service

import (
	"context"

	"landledger/pkg/platform/audit"
	"landledger/pkg/requestcontext"
)

// emit records an audit event if a publisher is configured. Fail-open: the
// publisher logs its own append failures and the business operation proceeds.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	_ = s.audit.Emit(ctx, event)
}
