package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/httputil"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

var errForbidden = errors.New("forbidden: identity mismatch")

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError 5xx пишутся в лог, клиенту уходит общее сообщение.
func writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(ctx).ErrorContext(ctx, "handler."+op+" failed", "err", err)
		httputil.Error(ctx, w, status, "internal error", nil)
		return
	}

	var meta map[string]any
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		meta = map[string]any{"fields": verr.Fields}
	}
	httputil.Error(ctx, w, status, err.Error(), meta)
}

func badParam(name, msg string) error {
	return &domain.ValidationError{Fields: []domain.FieldViolation{{Field: name, Message: msg}}}
}
