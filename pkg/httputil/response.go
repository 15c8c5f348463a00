// Package httputil общие ответы, request id и логирование для HTTP-слоя.
package httputil

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type envelope map[string]any

func JSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromCtx(ctx).ErrorContext(ctx, "write json response failed", "err", err)
	}
}

// OK успешный ответ с обёрткой {"data": ...}.
func OK(ctx context.Context, w http.ResponseWriter, data any) {
	JSON(ctx, w, http.StatusOK, envelope{"data": data})
}

func Created(ctx context.Context, w http.ResponseWriter, data any) {
	JSON(ctx, w, http.StatusCreated, envelope{"data": data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error унифицированная ошибка {"error": {"message", "meta"}}.
func Error(ctx context.Context, w http.ResponseWriter, status int, msg string, meta map[string]any) {
	body := envelope{"message": msg}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	JSON(ctx, w, status, envelope{"error": body})
}
