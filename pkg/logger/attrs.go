package logger

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// ensureInstanceID POD_NAME в кластере, иначе hostname с коротким суффиксом.
func ensureInstanceID(v string) string {
	switch {
	case v != "":
		return v
	case os.Getenv("POD_NAME") != "":
		return os.Getenv("POD_NAME")
	}
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "unknown"
	}
	return hn + "-" + uuid.NewString()[:8]
}

func commonAttr(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Group("runtime",
			slog.String("go", runtime.Version()),
			slog.Int("pid", os.Getpid()),
		),
		slog.Time("started_at", time.Now().UTC()),
	}
}
