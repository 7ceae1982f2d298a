package events

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rickgao/jobportal-notify/internal/auth"
)

const maxEventBody = 64 << 10

// PublishHandler accepts events over HTTP for services that do not use the
// broker. The routing key comes from the {key} path value and defaults to
// notification.created. Requests must carry token as a bearer token.
func PublishHandler(handler HandlerFunc, token string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		got := auth.ExtractBearer(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		key := r.PathValue("key")
		if key == "" {
			key = KeyNotificationCreated
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody+1))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if len(body) > maxEventBody {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}

		frame, err := handler(r.Context(), key, body)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case errors.Is(err, ErrInvalidEvent):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			logger.Error("publish event failed", "routing_key", key, "error", err)
			http.Error(w, "publish failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(frame)
	})
}
