package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/usecase"
)

const (
	// IdempotencyKeyHeader carries the client's idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader is set on responses served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	inFlightMarker       = "processing"
	maxIdempotentBodyLen = 1 << 20
)

// storedResponse is what the store holds for a completed request.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the stored response of a repeated mutating
// request instead of executing it again. Keys are scoped by method and path.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware returns the middleware. A zero ttl means
// usecase.IdempotencyKeyTTL.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" || !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		key = r.Method + ":" + r.URL.Path + ":" + key

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyLen+1))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body", "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		requestHash := fingerprint(body)

		exists, held, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("idempotency check failed")
			writeError(w, r, http.StatusInternalServerError, "internal server error", "idempotency check failed")
			return
		}

		// A key still holding the marker belongs to a request that failed or
		// is running; let this one through.
		if exists && len(held) > 0 && string(held) != inFlightMarker {
			var stored storedResponse
			if err := json.Unmarshal(held, &stored); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("discarding unreadable idempotent response")
			} else if stored.RequestHash != requestHash {
				writeError(w, r, http.StatusUnprocessableEntity, "idempotency key conflict", "key was used with a different request body")
				return
			} else {
				replay(w, stored)
				return
			}
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.statusCode < 200 || rec.statusCode >= 300 {
			return
		}
		payload, err := json.Marshal(storedResponse{
			Status:      rec.statusCode,
			ContentType: rec.Header().Get("Content-Type"),
			RequestHash: requestHash,
			Body:        rec.body.Bytes(),
		})
		if err == nil {
			err = m.store.Update(r.Context(), key, payload, m.ttl)
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to store idempotent response")
		}
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replay(w http.ResponseWriter, stored storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
