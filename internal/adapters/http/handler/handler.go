package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/masters-service/internal/adapters/http/middleware"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	"github.com/ogurasousui/masters-service/internal/core/scope"
)

var (
	errMalformedBody   = errors.New("handler: malformed request body")
	errInvalidQuery    = errors.New("handler: invalid query parameter")
	errMissingIdentity = errors.New("handler: missing identity")
)

// Handler は HTTP リクエストをユースケースへ橋渡しします。
type Handler struct {
	masters   master.UseCase
	schedules schedule.UseCase
	handovers handover.UseCase
	logger    *slog.Logger
}

// New は Handler を生成します。
func New(masters master.UseCase, schedules schedule.UseCase, handovers handover.UseCase, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{masters: masters, schedules: schedules, handovers: handovers, logger: logger}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (scope.Identity, bool) {
	id, ok := scope.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, r, errMissingIdentity)
		return scope.Identity{}, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusGatewayTimeout:
		h.logger.ErrorContext(r.Context(), "storage timeout",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", msg),
		)
		msg = "storage timeout"
	case status >= http.StatusInternalServerError:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", msg),
		)
		msg = "internal server error"
	}
	respond.Error(w, status, msg)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func optionalQuery(r *http.Request, key string) *string {
	if !r.URL.Query().Has(key) {
		return nil
	}
	v := r.URL.Query().Get(key)
	return &v
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errInvalidQuery, key)
	}
	return n, nil
}

func dateQuery(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := schedule.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func fmtMalformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errMalformedBody, fmt.Sprintf(format, args...))
}
