package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/telemetry"
)

// maxDeltaBody — предел тела уведомления.
const maxDeltaBody = 16 << 20

// Delta принимает уведомление delta-notifier об изменениях графа.
// POST /.mu/delta → 204
//
// Некорректные факты пачки — 400 после обработки остальных фактов.
// Ошибка хранилища — 500.
func (h *Handler) Delta(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDeltaBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "delta body is too large")
			return
		}
		BadRequest(w, "cannot read request body")
		return
	}

	results, err := h.coordinator.IngestDelta(r.Context(), body)
	telemetry.DeltaBatches.WithLabelValues("http", deltaResult(err)).Inc()
	if HandleError(w, h.logger, err) {
		return
	}

	if len(results) > 0 {
		h.logger.Debug("delta processed", "results", len(results))
	}
	NoContent(w)
}

func deltaResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, health.ErrMalformedEvent):
		return "malformed"
	default:
		return "error"
	}
}
