package api

import (
	"context"
	"net/http"
	"strconv"
)

// CanStart отвечает "true" или "false": может ли шаг стартовать.
// GET /canStart?step=<code>
func (h *Handler) CanStart(w http.ResponseWriter, r *http.Request) {
	ok, err := h.coordinator.CanStart(r.Context(), r.URL.Query().Get("step"))
	if HandleError(w, h.logger, err) {
		return
	}

	Text(w, http.StatusOK, strconv.FormatBool(ok))
}

// command возвращает обработчик команды смены статуса.
// PUT /<command>?step=<code> → 204
func (h *Handler) command(run func(ctx context.Context, code string) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if HandleError(w, h.logger, run(r.Context(), r.URL.Query().Get("step"))) {
			return
		}
		NoContent(w)
	})
}

// GetStep возвращает шаг с порядком, статусом и результатом проверки
// зависимостей.
// GET /steps/{code}
func (h *Handler) GetStep(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	step, err := h.coordinator.Describe(r.Context(), code)
	if HandleError(w, h.logger, err) {
		return
	}

	ok, err := h.coordinator.CanStart(r.Context(), code)
	if HandleError(w, h.logger, err) {
		return
	}

	resp := StepFromDomain(step)
	resp.CanStart = &ok
	Success(w, resp)
}
