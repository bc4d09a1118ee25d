package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Gate
	mux.Handle("GET /canStart", chain(http.HandlerFunc(h.CanStart)))

	// Команды
	mux.Handle("PUT /boot", chain(h.command(h.coordinator.Boot)))
	mux.Handle("PUT /execute", chain(h.command(h.coordinator.Execute)))
	mux.Handle("PUT /ready", chain(h.command(h.coordinator.Ready)))
	mux.Handle("PUT /done", chain(h.command(h.coordinator.Finish)))
	mux.Handle("PUT /finish", chain(h.command(h.coordinator.Finish)))
	mux.Handle("PUT /fail", chain(h.command(h.coordinator.Fail)))

	// Поток изменений графа
	mux.Handle("POST /.mu/delta", chain(http.HandlerFunc(h.Delta)))

	// Шаги и пайплайны
	mux.Handle("GET /steps/{code}", chain(http.HandlerFunc(h.GetStep)))
	mux.Handle("POST /pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
}
