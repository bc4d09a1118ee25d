package api

import (
	"log/slog"

	"github.com/shaiso/initdaemon/internal/coordinator"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Coordinator *coordinator.Coordinator
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coordinator: cfg.Coordinator,
		logger:      logger,
	}
}
