package api

import (
	"io"
	"net/http"

	"github.com/shaiso/initdaemon/internal/pipeline"
)

// maxPipelineBody — предел тела определения пайплайна.
const maxPipelineBody = 1 << 20

// CreatePipeline записывает пайплайн из определения YAML или JSON.
// POST /pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPipelineBody))
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	def, err := pipeline.Parse(data)
	if HandleError(w, h.logger, err) {
		return
	}

	m, err := h.coordinator.LoadPipeline(r.Context(), def)
	if HandleError(w, h.logger, err) {
		return
	}

	Created(w, PipelineFromMaterialized(m))
}
