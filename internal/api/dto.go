package api

import (
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/pipeline"
)

// StepResponse — ответ с шагом.
type StepResponse struct {
	IRI      string `json:"iri"`
	Code     string `json:"code"`
	Pipeline string `json:"pipeline"`
	Order    int64  `json:"order"`
	Status   string `json:"status"`

	// CanStart — результат проверки зависимостей; заполняется в GET /steps/{code}.
	CanStart *bool `json:"can_start,omitempty"`
}

// StepFromDomain конвертирует domain.Step в StepResponse.
func StepFromDomain(s domain.Step) StepResponse {
	return StepResponse{
		IRI:      s.IRI,
		Code:     s.Code,
		Pipeline: s.Pipeline,
		Order:    s.Sequence,
		Status:   s.Status.String(),
	}
}

// PipelineResponse — ответ с созданным пайплайном.
type PipelineResponse struct {
	IRI   string         `json:"iri"`
	Steps []StepResponse `json:"steps"`
}

// PipelineFromMaterialized конвертирует записанный пайплайн в PipelineResponse.
func PipelineFromMaterialized(m *pipeline.Materialized) PipelineResponse {
	steps := make([]StepResponse, len(m.Steps))
	for i, s := range m.Steps {
		steps[i] = StepFromDomain(s)
	}
	return PipelineResponse{IRI: m.IRI, Steps: steps}
}

// HealthResultResponse — итог сверки одного шага по health-событию.
type HealthResultResponse struct {
	Outcome string `json:"outcome"`
	Source  string `json:"source"`
	Step    string `json:"step,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// HealthResultFromDomain конвертирует health.Result в HealthResultResponse.
func HealthResultFromDomain(r health.Result) HealthResultResponse {
	return HealthResultResponse{
		Outcome: string(r.Outcome),
		Source:  r.Source,
		Step:    r.Step.Code,
		From:    r.From.String(),
		To:      r.To.String(),
	}
}
