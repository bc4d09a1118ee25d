package domain

import (
	"strings"
	"time"
)

// StepRef — ссылка на шаг в графе.
type StepRef struct {
	// IRI — идентификатор шага в графе.
	IRI string `json:"iri"`

	// Code — человекочитаемый код шага в нижнем регистре.
	Code string `json:"code"`
}

// StepOrder — положение шага в пайплайне.
type StepOrder struct {
	// Pipeline — IRI пайплайна, которому принадлежит шаг.
	Pipeline string `json:"pipeline"`

	// Sequence — порядковый номер шага; определяет полный порядок внутри пайплайна.
	Sequence int64 `json:"sequence"`
}

// Step — шаг вместе с порядком и текущим статусом.
type Step struct {
	StepRef
	StepOrder

	// Status — текущий статус.
	Status StepStatus `json:"status"`
}

// NormalizeCode приводит код шага к виду, в котором он хранится в графе.
// Коды сравниваются без учёта регистра.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// StatusChange — смена статуса шага командой.
type StatusChange struct {
	Step StepRef    `json:"step"`
	From StepStatus `json:"from"`
	To   StepStatus `json:"to"`
	At   time.Time  `json:"at"`
}
