package pipeline

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition — определение пайплайна.
type Definition struct {
	// Name — имя пайплайна; входит в IRI, если задано.
	Name string `yaml:"name" json:"name"`

	// Title — человекочитаемое название.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`

	// Steps — шаги в произвольном порядке; порядок задаёт Order.
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// StepDefinition — шаг в определении.
type StepDefinition struct {
	Code  string `yaml:"code" json:"code"`
	Order int64  `yaml:"order" json:"order"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Parse разбирает определение в YAML или JSON (JSON — подмножество YAML).
// Неизвестные поля — ошибка.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &def, nil
}
