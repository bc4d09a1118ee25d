package sparql

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/initdaemon/internal/store"
)

// ErrBadResponse — ответ эндпоинта не разобран.
var ErrBadResponse = errors.New("bad sparql response")

// results — тело application/sparql-results+json.
type results struct {
	Boolean *bool `json:"boolean"`
	Results *struct {
		Bindings []map[string]value `json:"bindings"`
	} `json:"results"`
}

type value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
}

func decodeBoolean(body []byte) (bool, error) {
	var r results
	if err := json.Unmarshal(body, &r); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if r.Boolean == nil {
		return false, fmt.Errorf("%w: ASK response has no boolean", ErrBadResponse)
	}
	return *r.Boolean, nil
}

func decodeBindings(body []byte) ([]store.Binding, error) {
	var r results
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if r.Results == nil {
		return nil, fmt.Errorf("%w: SELECT response has no results", ErrBadResponse)
	}

	rows := make([]store.Binding, 0, len(r.Results.Bindings))
	for _, b := range r.Results.Bindings {
		row := make(store.Binding, len(b))
		for name, v := range b {
			t, err := v.term()
			if err != nil {
				return nil, fmt.Errorf("%w: ?%s: %v", ErrBadResponse, name, err)
			}
			row[name] = t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (v value) term() (store.Term, error) {
	switch v.Type {
	case "uri":
		return store.IRI(v.Value), nil
	case "literal", "typed-literal":
		return store.Term{Kind: store.KindLiteral, Value: v.Value, Datatype: v.Datatype}, nil
	case "bnode":
		return store.IRI("_:" + v.Value), nil
	default:
		return store.Term{}, fmt.Errorf("unknown term type %q", v.Type)
	}
}
