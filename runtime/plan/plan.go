// Package plan defines the untyped step representation the resolution
// pipeline consumes. Both input formats reduce to it: the structured JSON
// document a model returns when asked for JSON, and parsed S-expression
// documents. Parameter order is preserved in both cases because resolution
// falls back to positional matching when names do not line up.
package plan

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

type (
	// Param is one named argument of a step. Name may be empty for purely
	// positional values produced by the S-expression bridge.
	Param struct {
		Name  string
		Value any
	}

	// Step is one proposed operation invocation.
	Step struct {
		// ActionID names the catalog operation.
		ActionID string
		// Description is the model's free-text gloss, carried for
		// diagnostics.
		Description string
		// Params holds the supplied arguments in source order.
		Params []Param
	}

	// Plan is an ordered list of steps plus the model's message to the
	// user.
	Plan struct {
		Message string
		Steps   []Step
	}
)

// Get returns the named parameter value, or false.
func (s *Step) Get(name string) (any, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Decode parses the structured document form:
//
//	{"message": "...", "steps": [{"actionId": "...", "description": "...",
//	 "parameters": {...}}]}
//
// Parameter order within each step is preserved.
func Decode(doc []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("invalid plan document: %w", err)
	}
	return &p, nil
}

// UnmarshalJSON decodes a plan object, tolerating unknown keys.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message string            `json:"message"`
		Steps   []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Message = raw.Message
	p.Steps = make([]Step, len(raw.Steps))
	for i, sd := range raw.Steps {
		if err := p.Steps[i].UnmarshalJSON(sd); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// UnmarshalJSON decodes one step with a token walk so the parameters
// object's key order survives.
func (s *Step) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("step must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		switch key {
		case "actionId", "action_id":
			if err := dec.Decode(&s.ActionID); err != nil {
				return fmt.Errorf("actionId: %w", err)
			}
		case "description":
			if err := dec.Decode(&s.Description); err != nil {
				return fmt.Errorf("description: %w", err)
			}
		case "parameters":
			params, err := decodeOrderedParams(dec)
			if err != nil {
				return fmt.Errorf("parameters: %w", err)
			}
			s.Params = params
		default:
			var skip any
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	_, err = dec.Token() // closing brace
	return err
}

func decodeOrderedParams(dec *json.Decoder) ([]Param, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("must be an object")
	}
	var params []Param
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		params = append(params, Param{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return params, nil
}
