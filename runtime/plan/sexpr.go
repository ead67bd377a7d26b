package plan

import (
	"fmt"

	"goa.design/plankit/runtime/sexpr"
)

// FromNodes reduces a validated S-expression document to the internal plan
// representation. The expected shape is
//
//	(plan "message"? (step action-id (param name value...)... )...)
//
// where a step child may also be a bare value, recorded positionally with an
// empty name. Multiple value children of a param become an ordered sequence.
// Validation against the plan grammar happens before this bridge runs, so
// shape violations here indicate a mismatch between grammar and bridge and
// are reported as errors rather than panics.
func FromNodes(nodes []sexpr.Node) (*Plan, error) {
	if len(nodes) != 1 {
		return nil, fmt.Errorf("expected a single plan document, got %d top-level expressions", len(nodes))
	}
	root, ok := nodes[0].(*sexpr.Symbol)
	if !ok || root.Name != "plan" {
		return nil, fmt.Errorf("document root must be (plan ...)")
	}
	p := &Plan{}
	children := root.Children
	if len(children) > 0 {
		if lit, ok := children[0].(*sexpr.Literal); ok {
			p.Message = lit.Text
			children = children[1:]
		}
	}
	for i, c := range children {
		stepSym, ok := c.(*sexpr.Symbol)
		if !ok || stepSym.Name != "step" {
			return nil, fmt.Errorf("plan child %d: expected (step ...)", i)
		}
		step, err := stepFromNode(stepSym)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p.Steps = append(p.Steps, *step)
	}
	return p, nil
}

func stepFromNode(sym *sexpr.Symbol) (*Step, error) {
	if len(sym.Children) == 0 {
		return nil, fmt.Errorf("missing action id")
	}
	id, ok := leafName(sym.Children[0])
	if !ok {
		return nil, fmt.Errorf("action id must be an identifier")
	}
	step := &Step{ActionID: id}
	for _, c := range sym.Children[1:] {
		if ps, ok := c.(*sexpr.Symbol); ok && ps.Name == "param" {
			name, value, err := paramFromNode(ps)
			if err != nil {
				return nil, err
			}
			step.Params = append(step.Params, Param{Name: name, Value: value})
			continue
		}
		// Bare value, positional.
		step.Params = append(step.Params, Param{Value: NodeValue(c)})
	}
	return step, nil
}

func paramFromNode(sym *sexpr.Symbol) (string, any, error) {
	if len(sym.Children) < 2 {
		return "", nil, fmt.Errorf("param requires a name and a value")
	}
	name, ok := leafName(sym.Children[0])
	if !ok {
		return "", nil, fmt.Errorf("param name must be an identifier")
	}
	if len(sym.Children) == 2 {
		return name, NodeValue(sym.Children[1]), nil
	}
	values := make([]any, 0, len(sym.Children)-1)
	for _, c := range sym.Children[1:] {
		values = append(values, NodeValue(c))
	}
	return name, values, nil
}

// NodeValue converts an S-expression node into a raw argument value.
// Literals and childless symbols become their text; symbols with children
// are passed through as nodes so coercion can decompose their argument list.
func NodeValue(n sexpr.Node) any {
	switch v := n.(type) {
	case *sexpr.Literal:
		return v.Text
	case *sexpr.Symbol:
		if len(v.Children) == 0 {
			return v.Name
		}
		return v
	}
	return n
}

func leafName(n sexpr.Node) (string, bool) {
	switch v := n.(type) {
	case *sexpr.Symbol:
		if len(v.Children) == 0 {
			return v.Name, true
		}
	case *sexpr.Literal:
		if !v.Quoted {
			return v.Text, true
		}
	}
	return "", false
}
