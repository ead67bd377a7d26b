package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/sexpr"
)

func TestDecodePreservesParameterOrder(t *testing.T) {
	doc := []byte(`{
		"message": "Booking your trip",
		"steps": [
			{
				"actionId": "book_flight",
				"description": "Book the outbound leg",
				"parameters": {"origin": "SFO", "destination": "JFK", "seats": 2}
			},
			{
				"actionId": "notify",
				"parameters": {"channel": "email", "extra": {"cc": ["ops"]}}
			}
		]
	}`)
	p, err := Decode(doc)
	require.NoError(t, err)
	require.Equal(t, "Booking your trip", p.Message)
	require.Len(t, p.Steps, 2)

	first := p.Steps[0]
	require.Equal(t, "book_flight", first.ActionID)
	require.Equal(t, "Book the outbound leg", first.Description)
	names := make([]string, len(first.Params))
	for i, prm := range first.Params {
		names[i] = prm.Name
	}
	require.Equal(t, []string{"origin", "destination", "seats"}, names)

	seats, ok := first.Get("seats")
	require.True(t, ok)
	require.EqualValues(t, 2, seats)

	extra, ok := p.Steps[1].Get("extra")
	require.True(t, ok)
	require.IsType(t, map[string]any{}, extra)
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"steps": [`,
		"step not object": `{"steps": ["call"]}`,
		"params scalar":   `{"steps": [{"actionId": "a", "parameters": 3}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			require.ErrorContains(t, err, "invalid plan document")
		})
	}
}

func TestDecodeSnakeCaseActionID(t *testing.T) {
	p, err := Decode([]byte(`{"steps": [{"action_id": "greet", "parameters": {"name": "Bob"}}]}`))
	require.NoError(t, err)
	require.Equal(t, "greet", p.Steps[0].ActionID)
}

func TestFromNodes(t *testing.T) {
	nodes, err := sexpr.Parse(`(plan "greeting people"
		(step greet (param name "Bob") (param times 3))
		(step notify (param tags a b c) "positional"))`)
	require.NoError(t, err)

	p, err := FromNodes(nodes)
	require.NoError(t, err)
	require.Equal(t, "greeting people", p.Message)
	require.Len(t, p.Steps, 2)

	greet := p.Steps[0]
	require.Equal(t, "greet", greet.ActionID)
	name, ok := greet.Get("name")
	require.True(t, ok)
	require.Equal(t, "Bob", name)
	times, _ := greet.Get("times")
	require.Equal(t, "3", times)

	tags, _ := p.Steps[1].Get("tags")
	require.Equal(t, []any{"a", "b", "c"}, tags)
	require.Equal(t, "", p.Steps[1].Params[1].Name)
	require.Equal(t, "positional", p.Steps[1].Params[1].Value)
}

func TestFromNodesShapeErrors(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		message string
	}{
		{"wrong root", `(steps)`, "document root must be (plan ...)"},
		{"step without id", `(plan (step))`, "missing action id"},
		{"param without value", `(plan (step a (param only)))`, "param requires a name and a value"},
		{"non-step child", `(plan (other))`, "expected (step ...)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nodes, err := sexpr.Parse(tc.input)
			require.NoError(t, err)
			_, err = FromNodes(nodes)
			require.Error(t, err)
			require.ErrorContains(t, err, tc.message)
		})
	}
}

func TestNodeValuePassesNestedNodes(t *testing.T) {
	nodes, err := sexpr.Parse(`(plan (step run (param query (Q (S (AS id id))))))`)
	require.NoError(t, err)
	p, err := FromNodes(nodes)
	require.NoError(t, err)
	q, ok := p.Steps[0].Get("query")
	require.True(t, ok)
	sym, ok := q.(*sexpr.Symbol)
	require.True(t, ok)
	require.Equal(t, "Q", sym.Name)
}
