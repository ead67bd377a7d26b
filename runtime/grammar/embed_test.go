package grammar

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// planGrammar is an outer grammar whose "call" symbol accepts arbitrary
// children, with embedding enabled under the EMBED trigger.
func planGrammar(t *testing.T) *Definition {
	t.Helper()
	def, err := NewDefinition("plan").
		Identifier(`^[A-Za-z][A-Za-z0-9_.-]*$`).
		Symbol(SymbolRule{Name: "plan", Kind: SymbolStructural, Slots: []Slot{
			{Name: "steps", Value: ValueNode, Symbols: []string{"call"}, Card: CardOneOrMore},
		}}).
		Symbol(SymbolRule{Name: "call", Slots: []Slot{
			{Name: "action", Value: ValueIdentifier, Card: CardOne},
			{Name: "args", Value: ValueAny, Card: CardZeroOrMore},
		}}).
		Embed(Embedding{Enabled: true, Symbol: "EMBED"}).
		Constrain(Constraint{Kind: ConstraintRoot, Subject: "plan"}).
		Build()
	require.NoError(t, err)
	return def
}

func embedRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry().Register(planGrammar(t), queryGrammar(t)).Build()
	require.NoError(t, err)
	return reg
}

func TestEmbeddingValidPayload(t *testing.T) {
	reg := embedRegistry(t)
	doc := mustParse(t, `(plan (call fetch (EMBED query (Q (S (AS o.id id))))))`)
	require.NoError(t, reg.Validate("plan", doc...))
}

func TestEmbeddingMultiplePayloads(t *testing.T) {
	reg := embedRegistry(t)
	doc := mustParse(t, `(plan (call fetch (EMBED query (Q (S (AS a b))) (Q (S (AS c d))))))`)
	require.NoError(t, reg.Validate("plan", doc...))
}

func TestEmbeddingPayloadFailsUnderInnerGrammar(t *testing.T) {
	reg := embedRegistry(t)
	doc := mustParse(t, `(plan (call fetch (EMBED query (Q (S)))))`)
	err := reg.Validate("plan", doc...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires at least one occurrence")
	// The outer context chain is prefixed onto the inner failure.
	require.Contains(t, err.Error(), "plan > call > EMBED > Q > S")
}

func TestEmbeddingContract(t *testing.T) {
	reg := embedRegistry(t)
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"no arguments", `(plan (call f (EMBED)))`, "EMBED requires at least one argument"},
		{"literal id", `(plan (call f (EMBED "query" (Q))))`, "first argument must be a DSL identifier, got a literal"},
		{"nested id", `(plan (call f (EMBED (Q) (Q))))`, "first argument must be a DSL identifier, got a nested node"},
		{"no payload", `(plan (call f (EMBED query)))`, "EMBED requires at least one payload node"},
		{"unknown id", `(plan (call f (EMBED sql (Q))))`, `unknown DSL "sql"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Validate("plan", mustParse(t, tc.doc)...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEmbeddingWithoutRegistry(t *testing.T) {
	def := planGrammar(t)
	err := def.Validate(mustParse(t, `(plan (call f (EMBED query (Q (S (AS a b))))))`)...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no validator registry configured")
}

func TestEmbeddingSelfRecursionViaAutoRegister(t *testing.T) {
	def, err := NewDefinition("tree").
		Symbol(SymbolRule{Name: "node", Slots: []Slot{
			{Name: "children", Value: ValueAny, Card: CardZeroOrMore},
		}}).
		Embed(Embedding{Enabled: true, Symbol: "SUB", AutoRegister: true}).
		Build()
	require.NoError(t, err)
	require.NoError(t, def.Validate(mustParse(t, `(node (SUB tree (node (SUB tree (node 1)))))`)...))
}

func TestEmbeddingDepthGuard(t *testing.T) {
	reg, err := NewRegistry().Register(planGrammar(t), queryGrammar(t)).MaxDepth(3).Build()
	require.NoError(t, err)

	inner := `(Q (S (AS a b)))`
	nest := func(payload string) string {
		return fmt.Sprintf(`(plan (call f (EMBED plan %s)))`, payload)
	}
	doc := nest(nest(nest(nest(inner))))
	// Depth 4 of plan-in-plan embedding exceeds the configured limit of 3.
	doc = strings.Replace(doc, inner, `(plan (call g))`, 1)
	err = reg.Validate("plan", mustParse(t, doc)...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum embedding depth 3 exceeded")
}

func TestEmbeddingRecursesAcrossThreeLanguages(t *testing.T) {
	// query embeds a third mini-language from inside a plan payload.
	pathDef, err := NewDefinition("path").
		Identifier(`^[a-z/.]+$`).
		Symbol(SymbolRule{Name: "p", Slots: []Slot{
			{Name: "segments", Value: ValueIdentifier, Card: CardOneOrMore},
		}}).
		Build()
	require.NoError(t, err)

	queryDef, err := NewDefinition("query").
		Identifier(`^[A-Za-z][A-Za-z0-9_.]*$`).
		Symbol(SymbolRule{Name: "Q", Slots: []Slot{
			{Name: "source", Value: ValueAny, Card: CardOne},
		}}).
		Embed(Embedding{Enabled: true, Symbol: "EMBED"}).
		Build()
	require.NoError(t, err)

	reg, err := NewRegistry().Register(planGrammar(t), queryDef, pathDef).Build()
	require.NoError(t, err)

	doc := mustParse(t, `(plan (call f (EMBED query (Q (EMBED path (p etc config))))))`)
	require.NoError(t, reg.Validate("plan", doc...))
}
