package grammar

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"goa.design/plankit/runtime/sexpr"
)

// TestSlotSatisfactionProperty verifies that for any generated rule whose
// positional slots are each satisfied by exactly one matching child the
// document validates, and that dropping the final required slot's child
// fails with a message naming that slot.
func TestSlotSatisfactionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("satisfied slots validate; missing required child names the slot", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			def, children, requiredSlot := randomRule(r)

			full := &sexpr.Symbol{Name: "root", Children: children}
			if err := def.Validate(full); err != nil {
				return false
			}
			// Drop the final slot's child and expect a failure that names
			// the slot.
			pruned := &sexpr.Symbol{Name: "root", Children: children[:len(children)-1]}
			err := def.Validate(pruned)
			if err == nil {
				return false
			}
			se, ok := err.(*SchemaError)
			return ok && strings.Contains(se.Message, fmt.Sprintf("%q", requiredSlot))
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// randomRule builds a definition with a "root" symbol holding 1-4 positional
// required slots of mixed value kinds, along with one matching child per
// slot. The final slot's name is returned; pruning the last child leaves it
// unsatisfied.
func randomRule(r *rand.Rand) (*Definition, []sexpr.Node, string) {
	b := NewDefinition("prop").
		Identifier(`^[a-z][a-z0-9]*$`).
		Literal("string", LiteralRule{}).
		Literal("number", LiteralRule{Pattern: regexp.MustCompile(`^-?[0-9]+$`)}).
		Symbol(SymbolRule{Name: "leaf", Slots: []Slot{
			{Name: "v", Value: ValueAny, Card: CardZeroOrOne},
		}})

	var (
		slots    []Slot
		children []sexpr.Node
	)
	n := 1 + r.Intn(4)
	for i := 0; i < n; i++ {
		slot, child := randomSlot(r, fmt.Sprintf("p%d", i))
		if i == n-1 && r.Intn(2) == 0 {
			slot.Card = CardOneOrMore
		}
		slots = append(slots, slot)
		children = append(children, child)
	}

	b.Symbol(SymbolRule{Name: "root", Slots: slots})
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def, children, slots[len(slots)-1].Name
}

// randomSlot returns a required positional slot plus a child that satisfies
// it.
func randomSlot(r *rand.Rand, name string) (Slot, sexpr.Node) {
	slot := Slot{Name: name, Card: CardOne}
	switch r.Intn(4) {
	case 0:
		slot.Value = ValueIdentifier
		return slot, &sexpr.Symbol{Name: fmt.Sprintf("id%d", r.Intn(100))}
	case 1:
		slot.Value = ValueLiteral
		slot.Literal = "number"
		return slot, &sexpr.Literal{Text: fmt.Sprintf("%d", r.Intn(1000))}
	case 2:
		slot.Value = ValueNode
		slot.Symbols = []string{"leaf"}
		return slot, &sexpr.Symbol{Name: "leaf", Children: []sexpr.Node{
			&sexpr.Literal{Text: "x", Quoted: true},
		}}
	default:
		slot.Value = ValueLiteral
		slot.Literal = "string"
		return slot, &sexpr.Literal{Text: fmt.Sprintf("s%d", r.Intn(1000)), Quoted: true}
	}
}
