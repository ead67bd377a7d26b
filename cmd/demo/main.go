// Command demo wires a small action catalog, a plan grammar, and handler
// bindings into an engine, then drives a two-turn conversation end to end:
// the first plan is missing a required parameter, the user supplies it, and
// the merged plan executes.
package main

import (
	"context"
	"fmt"
	"strings"

	"goa.design/plankit"
	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/exec"
	"goa.design/plankit/runtime/grammar"
	"goa.design/plankit/runtime/resolve"
)

func main() {
	ctx := context.Background()

	cat, err := catalog.New().Register(catalog.Action{
		ID:          "greet",
		Description: "Print a greeting",
		Params: []catalog.Parameter{
			{Name: "name", Type: catalog.String, Description: "Who to greet"},
			{Name: "times", Type: catalog.Int32, Description: "How many times"},
		},
	}).Build()
	if err != nil {
		panic(err)
	}

	def, err := grammar.NewDefinition("plan").
		Guidance("Emit (plan (step action (param name value)...)).").
		Identifier(`^[a-z][a-z0-9_.]*$`).
		Literal("string", grammar.LiteralRule{AllowEmpty: true}).
		Symbol(grammar.SymbolRule{Name: "plan", Slots: []grammar.Slot{
			{Name: "message", Value: grammar.ValueLiteral, Literal: "string", Card: grammar.CardZeroOrOne},
			{Name: "steps", Value: grammar.ValueNode, Symbols: []string{"step"}, Card: grammar.CardOneOrMore},
		}}).
		Symbol(grammar.SymbolRule{Name: "step", Slots: []grammar.Slot{
			{Name: "action", Value: grammar.ValueIdentifier, Card: grammar.CardOne},
			{Name: "params", Value: grammar.ValueNode, Symbols: []string{"param"}, Card: grammar.CardZeroOrMore},
		}}).
		Symbol(grammar.SymbolRule{Name: "param", Slots: []grammar.Slot{
			{Name: "name", Value: grammar.ValueIdentifier, Card: grammar.CardOne},
			{Name: "value", Value: grammar.ValueAny, Card: grammar.CardOneOrMore},
		}}).
		Constrain(grammar.Constraint{Kind: grammar.ConstraintRoot, Subject: "plan"}).
		Build()
	if err != nil {
		panic(err)
	}
	reg, err := grammar.NewRegistry().Register(def).Build()
	if err != nil {
		panic(err)
	}

	bindings := exec.NewBindings().BindFunc("greet", func(_ context.Context, args []resolve.Argument, _ *exec.Context) (any, error) {
		var name string
		times := 1
		for _, a := range args {
			switch a.Name {
			case "name":
				name = a.Value.(string)
			case "times":
				times = int(a.Value.(int32))
			}
		}
		greeting := strings.TrimRight(strings.Repeat(fmt.Sprintf("hello %s; ", name), times), " ")
		fmt.Println(greeting)
		return greeting, nil
	})

	engine, err := plankit.New(cat,
		plankit.WithGrammar(reg, "plan"),
		plankit.WithExecutor(exec.NewExecutor(bindings)),
	)
	if err != nil {
		panic(err)
	}

	// First turn: the plan omits the required "times" parameter.
	turn, err := engine.StartWithPlan(ctx, "Greet Alice",
		`(plan "Greeting Alice" (step greet (param name "Alice")))`)
	if err != nil {
		panic(err)
	}
	fmt.Println("Status:", turn.Status)
	fmt.Println("Question:", turn.Question)

	// Second turn: answer the pending question and execute.
	turn, err = engine.Continue(ctx, turn.ConversationID, "3")
	if err != nil {
		panic(err)
	}
	fmt.Println("Status:", turn.Status)
	for _, r := range turn.Results {
		fmt.Printf("%s => %v\n", r.ActionID, r.Value)
	}
}
