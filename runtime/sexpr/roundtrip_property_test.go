package sexpr

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRoundTripProperty verifies that for any well-formed tree, rendering to
// text and re-parsing yields a structurally equivalent tree. Whitespace is
// not preserved; structure and literal values are.
func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(render(tree)) == tree", prop.ForAll(
		func(seed int64) bool {
			tree := buildRandomTree(rand.New(rand.NewSource(seed)), 3)
			reparsed, err := ParseOne(tree.String())
			if err != nil {
				return false
			}
			return cmp.Diff(Node(tree), reparsed,
				cmpopts.IgnoreFields(Literal{}, "Offset"),
				cmpopts.IgnoreFields(Symbol{}, "Offset"),
			) == ""
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// buildRandomTree produces a random Symbol with 1-4 children up to the given
// depth. Leaves mix bare symbols, quoted strings (including delimiter-heavy
// text, which the renderer must re-quote), and bare numbers.
func buildRandomTree(r *rand.Rand, depth int) *Symbol {
	sym := &Symbol{Name: randomName(r)}
	n := 1 + r.Intn(4)
	for i := 0; i < n; i++ {
		if depth > 0 && r.Intn(3) == 0 {
			sym.Children = append(sym.Children, buildRandomTree(r, depth-1))
			continue
		}
		sym.Children = append(sym.Children, randomLeaf(r))
	}
	return sym
}

func randomLeaf(r *rand.Rand) Node {
	switch r.Intn(3) {
	case 0:
		return &Symbol{Name: randomName(r)}
	case 1:
		return &Literal{Text: randomText(r), Quoted: true}
	default:
		return &Literal{Text: strconv.Itoa(r.Intn(20000) - 10000)}
	}
}

func randomName(r *rand.Rand) string {
	const first = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const rest = first + "0123456789_.-"
	n := 1 + r.Intn(8)
	buf := make([]byte, n)
	buf[0] = first[r.Intn(len(first))]
	for i := 1; i < n; i++ {
		buf[i] = rest[r.Intn(len(rest))]
	}
	return string(buf)
}

func randomText(r *rand.Rand) string {
	const alphabet = "abc XYZ()\",\\\n\t09"
	n := r.Intn(12)
	buf := make([]rune, 0, n)
	for i := 0; i < n; i++ {
		buf = append(buf, rune(alphabet[r.Intn(len(alphabet))]))
	}
	return string(buf)
}
