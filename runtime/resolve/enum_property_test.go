package resolve

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"goa.design/plankit/runtime/catalog"
)

// TestEnumCoercionProperty verifies that any casing of a declared constant
// coerces to the canonical spelling, and that any other string fails with a
// message listing every allowed value.
func TestEnumCoercionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	constants := []string{"North", "South", "East", "West"}
	param := catalog.Parameter{Name: "direction", Type: catalog.Enum, Enum: constants}
	coercer := NewCoercer(nil)

	properties.Property("any casing of a constant canonicalizes", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			want := constants[r.Intn(len(constants))]
			got, err := coercer.Coerce(scramble(r, want), &param, nil)
			return err == nil && got == want
		},
		gen.Int64(),
	))

	properties.Property("non-constants fail listing all allowed values", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			input := randomWord(r)
			for _, c := range constants {
				if strings.EqualFold(c, input) {
					return true // skip accidental hits
				}
			}
			_, err := coercer.Coerce(input, &param, nil)
			if err == nil {
				return false
			}
			for _, c := range constants {
				if !strings.Contains(err.Error(), c) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func scramble(r *rand.Rand, s string) string {
	var b strings.Builder
	for _, c := range s {
		if r.Intn(2) == 0 {
			b.WriteString(strings.ToUpper(string(c)))
		} else {
			b.WriteString(strings.ToLower(string(c)))
		}
	}
	return b.String()
}

func randomWord(r *rand.Rand) string {
	n := 1 + r.Intn(8)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + r.Intn(26)))
	}
	return b.String()
}
