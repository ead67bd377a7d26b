package catalog

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndLookup(t *testing.T) {
	cat, err := New().Register(
		Action{
			ID:          "greet",
			Description: "Greets a user by name.",
			Params: []Parameter{
				{Name: "name", Description: "who to greet", Type: String},
				{Name: "times", Description: "repetitions", Type: Int32},
			},
		},
		Action{
			ID: "notify",
			Params: []Parameter{
				{Name: "channel", Type: Enum, Enum: []string{"Email", "SMS"}},
				{Name: "session", Type: Custom, CustomType: "session", InjectContext: true},
			},
		},
	).Build()
	require.NoError(t, err)

	a, ok := cat.Lookup("greet")
	require.True(t, ok)
	require.Equal(t, "Greets a user by name.", a.Description)
	require.Len(t, a.Params, 2)
	require.NotNil(t, a.Param("times"))
	require.Nil(t, a.Param("missing"))

	_, ok = cat.Lookup("unknown")
	require.False(t, ok)

	notify, _ := cat.Lookup("notify")
	require.Len(t, notify.Planned(), 1, "injected parameters are not plan-facing")
	require.Equal(t, []ID{"greet", "notify"}, cat.IDs())
	require.Len(t, cat.Actions(), 2)
}

func TestBuildReportsAllProblems(t *testing.T) {
	_, err := New().Register(
		Action{ID: "dup", Params: []Parameter{{Name: "a", Type: String}}},
		Action{ID: "dup"},
		Action{ID: ""},
		Action{ID: "badenum", Params: []Parameter{{Name: "kind", Type: Enum}}},
		Action{ID: "badseq", Params: []Parameter{{Name: "items", Type: Array}}},
		Action{ID: "badcustom", Params: []Parameter{{Name: "q", Type: Custom}}},
		Action{ID: "untyped", Params: []Parameter{{Name: "x"}}},
	).Build()
	require.Error(t, err)
	require.ErrorContains(t, err, `duplicate action id "dup"`)
	require.ErrorContains(t, err, "action with empty id")
	require.ErrorContains(t, err, "enum type requires declared values")
	require.ErrorContains(t, err, "sequence type requires an element type")
	require.ErrorContains(t, err, "custom type requires a hook name")
	require.ErrorContains(t, err, "missing type")
}

func TestSequenceElementValidation(t *testing.T) {
	_, err := New().Register(Action{
		ID: "tag",
		Params: []Parameter{{
			Name: "labels",
			Type: Array,
			Elem: &Parameter{Name: "label", Type: Enum},
		}},
	}).Build()
	require.Error(t, err)
	require.ErrorContains(t, err, "enum type requires declared values")
}

func TestPatternParameter(t *testing.T) {
	cat, err := New().Register(Action{
		ID: "lookup",
		Params: []Parameter{{
			Name:    "code",
			Type:    String,
			Pattern: regexp.MustCompile(`^[A-Z]{3}$`),
		}},
	}).Build()
	require.NoError(t, err)
	a, _ := cat.Lookup("lookup")
	require.True(t, a.Param("code").Pattern.MatchString("ABC"))
}
