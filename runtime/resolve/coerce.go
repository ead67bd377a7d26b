package resolve

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/sexpr"
)

type (
	// Context carries ambient resolution state handed to custom type hooks,
	// such as a schema catalog for a query parameter type. Values are
	// keyed by hook-defined names.
	Context struct {
		Values map[string]any
	}

	// Hook converts a raw value into a custom target type. Failures are
	// wrapped with the owning parameter's name and reported as ordinary
	// resolution errors.
	Hook func(raw any, ctx *Context) (any, error)

	// Coercer converts untyped argument values into the exact types
	// parameter descriptors declare. It is immutable and safe for
	// concurrent use.
	Coercer struct {
		hooks map[string]Hook
	}
)

// Value returns the named ambient value, or nil when the context or key is
// absent.
func (c *Context) Value(key string) any {
	if c == nil || c.Values == nil {
		return nil
	}
	return c.Values[key]
}

// NewCoercer returns a coercer with the given custom type hooks, keyed by
// the CustomType name parameter descriptors reference.
func NewCoercer(hooks map[string]Hook) *Coercer {
	copied := make(map[string]Hook, len(hooks))
	for k, v := range hooks {
		copied[k] = v
	}
	return &Coercer{hooks: copied}
}

// Coerce converts raw into the type p declares and applies p's allowed-value
// and pattern constraints to the result. The ambient context is passed
// through to custom hooks untouched.
func (c *Coercer) Coerce(raw any, p *catalog.Parameter, rctx *Context) (any, error) {
	v, err := c.coerce(raw, p, rctx)
	if err != nil {
		return nil, err
	}
	if err := checkConstraints(v, p); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Coercer) coerce(raw any, p *catalog.Parameter, rctx *Context) (any, error) {
	switch p.Type {
	case catalog.Array, catalog.Collection:
		return c.coerceSequence(raw, p, rctx)
	case catalog.Custom:
		hook, ok := c.hooks[p.CustomType]
		if !ok {
			return nil, conversionErrorf(p.Name, nil, "no resolver registered for custom type %q", p.CustomType)
		}
		v, err := hook(raw, rctx)
		if err != nil {
			return nil, conversionErrorf(p.Name, err, "%s", err.Error())
		}
		return v, nil
	}

	// Exact target type short-circuits the scalar machinery.
	if matchesTarget(raw, p.Type) {
		return raw, nil
	}

	// JSON auto-detection: a string shaped like an object or array is
	// parsed and the parsed structure coerced instead. A string that fails
	// to parse stays a string.
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				raw = parsed
			}
		}
	}

	switch p.Type {
	case catalog.String:
		return coerceString(raw, p)
	case catalog.Enum:
		return coerceEnum(raw, p)
	case catalog.Int32, catalog.Int64:
		return coerceInt(raw, p)
	case catalog.Float32, catalog.Float64:
		return coerceFloat(raw, p)
	case catalog.Bool:
		return coerceBool(raw, p)
	case catalog.Object:
		return c.coerceObject(raw, p, rctx)
	}
	return nil, conversionErrorf(p.Name, nil, "unsupported target type %q", p.Type)
}

// coerceSequence decomposes raw into an ordered element sequence and coerces
// each element to the declared component type, stopping at the first
// failure.
func (c *Coercer) coerceSequence(raw any, p *catalog.Parameter, rctx *Context) (any, error) {
	elems := decompose(raw)
	out := make([]any, 0, len(elems))
	for i, e := range elems {
		v, err := c.coerce(e, p.Elem, rctx)
		if err != nil {
			return nil, conversionErrorf(p.Name, err, "element %d: %s", i, err.Error())
		}
		if err := checkConstraints(v, p.Elem); err != nil {
			return nil, conversionErrorf(p.Name, err, "element %d: %s", i, err.Error())
		}
		out = append(out, v)
	}
	return out, nil
}

// decompose turns raw into an ordered element list: native sequences
// element-wise, a symbol node's argument list, anything else as a
// one-element sequence.
func decompose(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case *sexpr.Symbol:
		out := make([]any, 0, len(v.Children))
		for _, child := range v.Children {
			out = append(out, nodeValue(child))
		}
		return out
	case nil:
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{raw}
}

// nodeValue mirrors the plan bridge's value conversion: leaves become text,
// nested nodes stay nodes.
func nodeValue(n sexpr.Node) any {
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

func (c *Coercer) coerceObject(raw any, p *catalog.Parameter, rctx *Context) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &PartialDataError{Param: p.Name, Message: fmt.Sprintf("expected a nested structure, got %s", describe(raw))}
	}
	if len(p.Fields) == 0 {
		return m, nil
	}
	out := make(map[string]any, len(p.Fields))
	for i := range p.Fields {
		f := &p.Fields[i]
		fv, present := m[f.Name]
		if !present {
			return nil, conversionErrorf(p.Name, nil, "missing field %q", f.Name)
		}
		coerced, err := c.coerce(fv, f, rctx)
		if err != nil {
			return nil, conversionErrorf(p.Name, err, "field %q: %s", f.Name, err.Error())
		}
		out[f.Name] = coerced
	}
	return out, nil
}

func coerceString(raw any, p *catalog.Parameter) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	}
	return nil, failedConvert(p, raw, "string", nil)
}

func coerceEnum(raw any, p *catalog.Parameter) (any, error) {
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}
	for _, constant := range p.Enum {
		if strings.EqualFold(constant, s) {
			return constant, nil
		}
	}
	return nil, conversionErrorf(p.Name, nil, "invalid value %q: must be one of %s", s, strings.Join(p.Enum, ", "))
}

func coerceInt(raw any, p *catalog.Parameter) (any, error) {
	bits := 64
	if p.Type == catalog.Int32 {
		bits = 32
	}
	var (
		n   int64
		err error
	)
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != float64(int64(v)) {
			return nil, failedConvert(p, raw, string(p.Type), fmt.Errorf("value %v is not an integer", v))
		}
		n = int64(v)
	case json.Number:
		n, err = v.Int64()
	case string:
		n, err = strconv.ParseInt(strings.TrimSpace(v), 10, bits)
	default:
		return nil, failedConvert(p, raw, string(p.Type), nil)
	}
	if err != nil {
		return nil, failedConvert(p, raw, string(p.Type), err)
	}
	if bits == 32 {
		if n > 1<<31-1 || n < -(1<<31) {
			return nil, failedConvert(p, raw, string(p.Type), fmt.Errorf("value out of range"))
		}
		return int32(n), nil
	}
	return n, nil
}

func coerceFloat(raw any, p *catalog.Parameter) (any, error) {
	bits := 64
	if p.Type == catalog.Float32 {
		bits = 32
	}
	var (
		f   float64
		err error
	)
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), bits)
	default:
		return nil, failedConvert(p, raw, string(p.Type), nil)
	}
	if err != nil {
		return nil, failedConvert(p, raw, string(p.Type), err)
	}
	if bits == 32 {
		return float32(f), nil
	}
	return f, nil
}

func coerceBool(raw any, p *catalog.Parameter) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		if err != nil {
			return nil, failedConvert(p, raw, "bool", err)
		}
		return b, nil
	}
	return nil, failedConvert(p, raw, "bool", nil)
}

// matchesTarget reports whether raw already has the exact declared type.
func matchesTarget(raw any, t catalog.Type) bool {
	switch t {
	case catalog.String:
		_, ok := raw.(string)
		return ok
	case catalog.Int32:
		_, ok := raw.(int32)
		return ok
	case catalog.Int64:
		_, ok := raw.(int64)
		return ok
	case catalog.Float64:
		_, ok := raw.(float64)
		return ok
	case catalog.Float32:
		_, ok := raw.(float32)
		return ok
	case catalog.Bool:
		_, ok := raw.(bool)
		return ok
	}
	return false
}

// checkConstraints applies the allowed-value set and validation pattern to
// the coerced value's string form.
func checkConstraints(v any, p *catalog.Parameter) error {
	if len(p.Allowed) == 0 && p.Pattern == nil {
		return nil
	}
	s := fmt.Sprint(v)
	if len(p.Allowed) > 0 {
		ok := false
		for _, a := range p.Allowed {
			if a == s || (!p.CaseSensitive && strings.EqualFold(a, s)) {
				ok = true
				break
			}
		}
		if !ok {
			return &ConstraintError{Param: p.Name, Message: fmt.Sprintf("value %q is not allowed (allowed: %s)", s, strings.Join(p.Allowed, ", "))}
		}
	}
	if p.Pattern != nil && !p.Pattern.MatchString(s) {
		return &ConstraintError{Param: p.Name, Message: fmt.Sprintf("value %q does not match pattern %s", s, p.Pattern.String())}
	}
	return nil
}

func failedConvert(p *catalog.Parameter, raw any, target string, cause error) *ConversionError {
	msg := fmt.Sprintf("Failed to convert value %q to %s", fmt.Sprint(raw), target)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &ConversionError{Param: p.Name, Message: msg, Cause: cause}
}

func describe(raw any) string {
	switch raw.(type) {
	case nil:
		return "nothing"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "a number"
	case []any:
		return "a list"
	case *sexpr.Symbol, *sexpr.Literal:
		return "an expression"
	}
	return fmt.Sprintf("%T", raw)
}
