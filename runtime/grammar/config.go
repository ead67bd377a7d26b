package grammar

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	// The meta-schema is validated with the same compiler the rest of the
	// stack uses for payload schemas.
	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed config_schema.json
var configSchemaJSON []byte

// metaSchema is compiled once at package init. The embedded document is part
// of the build, so a compile failure is a programming error.
var metaSchema = mustCompileMetaSchema()

func mustCompileMetaSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(configSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("grammar: decode embedded config schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config_schema.json", doc); err != nil {
		panic(fmt.Sprintf("grammar: add config schema resource: %v", err))
	}
	s, err := c.Compile("config_schema.json")
	if err != nil {
		panic(fmt.Sprintf("grammar: compile config schema: %v", err))
	}
	return s
}

type (
	// config mirrors the YAML grammar configuration document.
	config struct {
		DSL             dslConfig                `yaml:"dsl"`
		Symbols         map[string]symbolConfig  `yaml:"symbols"`
		Literals        map[string]literalConfig `yaml:"literals"`
		Identifier      *identifierConfig        `yaml:"identifier"`
		ReservedSymbols []string                 `yaml:"reserved_symbols"`
		Embedding       *embeddingConfig         `yaml:"embedding"`
		Constraints     []constraintConfig       `yaml:"constraints"`
		Guidance        string                   `yaml:"guidance"`
	}

	dslConfig struct {
		ID          string `yaml:"id"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
	}

	symbolConfig struct {
		Description string             `yaml:"description"`
		Kind        string             `yaml:"kind"`
		Params      []paramConfig      `yaml:"params"`
		Constraints []constraintConfig `yaml:"constraints"`
		Examples    []string           `yaml:"examples"`
	}

	paramConfig struct {
		Name        string   `yaml:"name"`
		Value       string   `yaml:"value"`
		Literal     string   `yaml:"literal"`
		Symbols     []string `yaml:"symbols"`
		Cardinality string   `yaml:"cardinality"`
		Anywhere    bool     `yaml:"anywhere"`
		Pattern     string   `yaml:"pattern"`
	}

	literalConfig struct {
		Pattern    string   `yaml:"pattern"`
		Values     []string `yaml:"values"`
		AllowEmpty bool     `yaml:"allow_empty"`
	}

	identifierConfig struct {
		Pattern string `yaml:"pattern"`
	}

	embeddingConfig struct {
		Enabled      bool   `yaml:"enabled"`
		Symbol       string `yaml:"symbol"`
		AutoRegister bool   `yaml:"auto_register"`
	}

	constraintConfig struct {
		Kind    string `yaml:"kind"`
		Subject string `yaml:"subject"`
		Object  string `yaml:"object"`
	}
)

// Load decodes a YAML grammar configuration document into an immutable
// Definition. The document is first checked against the embedded meta-schema
// so malformed or missing sections fail naming the offending location, then
// shape rules are compiled and cross references verified.
func Load(doc []byte) (*Definition, error) {
	if err := validateConfigShape(doc); err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("decode grammar config: %w", err)
	}
	return cfg.build()
}

// LoadFile reads and loads a grammar configuration document from disk.
func LoadFile(path string) (*Definition, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar config: %w", err)
	}
	def, err := Load(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// validateConfigShape checks the decoded document against the meta-schema.
// YAML is normalized through JSON so the schema engine sees the value kinds
// it expects.
func validateConfigShape(doc []byte) error {
	var generic any
	if err := yaml.Unmarshal(doc, &generic); err != nil {
		return fmt.Errorf("decode grammar config: %w", err)
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("normalize grammar config: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(normalized))
	if err != nil {
		return fmt.Errorf("normalize grammar config: %w", err)
	}
	if err := metaSchema.Validate(inst); err != nil {
		return fmt.Errorf("invalid grammar config: %w", err)
	}
	return nil
}

func (cfg config) build() (*Definition, error) {
	b := NewDefinition(cfg.DSL.ID).
		Describe(cfg.DSL.Description, cfg.DSL.Version).
		Guidance(cfg.Guidance).
		Reserve(cfg.ReservedSymbols...)

	for kind, lc := range cfg.Literals {
		rule := LiteralRule{Values: lc.Values, AllowEmpty: lc.AllowEmpty}
		if lc.Pattern != "" {
			re, err := regexp.Compile(lc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("section literals.%s: %w", kind, err)
			}
			rule.Pattern = re
		}
		b.Literal(LiteralKind(kind), rule)
	}
	if cfg.Identifier != nil {
		if _, err := regexp.Compile(cfg.Identifier.Pattern); err != nil {
			return nil, fmt.Errorf("section identifier: %w", err)
		}
		b.Identifier(cfg.Identifier.Pattern)
	}
	for name, sc := range cfg.Symbols {
		rule, err := sc.buildRule(name)
		if err != nil {
			return nil, err
		}
		b.Symbol(rule)
	}
	if cfg.Embedding != nil {
		b.Embed(Embedding{
			Enabled:      cfg.Embedding.Enabled,
			Symbol:       cfg.Embedding.Symbol,
			AutoRegister: cfg.Embedding.AutoRegister,
		})
		if cfg.Embedding.Enabled {
			b.Reserve(cfg.Embedding.Symbol)
		}
	}
	for i, cc := range cfg.Constraints {
		c, err := cc.buildConstraint()
		if err != nil {
			return nil, fmt.Errorf("section constraints[%d]: %w", i, err)
		}
		b.Constrain(c)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("grammar %q: %w", cfg.DSL.ID, err)
	}
	return def, nil
}

func (sc symbolConfig) buildRule(name string) (SymbolRule, error) {
	kind, err := parseSymbolKind(sc.Kind)
	if err != nil {
		return SymbolRule{}, fmt.Errorf("section symbols.%s: %w", name, err)
	}
	rule := SymbolRule{
		Name:        name,
		Description: sc.Description,
		Kind:        kind,
		Examples:    sc.Examples,
	}
	for i, pc := range sc.Params {
		slot, err := pc.buildSlot()
		if err != nil {
			return SymbolRule{}, fmt.Errorf("section symbols.%s.params[%d]: %w", name, i, err)
		}
		rule.Slots = append(rule.Slots, slot)
	}
	for i, cc := range sc.Constraints {
		c, err := cc.buildConstraint()
		if err != nil {
			return SymbolRule{}, fmt.Errorf("section symbols.%s.constraints[%d]: %w", name, i, err)
		}
		rule.Constraints = append(rule.Constraints, c)
	}
	return rule, nil
}

func (pc paramConfig) buildSlot() (Slot, error) {
	slot := Slot{
		Name:     pc.Name,
		Literal:  LiteralKind(pc.Literal),
		Symbols:  pc.Symbols,
		Anywhere: pc.Anywhere,
	}
	switch pc.Value {
	case "", "any":
		slot.Value = ValueAny
	case "identifier":
		slot.Value = ValueIdentifier
	case "literal":
		slot.Value = ValueLiteral
		if pc.Literal == "" {
			return Slot{}, fmt.Errorf("literal param %q requires a literal kind", pc.Name)
		}
	case "node":
		slot.Value = ValueNode
	default:
		return Slot{}, fmt.Errorf("unknown value kind %q", pc.Value)
	}
	switch pc.Cardinality {
	case "", "one":
		slot.Card = CardOne
	case "zero_or_one":
		slot.Card = CardZeroOrOne
	case "zero_or_more":
		slot.Card = CardZeroOrMore
	case "one_or_more":
		slot.Card = CardOneOrMore
	default:
		return Slot{}, fmt.Errorf("unknown cardinality %q", pc.Cardinality)
	}
	if pc.Pattern != "" {
		re, err := regexp.Compile(pc.Pattern)
		if err != nil {
			return Slot{}, fmt.Errorf("param %q pattern: %w", pc.Name, err)
		}
		slot.Ident = re
	}
	return slot, nil
}

func (cc constraintConfig) buildConstraint() (Constraint, error) {
	c := Constraint{Subject: cc.Subject, Object: cc.Object}
	switch cc.Kind {
	case "root":
		c.Kind = ConstraintRoot
	case "conflicts":
		c.Kind = ConstraintConflicts
	case "requires":
		c.Kind = ConstraintRequires
	default:
		return Constraint{}, fmt.Errorf("unknown constraint kind %q", cc.Kind)
	}
	if c.Kind != ConstraintRoot && c.Object == "" {
		return Constraint{}, fmt.Errorf("constraint %q requires an object symbol", cc.Kind)
	}
	return c, nil
}

func parseSymbolKind(s string) (SymbolKind, error) {
	switch s {
	case "", "structural":
		return SymbolStructural, nil
	case "operator":
		return SymbolOperator, nil
	case "literal":
		return SymbolLiteralLike, nil
	case "special":
		return SymbolSpecial, nil
	default:
		return 0, fmt.Errorf("unknown symbol kind %q", s)
	}
}
