package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Unknown-kind handling modes.
const (
	UnknownReject = "reject"
	UnknownWarn   = "warn"
)

// ReferenceRequirement constrains the references an intention of a given
// kind must carry.
type ReferenceRequirement struct {
	// Min is the minimum number of references. Zero means no minimum.
	Min int `yaml:"min"`
	// EventTypes, when non-empty, requires every referenced event to be of
	// one of the listed types. Checking it needs access to the event log.
	EventTypes []string `yaml:"event_types"`
}

// RequireBlock lists the positive obligations for a kind.
type RequireBlock struct {
	// Fields are dotted paths into the intention document that must resolve
	// to a non-empty value, e.g. "payload.text".
	Fields []string `yaml:"fields"`

	References *ReferenceRequirement `yaml:"references"`
}

// RuleSet is the full rule block for one act kind.
type RuleSet struct {
	Require *RequireBlock `yaml:"require"`
	// Forbid holds boolean expressions; any expression evaluating true
	// suppresses the intention.
	Forbid []string `yaml:"forbid"`
}

// Config is a parsed policy file.
type Config struct {
	// Kinds maps act kinds to their rule sets.
	Kinds map[string]RuleSet `yaml:"kinds"`

	// Consts are named scalar constants visible to forbid expressions.
	Consts map[string]float64 `yaml:"consts"`

	// UnknownKinds selects how intentions of kinds absent from Kinds are
	// handled: UnknownReject suppresses them, UnknownWarn admits them with
	// a warning violation. Defaults to UnknownWarn.
	UnknownKinds string `yaml:"unknown_kinds"`
}

// LoadOptions configures Load.
type LoadOptions struct {
	// AllowEmpty permits a policy file with no kind rules. By default an
	// empty policy is a fatal configuration error, since it would silently
	// admit everything.
	AllowEmpty bool
}

// Load reads and validates a policy file.
func Load(path string, optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := cfg.validate(opts.AllowEmpty); err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate(allowEmpty bool) error {
	if len(c.Kinds) == 0 && !allowEmpty {
		return fmt.Errorf("no kind rules defined")
	}
	switch c.UnknownKinds {
	case "":
		c.UnknownKinds = UnknownWarn
	case UnknownReject, UnknownWarn:
	default:
		return fmt.Errorf("unknown_kinds must be %q or %q, got %q", UnknownReject, UnknownWarn, c.UnknownKinds)
	}
	for kind, rs := range c.Kinds {
		if rs.Require != nil && rs.Require.References != nil && rs.Require.References.Min < 0 {
			return fmt.Errorf("kind %s: references.min must be >= 0", kind)
		}
		for i, expr := range rs.Forbid {
			if expr == "" {
				return fmt.Errorf("kind %s: forbid[%d] is empty", kind, i)
			}
		}
	}
	return nil
}
