package filter

import (
	"fmt"
	"slices"
	"strconv"
)

// OptionKind identifies which variant an Option holds.
type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionStringList
	OptionFlag
)

func (k OptionKind) String() string {
	switch k {
	case OptionString:
		return "string"
	case OptionStringList:
		return "string list"
	case OptionFlag:
		return "flag"
	default:
		return "unknown"
	}
}

// Option is an immutable tagged value passed to a filter invocation.
// The zero value holds no variant and matches none of the accessors.
type Option struct {
	kind OptionKind
	str  string
	list []string
	flag bool
}

// String returns a single-string option.
func String(s string) Option { return Option{kind: OptionString, str: s} }

// StringList returns an ordered string-list option. The values are copied.
func StringList(values ...string) Option {
	return Option{kind: OptionStringList, list: slices.Clone(values)}
}

// Flag returns a boolean flag option.
func Flag(b bool) Option { return Option{kind: OptionFlag, flag: b} }

// Kind reports the stored variant.
func (o Option) Kind() OptionKind { return o.kind }

// AsString returns the value when the option is a single string.
func (o Option) AsString() (string, bool) {
	if o.kind != OptionString {
		return "", false
	}
	return o.str, true
}

// AsStringList returns a copy of the values when the option is a string list.
func (o Option) AsStringList() ([]string, bool) {
	if o.kind != OptionStringList {
		return nil, false
	}
	return slices.Clone(o.list), true
}

// AsFlag returns the value when the option is a boolean flag.
func (o Option) AsFlag() (bool, bool) {
	if o.kind != OptionFlag {
		return false, false
	}
	return o.flag, true
}

// Value returns the option as a plain Go value (string, []string or bool),
// used for fingerprinting and serialization.
func (o Option) Value() any {
	switch o.kind {
	case OptionString:
		return o.str
	case OptionStringList:
		return slices.Clone(o.list)
	case OptionFlag:
		return o.flag
	default:
		return nil
	}
}

// ParseOption converts a decoded manifest value into an Option.
// Booleans become flags, scalars become strings and lists of scalars become
// string lists.
func ParseOption(v any) (Option, error) {
	switch val := v.(type) {
	case bool:
		return Flag(val), nil
	case string:
		return String(val), nil
	case []string:
		return StringList(val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := scalarString(item)
			if !ok {
				return Option{}, fmt.Errorf("list element %d: unsupported option value of type %T", i, item)
			}
			out = append(out, s)
		}
		return StringList(out...), nil
	default:
		if s, ok := scalarString(v); ok {
			return String(s), nil
		}
		return Option{}, fmt.Errorf("unsupported option value of type %T", v)
	}
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// Options maps option names to values for a single filter invocation.
type Options map[string]Option

// ParseOptions converts a decoded manifest option map.
func ParseOptions(raw map[string]any) (Options, error) {
	opts := make(Options, len(raw))
	for name, v := range raw {
		opt, err := ParseOption(v)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", name, err)
		}
		opts[name] = opt
	}
	return opts, nil
}

// Values returns the options as plain Go values keyed by name.
func (o Options) Values() map[string]any {
	out := make(map[string]any, len(o))
	for name, opt := range o {
		out[name] = opt.Value()
	}
	return out
}

// expect is the single place option variants are checked against what a
// filter wants.
func expect(name string, opt Option, want OptionKind) error {
	if opt.kind == want {
		return nil
	}
	return &Error{
		Kind:   KindInvalidOptionType,
		Option: name,
		Err:    fmt.Errorf("expected %s, got %s", want, opt.kind),
	}
}

// RequireString returns a mandatory string option.
func (o Options) RequireString(name string) (string, error) {
	opt, ok := o[name]
	if !ok {
		return "", &Error{Kind: KindRequiredOptionMissing, Option: name}
	}
	if err := expect(name, opt, OptionString); err != nil {
		return "", err
	}
	return opt.str, nil
}

// OptionalString returns a string option and whether it was present.
func (o Options) OptionalString(name string) (string, bool, error) {
	opt, ok := o[name]
	if !ok {
		return "", false, nil
	}
	if err := expect(name, opt, OptionString); err != nil {
		return "", false, err
	}
	return opt.str, true, nil
}

// OptionalStringList returns a string-list option; absent yields nil.
func (o Options) OptionalStringList(name string) ([]string, error) {
	opt, ok := o[name]
	if !ok {
		return nil, nil
	}
	if err := expect(name, opt, OptionStringList); err != nil {
		return nil, err
	}
	return slices.Clone(opt.list), nil
}

// Flag returns a boolean flag option. An absent flag is false.
func (o Options) Flag(name string) (bool, error) {
	opt, ok := o[name]
	if !ok {
		return false, nil
	}
	if err := expect(name, opt, OptionFlag); err != nil {
		return false, err
	}
	return opt.flag, nil
}
