package evmtypes

// ValueKind is the closed set of shapes a decoded argument value can take.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindAddress
	KindBytes
	KindList
	KindRecord
	KindInnerCall
)

// Value is a recursive tagged union covering every shape a decoded ABI
// argument can take: a plain scalar (decimal string for integers, bool,
// string), an address, raw bytes (hex-encoded), a list of Values, a record
// (named struct/tuple), or a nested, recursively-decoded call.
type Value struct {
	Kind ValueKind

	Scalar string // decimal integer, "true"/"false", or a plain string
	Addr   string // lowercased 0x-address, only set when Kind == KindAddress
	Hex    string // 0x-prefixed hex, only set when Kind == KindBytes

	List   []Value        // only set when Kind == KindList
	Record []RecordField  // only set when Kind == KindRecord
	Inner  *DecodedCall   // only set when Kind == KindInnerCall
}

// RecordField is one named field of a KindRecord Value.
type RecordField struct {
	Name  string
	Value Value
}

func ScalarValue(s string) Value  { return Value{Kind: KindScalar, Scalar: s} }
func AddressValue(a string) Value { return Value{Kind: KindAddress, Addr: a} }
func BytesValue(h string) Value   { return Value{Kind: KindBytes, Hex: h} }
func ListValue(vs []Value) Value  { return Value{Kind: KindList, List: vs} }
func RecordValue(fs []RecordField) Value {
	return Value{Kind: KindRecord, Record: fs}
}
func InnerCallValue(dc *DecodedCall) Value {
	return Value{Kind: KindInnerCall, Inner: dc}
}

// Args is the tagged union for DecodedCall.Args: either an ordered sequence
// (Positional) or a named mapping (Named). Exactly one of the two accessors
// is meaningful for a given Args value; IsNamed reports which.
type Args struct {
	named      bool
	positional []Value
	names      []string
	values     []Value
}

// NewPositionalArgs builds an Args in positional (ordered-sequence) form.
func NewPositionalArgs(values []Value) Args {
	return Args{named: false, positional: values}
}

// NewNamedArgs builds an Args in named-mapping form. names and values must
// be the same length and share index correspondence.
func NewNamedArgs(names []string, values []Value) Args {
	return Args{named: true, names: names, values: values}
}

// IsNamed reports whether this Args is a named mapping rather than an
// ordered sequence.
func (a Args) IsNamed() bool { return a.named }

// Positional returns the ordered sequence of values. Valid only when
// !IsNamed().
func (a Args) Positional() []Value { return a.positional }

// Names returns the argument names in order. Valid only when IsNamed().
func (a Args) Names() []string { return a.names }

// Values returns the argument values in order, aligned with Names().
func (a Args) Values() []Value {
	if a.named {
		return a.values
	}
	return a.positional
}

// Len returns the number of arguments, regardless of shape.
func (a Args) Len() int {
	if a.named {
		return len(a.values)
	}
	return len(a.positional)
}

// Get returns the value at index i and, for named args, its name.
func (a Args) Get(i int) (name string, v Value, ok bool) {
	if i < 0 || i >= a.Len() {
		return "", Value{}, false
	}
	if a.named {
		return a.names[i], a.values[i], true
	}
	return "", a.positional[i], true
}

// ByName looks up a named argument. Returns ok=false for positional Args or
// when the name is absent.
func (a Args) ByName(name string) (Value, bool) {
	if !a.named {
		return Value{}, false
	}
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return Value{}, false
}
