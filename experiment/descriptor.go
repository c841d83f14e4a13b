// Package experiment models the record that makes one experiment run
// unique.
//
// A Descriptor is an ordered list of fields. Exactly one field carries the
// Identity role (a short label for the kind of experiment) and exactly one
// carries the Timestamp role (the moment the descriptor was built). All other
// fields are Parameters. Artifact names are derived from the first two only;
// provenance records all of them.
package experiment

import (
	"regexp"
	"time"

	"github.com/mensylisir/xmdriver/errs"
)

type Role int

const (
	RoleParameter Role = iota
	RoleIdentity
	RoleTimestamp
)

func (r Role) String() string {
	switch r {
	case RoleIdentity:
		return "identity"
	case RoleTimestamp:
		return "timestamp"
	default:
		return "parameter"
	}
}

// TimestampPrecision is the granularity kept for the timestamp field.
const TimestampPrecision = time.Microsecond

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidIdentity checks that s can name an experiment and appear in file
// names.
func ValidIdentity(s string) error {
	if !identityPattern.MatchString(s) {
		return errs.NewConfiguration("identity", "%q must match %s", s, identityPattern)
	}
	return nil
}

// Field is one named value of a descriptor.
type Field struct {
	Name  string
	Value interface{}
	Kind  Kind
	Role  Role
}

// Param is an ordinary parameter passed to New.
type Param struct {
	Name  string
	Value interface{}
}

// Clock returns the current time. Tests replace it to get stable names.
type Clock func() time.Time

type options struct {
	clock Clock
}

type Option func(*options)

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Descriptor is immutable once built. Accessors return copies.
type Descriptor struct {
	fields   []Field
	identity int
	stamp    int
}

// New builds a descriptor whose field order is identity, parameters in the
// given order, then timestamp. The timestamp is read from the clock exactly
// once, here.
func New(identityKey, identity, timestampKey string, params []Param, opts ...Option) (*Descriptor, error) {
	o := buildOptions(opts)

	fields := make([]Field, 0, len(params)+2)
	fields = append(fields, Field{Name: identityKey, Value: identity, Role: RoleIdentity})
	for _, p := range params {
		fields = append(fields, Field{Name: p.Name, Value: p.Value, Role: RoleParameter})
	}
	fields = append(fields, Field{Name: timestampKey, Value: o.clock(), Role: RoleTimestamp})

	return newDescriptor(fields)
}

// newDescriptor validates fields, normalizes their values and fixes the
// identity and timestamp positions.
func newDescriptor(fields []Field) (*Descriptor, error) {
	d := &Descriptor{fields: make([]Field, 0, len(fields)), identity: -1, stamp: -1}
	seen := make(map[string]bool, len(fields))

	for i, f := range fields {
		if f.Name == "" {
			return nil, errs.NewConfiguration("descriptor", "field %d has an empty name", i)
		}
		if seen[f.Name] {
			return nil, errs.NewConfiguration("descriptor", "duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		value, kind, err := normalize(f.Value)
		if err != nil {
			return nil, errs.NewConfiguration("descriptor", "field %q: %v", f.Name, err)
		}

		switch f.Role {
		case RoleIdentity:
			if d.identity >= 0 {
				return nil, errs.NewConfiguration("descriptor", "more than one identity field (%q and %q)", d.fields[d.identity].Name, f.Name)
			}
			s, ok := value.(string)
			if !ok {
				return nil, errs.NewConfiguration("descriptor", "identity field %q holds %T, not a string", f.Name, f.Value)
			}
			if err := ValidIdentity(s); err != nil {
				return nil, err
			}
			d.identity = i
		case RoleTimestamp:
			if d.stamp >= 0 {
				return nil, errs.NewConfiguration("descriptor", "more than one timestamp field (%q and %q)", d.fields[d.stamp].Name, f.Name)
			}
			t, ok := value.(time.Time)
			if !ok {
				return nil, errs.NewConfiguration("descriptor", "timestamp field %q holds %T, not time.Time", f.Name, f.Value)
			}
			value = t.UTC().Truncate(TimestampPrecision)
			d.stamp = i
		default:
			if kind == KindTime {
				return nil, errs.NewConfiguration("descriptor", "parameter %q: time values are only allowed in the timestamp field", f.Name)
			}
		}

		d.fields = append(d.fields, Field{Name: f.Name, Value: value, Kind: kind, Role: f.Role})
	}

	if d.identity < 0 {
		return nil, errs.NewConfiguration("descriptor", "no identity field")
	}
	if d.stamp < 0 {
		return nil, errs.NewConfiguration("descriptor", "no timestamp field")
	}
	return d, nil
}

// Fields returns a copy of the fields in order.
func (d *Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

func (d *Descriptor) Identity() string {
	return d.fields[d.identity].Value.(string)
}

func (d *Descriptor) Timestamp() time.Time {
	return d.fields[d.stamp].Value.(time.Time)
}

// Equal reports whether both descriptors hold the same fields in the same
// order with the same values.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.fields) != len(other.fields) {
		return false
	}
	for i, f := range d.fields {
		g := other.fields[i]
		if f.Name != g.Name || f.Kind != g.Kind || f.Role != g.Role {
			return false
		}
		if f.Kind == KindTime {
			if !f.Value.(time.Time).Equal(g.Value.(time.Time)) {
				return false
			}
			continue
		}
		if f.Value != g.Value {
			return false
		}
	}
	return true
}
