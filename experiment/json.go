package experiment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmdriver/errs"
)

// TimestampLayout is RFC 3339 with a fixed six digit fraction.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FieldSpec describes one field of a serialized descriptor.
type FieldSpec struct {
	Name string
	Kind Kind
	Role Role
}

// Schema is what Decode needs to restore typed values from JSON.
type Schema []FieldSpec

func (d *Descriptor) Schema() Schema {
	s := make(Schema, len(d.fields))
	for i, f := range d.fields {
		s[i] = FieldSpec{Name: f.Name, Kind: f.Kind, Role: f.Role}
	}
	return s
}

// MarshalJSON writes the fields as one object in field order. Integers stay
// integers, durations are integer nanoseconds and the timestamp uses
// TimestampLayout.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, errs.NewSerialization("descriptor", errors.Wrapf(err, "field name %q", f.Name))
		}
		val, err := encodeValue(f)
		if err != nil {
			return nil, errs.NewSerialization("descriptor", errors.Wrapf(err, "field %q", f.Name))
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func encodeValue(f Field) ([]byte, error) {
	switch f.Kind {
	case KindTime:
		return json.Marshal(f.Value.(time.Time).Format(TimestampLayout))
	case KindDuration:
		return []byte(strconv.FormatInt(int64(f.Value.(time.Duration)), 10)), nil
	case KindInt:
		return []byte(strconv.FormatInt(f.Value.(int64), 10)), nil
	case KindUint:
		return []byte(strconv.FormatUint(f.Value.(uint64), 10)), nil
	default:
		return json.Marshal(f.Value)
	}
}

// Decode restores a descriptor from data written by MarshalJSON. The schema
// fixes field order, kinds and roles; data must hold exactly its fields.
func Decode(data []byte, schema Schema) (*Descriptor, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.NewSerialization("descriptor", errors.Wrap(err, "not a JSON object"))
	}
	if len(raw) != len(schema) {
		return nil, errs.NewSerialization("descriptor", errors.Errorf("expected %d fields, found %d", len(schema), len(raw)))
	}

	fields := make([]Field, 0, len(schema))
	for _, fs := range schema {
		msg, ok := raw[fs.Name]
		if !ok {
			return nil, errs.NewSerialization("descriptor", errors.Errorf("missing field %q", fs.Name))
		}
		value, err := decodeValue(msg, fs.Kind)
		if err != nil {
			return nil, errs.NewSerialization("descriptor", errors.Wrapf(err, "field %q", fs.Name))
		}
		fields = append(fields, Field{Name: fs.Name, Value: value, Role: fs.Role})
	}

	d, err := newDescriptor(fields)
	if err != nil {
		return nil, errs.NewSerialization("descriptor", err)
	}
	return d, nil
}

func decodeValue(msg json.RawMessage, kind Kind) (interface{}, error) {
	switch kind {
	case KindInt:
		var v int64
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindUint:
		var v uint64
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindFloat:
		var v float64
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindString:
		var v string
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindBool:
		var v bool
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindDuration:
		var v int64
		err := json.Unmarshal(msg, &v)
		return time.Duration(v), err
	case KindTime:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return time.Parse(TimestampLayout, s)
	default:
		return nil, errors.Errorf("unsupported kind %s", kind)
	}
}
