package experiment

import (
	"reflect"
	"strings"

	"github.com/mensylisir/xmdriver/errs"
)

const tagName = "param"

// FromStruct builds a descriptor from the tagged fields of a struct, in
// declaration order:
//
//	type ExpConfig struct {
//		Name       string    `param:"exp,identity"`
//		Time       uint64    `param:"time"`
//		Iterations uint64    `param:"iterations"`
//		Timestamp  time.Time `param:"timestamp,timestamp"`
//	}
//
// Untagged fields and fields tagged "-" are ignored. The timestamp field is
// filled from the clock, its value in v is not used.
func FromStruct(v interface{}, opts ...Option) (*Descriptor, error) {
	o := buildOptions(opts)

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errs.NewConfiguration("descriptor", "nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errs.NewConfiguration("descriptor", "%T is not a struct", v)
	}

	rt := rv.Type()
	fields := make([]Field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, ok := sf.Tag.Lookup(tagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}

		name, role, err := parseTag(sf.Name, tag)
		if err != nil {
			return nil, err
		}

		f := Field{Name: name, Role: role, Value: rv.Field(i).Interface()}
		if role == RoleTimestamp {
			f.Value = o.clock()
		}
		fields = append(fields, f)
	}

	return newDescriptor(fields)
}

func parseTag(fieldName, tag string) (string, Role, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = strings.ToLower(fieldName)
	}
	if len(parts) > 2 {
		return "", RoleParameter, errs.NewConfiguration("descriptor", "field %s: malformed tag %q", fieldName, tag)
	}
	if len(parts) == 1 {
		return name, RoleParameter, nil
	}

	switch strings.TrimSpace(parts[1]) {
	case "identity":
		return name, RoleIdentity, nil
	case "timestamp":
		return name, RoleTimestamp, nil
	case "", "parameter":
		return name, RoleParameter, nil
	default:
		return "", RoleParameter, errs.NewConfiguration("descriptor", "field %s: unknown role %q", fieldName, parts[1])
	}
}
