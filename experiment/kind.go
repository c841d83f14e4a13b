package experiment

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// Kind is the value type of a descriptor field. Values are normalized to
// one Go type per kind when a descriptor is built.
type Kind int

const (
	KindInvalid  Kind = iota
	KindInt           // int64
	KindUint          // uint64
	KindFloat         // float64
	KindString        // string
	KindBool          // bool
	KindDuration      // time.Duration, encoded as integer nanoseconds
	KindTime          // time.Time, only for the timestamp field
)

var kindNames = map[Kind]string{
	KindInt:      "int",
	KindUint:     "uint",
	KindFloat:    "float",
	KindString:   "string",
	KindBool:     "bool",
	KindDuration: "duration",
	KindTime:     "time",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// normalize maps v onto the canonical Go type of its kind.
func normalize(v interface{}) (interface{}, Kind, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, KindDuration, nil
	case time.Time:
		return x, KindTime, nil
	case nil:
		return nil, KindInvalid, errors.New("nil value")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), KindInt, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), KindUint, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), KindFloat, nil
	case reflect.String:
		return rv.String(), KindString, nil
	case reflect.Bool:
		return rv.Bool(), KindBool, nil
	default:
		return nil, KindInvalid, errors.Errorf("unsupported value type %T", v)
	}
}
