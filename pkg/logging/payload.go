package logging

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Payload is the body of an entry. It is one of TextPayload, StructPayload or
// ProtoPayload.
type Payload interface {
	isPayload()
}

// TextPayload is a plain string body.
type TextPayload string

// StructPayload is a JSON-like body. Values are normalized on write: map keys
// are stringified, typed slices and maps are flattened, times become RFC 3339
// strings and Stringers become their text.
type StructPayload map[string]interface{}

// ProtoPayload carries a typed protocol buffer message.
type ProtoPayload struct {
	Any *anypb.Any
}

func (TextPayload) isPayload()   {}
func (StructPayload) isPayload() {}
func (ProtoPayload) isPayload()  {}

func payloadEmpty(p Payload) bool {
	switch t := p.(type) {
	case nil:
		return true
	case TextPayload:
		return t == ""
	case StructPayload:
		return len(t) == 0
	case ProtoPayload:
		return t.Any == nil
	}
	return false
}

// NewPayload picks the payload variant for an arbitrary value. Protocol
// buffer messages become ProtoPayload, maps and structs become
// StructPayload, and everything else is formatted as text.
func NewPayload(v interface{}) (Payload, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Payload:
		return t, nil
	case *anypb.Any:
		return ProtoPayload{Any: t}, nil
	case proto.Message:
		a, err := anypb.New(t)
		if err != nil {
			return nil, errors.Wrap(err, "error packing proto payload")
		}
		return ProtoPayload{Any: a}, nil
	case string:
		return TextPayload(t), nil
	case []byte:
		return TextPayload(t), nil
	case map[string]interface{}:
		return StructPayload(t), nil
	case error:
		return TextPayload(t.Error()), nil
	case fmt.Stringer:
		return TextPayload(t.String()), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		m, ok := normalize(rv.Interface()).(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("cannot use %T as a structured payload", v)
		}
		return StructPayload(m), nil
	}
	return TextPayload(fmt.Sprint(rv.Interface())), nil
}

func (p StructPayload) toProto() (*structpb.Struct, error) {
	m, _ := normalize(map[string]interface{}(p)).(map[string]interface{})
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "error converting structured payload")
	}
	return s, nil
}

// normalize rewrites v into the value types structpb accepts.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, float64, float32, int, int32, int64, uint32, uint64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return t.String()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		// honour json tags
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Sprint(v)
		}
		return normalize(m)
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return fmt.Sprint(v)
}
