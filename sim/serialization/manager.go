package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The wire envelope records the kind of every value so integers survive
// the JSON round trip exactly and registered types can be rebuilt by
// name.
type envelope struct {
	Kind  string          `json:"kind"`
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value"`
}

// Marshal encodes a value into a self-describing byte slice. Supported
// values are nil, bool, string, int, int32, int64, uint32, uint64,
// float32, float64, and registered Serializable implementations
// (including their nested fields). Other integer types are rejected.
func Marshal(v any) ([]byte, error) {
	env, err := toEnvelope(v)
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

// Unmarshal decodes a byte slice produced by Marshal.
func Unmarshal(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	return fromEnvelope(env)
}

func toEnvelope(v any) (envelope, error) {
	switch val := v.(type) {
	case nil:
		return envelope{Kind: "nil"}, nil
	case bool:
		return rawEnvelope("bool", val)
	case string:
		return rawEnvelope("string", val)
	case int:
		return rawEnvelope("int64", int64(val))
	case int32:
		return rawEnvelope("int64", int64(val))
	case int64:
		return rawEnvelope("int64", val)
	case uint32:
		return rawEnvelope("uint64", uint64(val))
	case uint64:
		return rawEnvelope("uint64", val)
	case float32:
		return rawEnvelope("float64", float64(val))
	case float64:
		return rawEnvelope("float64", val)
	case Serializable:
		return serializableEnvelope(val)
	}

	return envelope{}, fmt.Errorf("cannot serialize value of type %T", v)
}

func rawEnvelope(kind string, v any) (envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return envelope{}, err
	}

	return envelope{Kind: kind, Value: raw}, nil
}

func serializableEnvelope(s Serializable) (envelope, error) {
	typeName, err := nameOf(s)
	if err != nil {
		return envelope{}, err
	}

	fields, err := s.Serialize()
	if err != nil {
		return envelope{}, err
	}

	encoded := make(map[string]envelope, len(fields))
	for k, v := range fields {
		fieldEnv, err := toEnvelope(v)
		if err != nil {
			return envelope{}, fmt.Errorf("field %s: %w", k, err)
		}
		encoded[k] = fieldEnv
	}

	raw, err := json.Marshal(encoded)
	if err != nil {
		return envelope{}, err
	}

	return envelope{Kind: "serializable", Type: typeName, Value: raw}, nil
}

func fromEnvelope(env envelope) (any, error) {
	switch env.Kind {
	case "nil":
		return nil, nil
	case "bool":
		var v bool
		return v, decodeRaw(env.Value, &v)
	case "string":
		var v string
		return v, decodeRaw(env.Value, &v)
	case "int64":
		var v int64
		return v, decodeNumber(env.Value, &v)
	case "uint64":
		var v uint64
		return v, decodeNumber(env.Value, &v)
	case "float64":
		var v float64
		return v, decodeRaw(env.Value, &v)
	case "serializable":
		return decodeSerializable(env)
	}

	return nil, fmt.Errorf("unknown serialized kind %q", env.Kind)
}

func decodeRaw(raw json.RawMessage, out any) error {
	return json.Unmarshal(raw, out)
}

// decodeNumber parses integers through json.Number so values beyond
// 2^53 keep their exact value.
func decodeNumber(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return err
	}

	switch v := out.(type) {
	case *int64:
		parsed, err := num.Int64()
		if err != nil {
			return err
		}
		*v = parsed
	case *uint64:
		parsed, err := parseUint(num)
		if err != nil {
			return err
		}
		*v = parsed
	default:
		return fmt.Errorf("unsupported number target %T", out)
	}

	return nil
}

func parseUint(num json.Number) (uint64, error) {
	if i, err := num.Int64(); err == nil && i >= 0 {
		return uint64(i), nil
	}

	var v uint64
	if _, err := fmt.Sscan(num.String(), &v); err != nil {
		return 0, err
	}

	return v, nil
}

func decodeSerializable(env envelope) (any, error) {
	obj, err := newByName(env.Type)
	if err != nil {
		return nil, err
	}

	var encoded map[string]envelope
	if err := json.Unmarshal(env.Value, &encoded); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(encoded))
	for k, fieldEnv := range encoded {
		v, err := fromEnvelope(fieldEnv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = v
	}

	if err := obj.Deserialize(fields); err != nil {
		return nil, err
	}

	return obj, nil
}
