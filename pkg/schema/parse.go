package schema

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

// ErrInvalidSchema is returned when a schema document fails shape checks.
var ErrInvalidSchema = errors.New("invalid schema")

// Load reads and parses a schema document from disk.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- schema paths come from the configured schema directory
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a JSON schema document. The document order of message
// types, versions and fields is preserved.
func Parse(data []byte) (*Schema, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	obj, err := root.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidSchema)
	}

	s := New()
	var firstErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if firstErr != nil {
			return
		}
		msgType := string(key)
		msg, err := parseMessage(msgType, v)
		if err != nil {
			firstErr = fmt.Errorf("%w: message type %s: %v", ErrInvalidSchema, msgType, err)
			return
		}
		s.add(msg)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return s, nil
}

func parseMessage(msgType string, v *fastjson.Value) (*MessageSchema, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, errors.New("configuration must be an object")
	}

	msg := &MessageSchema{
		Type:            msgType,
		Description:     stringValue(obj.Get("Description")),
		ResponseType:    strings.TrimSpace(stringValue(obj.Get("ResponseType"))),
		TransIDPosition: parsePosition(obj.Get("TransIdPosition")),
	}

	if fv := obj.Get("Fields"); fv != nil && fv.Type() != fastjson.TypeNull {
		fields, err := parseFields(fv)
		if err != nil {
			return nil, err
		}
		msg.Fields = fields
	}

	if vv := obj.Get("Versions"); vv != nil && vv.Type() != fastjson.TypeNull {
		versions, err := vv.Object()
		if err != nil {
			return nil, errors.New("Versions must be an object")
		}
		msg.Versions = make(map[string][]FieldSpec, versions.Len())
		var verErr error
		versions.Visit(func(key []byte, ver *fastjson.Value) {
			if verErr != nil {
				return
			}
			code := string(key)
			verObj, err := ver.Object()
			if err != nil {
				verErr = fmt.Errorf("version %s must be an object", code)
				return
			}
			var fields []FieldSpec
			if fv := verObj.Get("Fields"); fv != nil && fv.Type() != fastjson.TypeNull {
				fields, err = parseFields(fv)
				if err != nil {
					verErr = fmt.Errorf("version %s: %w", code, err)
					return
				}
			}
			msg.Versions[code] = fields
			msg.versionOrder = append(msg.versionOrder, code)
		})
		if verErr != nil {
			return nil, verErr
		}
	}

	return msg, nil
}

func parseFields(v *fastjson.Value) ([]FieldSpec, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, errors.New("Fields must be an object")
	}

	fields := make([]FieldSpec, 0, obj.Len())
	var fieldErr error
	obj.Visit(func(key []byte, fv *fastjson.Value) {
		if fieldErr != nil {
			return
		}
		name := string(key)
		field, err := parseField(name, fv)
		if err != nil {
			fieldErr = fmt.Errorf("field %s: %w", name, err)
			return
		}
		fields = append(fields, field)
	})
	if fieldErr != nil {
		return nil, fieldErr
	}
	return fields, nil
}

func parseField(name string, v *fastjson.Value) (FieldSpec, error) {
	field := FieldSpec{Name: name, Length: -1}

	obj, err := v.Object()
	if err != nil {
		return field, errors.New("configuration must be an object")
	}

	start := obj.Get("Start")
	if start == nil {
		return field, errors.New("missing Start")
	}
	field.Start, err = start.Int()
	if err != nil || field.Start < 0 {
		return field, errors.New("Start must be an integer >= 0")
	}

	if length := obj.Get("Length"); length != nil && length.Type() != fastjson.TypeNull {
		field.Length, err = length.Int()
		if err != nil || field.Length < -1 {
			return field, errors.New("Length must be an integer >= -1")
		}
	}

	table := escapeTable(obj.Get("Escapes"))
	if table == nil {
		table = escapeTable(obj.Get("Escape"))
	}
	if table != nil {
		field.Escapes = make(map[string]string, table.Len())
		table.Visit(func(key []byte, label *fastjson.Value) {
			field.Escapes[string(key)] = stringValue(label)
		})
	}

	return field, nil
}

// escapeTable returns v as a non-empty object, or nil.
func escapeTable(v *fastjson.Value) *fastjson.Object {
	if v == nil || v.Type() != fastjson.TypeObject {
		return nil
	}
	table, _ := v.Object()
	if table.Len() == 0 {
		return nil
	}
	return table
}

// parsePosition accepts "start,length", [start, length] or
// {"Start": s, "Length": l}. Malformed values yield nil.
func parsePosition(v *fastjson.Value) *Position {
	if v == nil {
		return nil
	}

	var start, length int
	var err error
	switch v.Type() {
	case fastjson.TypeString:
		parts := strings.Split(stringValue(v), ",")
		if len(parts) != 2 {
			return nil
		}
		if start, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
			return nil
		}
		if length, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return nil
		}
	case fastjson.TypeArray:
		items, _ := v.Array()
		if len(items) != 2 {
			return nil
		}
		if start, err = items[0].Int(); err != nil {
			return nil
		}
		if length, err = items[1].Int(); err != nil {
			return nil
		}
	case fastjson.TypeObject:
		startVal, lengthVal := v.Get("Start"), v.Get("Length")
		if startVal == nil || lengthVal == nil {
			return nil
		}
		if start, err = startVal.Int(); err != nil {
			return nil
		}
		if length, err = lengthVal.Int(); err != nil {
			return nil
		}
	default:
		return nil
	}

	if start < 0 || length <= 0 {
		return nil
	}
	return &Position{Start: start, Length: length}
}

// stringValue returns the string content of v, or its JSON text for
// non-string scalars.
func stringValue(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNull:
		return ""
	default:
		return v.String()
	}
}
