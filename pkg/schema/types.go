// Package schema defines the per-namespace message schema used to decode
// trace content, and the store that resolves a namespace pair to a schema.
package schema

import "sort"

// DefaultTransIDPosition is used when a message type does not declare a
// TransIdPosition, or declares a malformed one.
var DefaultTransIDPosition = Position{Start: 32, Length: 12}

// Position is a (start, length) window into message content.
type Position struct {
	Start  int
	Length int
}

// FieldSpec describes one fixed-offset field of a message.
type FieldSpec struct {
	// Name is the field label used in rendered output.
	Name string

	// Start is the character offset into the message content.
	Start int

	// Length is the number of characters, or -1 for "to end of content".
	Length int

	// Escapes maps raw field values to human-readable labels.
	Escapes map[string]string
}

// HasEscapes reports whether the field carries an escape table.
func (f *FieldSpec) HasEscapes() bool {
	return len(f.Escapes) > 0
}

// MessageSchema describes how to decode one message type.
type MessageSchema struct {
	// Type is the fixed-width message-type code.
	Type string

	// Description is the human-readable name of the message.
	Description string

	// ResponseType is the message type of the reply this request expects.
	// Empty when the message is not a request.
	ResponseType string

	// TransIDPosition locates the transaction identifier. Nil means unset.
	TransIDPosition *Position

	// Fields is the flat field list, used when Versions is nil.
	Fields []FieldSpec

	// Versions maps a version code to its field list. A non-nil map means
	// the message is versioned, even when the map is empty.
	Versions map[string][]FieldSpec

	versionOrder []string
}

// FieldsFor returns the field list that applies to the given version.
// The second result is false when the message is versioned and the version
// is not listed.
func (m *MessageSchema) FieldsFor(version string) ([]FieldSpec, bool) {
	if m.Versions == nil {
		return m.Fields, true
	}
	fields, ok := m.Versions[version]
	return fields, ok
}

// VersionCodes returns the declared version codes in document order.
func (m *MessageSchema) VersionCodes() []string {
	return m.versionOrder
}

// TransIDWindow returns the declared TransIdPosition or the default.
func (m *MessageSchema) TransIDWindow() Position {
	if m == nil || m.TransIDPosition == nil {
		return DefaultTransIDPosition
	}
	return *m.TransIDPosition
}

// Schema is an ordered collection of message schemas for one namespace pair.
type Schema struct {
	order    []string
	messages map[string]*MessageSchema
}

// New builds a schema from message schemas, keeping their order.
// A later message with the same type replaces the earlier one in place.
func New(messages ...*MessageSchema) *Schema {
	s := &Schema{messages: make(map[string]*MessageSchema, len(messages))}
	for _, m := range messages {
		s.add(m)
	}
	return s
}

func (s *Schema) add(m *MessageSchema) {
	if m.Versions != nil && len(m.versionOrder) != len(m.Versions) {
		m.versionOrder = m.versionOrder[:0]
		for v := range m.Versions {
			m.versionOrder = append(m.versionOrder, v)
		}
		sort.Strings(m.versionOrder)
	}
	if _, exists := s.messages[m.Type]; !exists {
		s.order = append(s.order, m.Type)
	}
	s.messages[m.Type] = m
}

// Lookup returns the schema for a message type.
func (s *Schema) Lookup(msgType string) (*MessageSchema, bool) {
	if s == nil {
		return nil, false
	}
	m, ok := s.messages[msgType]
	return m, ok
}

// Types returns all message types in document order.
func (s *Schema) Types() []string {
	if s == nil {
		return nil
	}
	return s.order
}

// Len returns the number of message types.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Stats counts the elements of a schema.
type Stats struct {
	MessageTypes int
	Versions     int
	Fields       int
	Escapes      int
	Requests     int
}

// Stats returns element counts for the schema.
func (s *Schema) Stats() Stats {
	var st Stats
	for _, t := range s.Types() {
		m := s.messages[t]
		st.MessageTypes++
		if m.ResponseType != "" {
			st.Requests++
		}
		count := func(fields []FieldSpec) {
			st.Fields += len(fields)
			for i := range fields {
				st.Escapes += len(fields[i].Escapes)
			}
		}
		count(m.Fields)
		st.Versions += len(m.Versions)
		for _, fields := range m.Versions {
			count(fields)
		}
	}
	return st
}
