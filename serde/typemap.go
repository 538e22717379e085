package serde

import (
	"fmt"
	"sync"

	goreflect "github.com/goccy/go-reflect"
	"google.golang.org/protobuf/proto"
)

// TypeMap maps fully qualified type names to the Go types that deserialize
// them. Proto messages register a prototype and are instantiated through
// their descriptor; everything else registers a value whose dynamic type is
// instantiated per message.
//
// A TypeMap is safe for concurrent use. Registration is idempotent for the
// same name and type and rejects re-registration under a different one.
type TypeMap struct {
	mu       sync.RWMutex
	messages map[string]proto.Message
	types    map[string]goreflect.Type
}

// NewTypeMap returns an empty TypeMap.
func NewTypeMap() *TypeMap {
	return &TypeMap{
		messages: make(map[string]proto.Message),
		types:    make(map[string]goreflect.Type),
	}
}

// RegisterMessage associates name with the message type of the given
// prototype. The prototype itself is never mutated; NewMessage mints fresh
// instances from its descriptor.
func (m *TypeMap) RegisterMessage(name string, msg proto.Message) error {
	if name == "" {
		return fmt.Errorf("empty type name")
	}
	if msg == nil {
		return fmt.Errorf("nil prototype for %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.types[name]; ok {
		return fmt.Errorf("%w: %q", ErrTypeConflict, name)
	}
	if old, ok := m.messages[name]; ok {
		if old.ProtoReflect().Descriptor() == msg.ProtoReflect().Descriptor() {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrTypeConflict, name)
	}
	m.messages[name] = msg
	return nil
}

// RegisterType associates name with the dynamic type of v, used to
// instantiate fresh values for non-proto payloads. Registering a pointer
// registers its element type, so v and &v name the same type.
func (m *TypeMap) RegisterType(name string, v interface{}) error {
	if name == "" {
		return fmt.Errorf("empty type name")
	}
	t := goreflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("nil value for %q", name)
	}
	if t.Kind() == goreflect.Ptr {
		t = t.Elem()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[name]; ok {
		return fmt.Errorf("%w: %q", ErrTypeConflict, name)
	}
	if old, ok := m.types[name]; ok {
		if old == t {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrTypeConflict, name)
	}
	m.types[name] = t
	return nil
}

// NewMessage returns a fresh message of the type registered under name. It
// returns an error wrapping ErrUnregisteredType when name is unknown.
func (m *TypeMap) NewMessage(name string) (proto.Message, error) {
	m.mu.RLock()
	prototype, ok := m.messages[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredType, name)
	}
	return prototype.ProtoReflect().New().Interface(), nil
}

// NewValue returns a pointer to a fresh zero value of the type registered
// under name. It returns an error wrapping ErrUnregisteredType when name is
// unknown.
func (m *TypeMap) NewValue(name string) (interface{}, error) {
	m.mu.RLock()
	t, ok := m.types[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredType, name)
	}
	return goreflect.New(t).Interface(), nil
}

// Len returns the number of registered names.
func (m *TypeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages) + len(m.types)
}
