package domain

import "time"

// VariableType tags the kind held by a VariableValue.
type VariableType string

const (
	VarTypeNull    VariableType = "null"
	VarTypeString  VariableType = "string"
	VarTypeShort   VariableType = "short"
	VarTypeInteger VariableType = "integer"
	VarTypeLong    VariableType = "long"
	VarTypeDouble  VariableType = "double"
	VarTypeBoolean VariableType = "boolean"
	VarTypeDate    VariableType = "date"
	VarTypeBytes   VariableType = "bytes"
)

// IsNumeric reports whether values of this type compare through the numeric
// channel. Short, integer and long values with the same numeric value are
// equal to each other regardless of declared width.
func (t VariableType) IsNumeric() bool {
	return t == VarTypeShort || t == VarTypeInteger || t == VarTypeLong
}

// IsQueryableByValue reports whether equality/range predicates may target this
// type. Opaque binary payloads are stored and hydrated but never compared.
func (t VariableType) IsQueryableByValue() bool {
	return t != VarTypeBytes
}

// VariableScopeType distinguishes task-local variables from process-scoped ones.
type VariableScopeType string

const (
	ScopeTask    VariableScopeType = "task"
	ScopeProcess VariableScopeType = "process"
)

// VariableValue is the tagged union of supported variable kinds. Exactly the
// slot matching Type is meaningful; the storage layer persists each slot to
// its own column so predicates can compare without deserializing.
type VariableValue struct {
	Type   VariableType
	Text   *string
	Long   *int64
	Double *float64
	Bytes  []byte
}

// NullValue returns the distinct queryable null value.
func NullValue() VariableValue { return VariableValue{Type: VarTypeNull} }

// StringValue wraps a string variable value.
func StringValue(v string) VariableValue {
	return VariableValue{Type: VarTypeString, Text: &v}
}

// ShortValue wraps a 16-bit integer variable value.
func ShortValue(v int16) VariableValue {
	n := int64(v)
	return VariableValue{Type: VarTypeShort, Long: &n}
}

// IntValue wraps a 32-bit integer variable value.
func IntValue(v int32) VariableValue {
	n := int64(v)
	return VariableValue{Type: VarTypeInteger, Long: &n}
}

// LongValue wraps a 64-bit integer variable value.
func LongValue(v int64) VariableValue {
	return VariableValue{Type: VarTypeLong, Long: &v}
}

// DoubleValue wraps a floating point variable value.
func DoubleValue(v float64) VariableValue {
	return VariableValue{Type: VarTypeDouble, Double: &v}
}

// BoolValue wraps a boolean variable value.
func BoolValue(v bool) VariableValue {
	n := int64(0)
	if v {
		n = 1
	}
	return VariableValue{Type: VarTypeBoolean, Long: &n}
}

// DateValue wraps a timestamp variable value, stored at millisecond precision.
func DateValue(v time.Time) VariableValue {
	n := v.UnixMilli()
	return VariableValue{Type: VarTypeDate, Long: &n}
}

// BytesValue wraps an opaque serialized payload. Bytes values are excluded
// from value predicates but are hydrated by value on request.
func BytesValue(v []byte) VariableValue {
	return VariableValue{Type: VarTypeBytes, Bytes: v}
}

// IsNull reports whether the value is the explicit null.
func (v VariableValue) IsNull() bool { return v.Type == VarTypeNull }

// Date returns the timestamp carried by a date value.
func (v VariableValue) Date() time.Time {
	if v.Type != VarTypeDate || v.Long == nil {
		return time.Time{}
	}
	return time.UnixMilli(*v.Long)
}

// Bool returns the boolean carried by a boolean value.
func (v VariableValue) Bool() bool {
	return v.Type == VarTypeBoolean && v.Long != nil && *v.Long != 0
}

// VariableInstance is a named value attached to a task or process scope.
type VariableInstance struct {
	ID        string
	ScopeID   string
	ScopeType VariableScopeType
	Name      string
	Value     VariableValue
}
