package quizzes

import "encoding/json"

// Field is a JSON value that distinguishes an absent key from an explicit null.
type Field[T any] struct {
	Set   bool // key was present
	Null  bool // key was present with value null
	Value T
}

// UnmarshalJSON is only invoked for keys present in the document.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// Ptr returns nil for null and a pointer to the value otherwise.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// Value builds a present, non-null field.
func Value[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

// Null builds a present null field.
func Null[T any]() Field[T] { return Field[T]{Set: true, Null: true} }
