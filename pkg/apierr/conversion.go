package apierr

import "fmt"

// ConversionError reports a wire record that does not have the shape the
// service contract promises.
type ConversionError struct {
	Record string
	Field  string
	Value  interface{}
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %s.%s value %v: %v", e.Record, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("cannot convert %s.%s value %v", e.Record, e.Field, e.Value)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func Conversion(record, field string, value interface{}, err error) error {
	return &ConversionError{Record: record, Field: field, Value: value, Err: err}
}
