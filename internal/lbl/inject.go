package lbl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInjection means the header/record pair does not fit the label schema,
// usually a .lbl template from a different version.
var ErrInjection = errors.New("prefix injection failed")

// InjectionReason distinguishes the two schema failures.
type InjectionReason string

const (
	ReasonFieldAbsent  InjectionReason = "field_absent"
	ReasonIndexInvalid InjectionReason = "index_out_of_range"
)

// InjectionError reports why the prefix could not be placed into a record.
type InjectionError struct {
	Reason      InjectionReason
	Field       string
	Index       int
	RecordCount int
}

func (e *InjectionError) Error() string {
	switch e.Reason {
	case ReasonIndexInvalid:
		return fmt.Sprintf("field %q is at index %d but record has %d fields", e.Field, e.Index, e.RecordCount)
	default:
		return fmt.Sprintf("field %q not found in header", e.Field)
	}
}

func (e *InjectionError) Is(target error) bool { return target == ErrInjection }

// SplitFields splits a payload on the literal "," delimiter. This is
// deliberately not a CSV parser.
func SplitFields(payload string) []string {
	return strings.Split(payload, FieldDelimiter)
}

// JoinFields is the inverse of SplitFields.
func JoinFields(fields []string) string {
	return strings.Join(fields, FieldDelimiter)
}

// InjectPrefix replaces the record field aligned with the PrefixField
// header column by prefix. The record keeps its field count.
func InjectPrefix(header, record, prefix string) (string, error) {
	headerFields := SplitFields(header)
	recordFields := SplitFields(record)

	index := -1
	for i, f := range headerFields {
		if f == PrefixField {
			index = i
			break
		}
	}
	if index < 0 {
		return "", &InjectionError{Reason: ReasonFieldAbsent, Field: PrefixField, Index: -1, RecordCount: len(recordFields)}
	}
	if index >= len(recordFields) {
		return "", &InjectionError{Reason: ReasonIndexInvalid, Field: PrefixField, Index: index, RecordCount: len(recordFields)}
	}

	recordFields[index] = prefix
	return JoinFields(recordFields), nil
}
