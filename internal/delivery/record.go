package delivery

import (
	"errors"
	"fmt"
	"strings"

	"leadcast/internal/services"
	"leadcast/internal/textutil"
)

// Field keys of the standard lead record, in display order.
const (
	FieldParentName = "parentName"
	FieldChildName  = "childName"
	FieldAge        = "age"
	FieldPhone      = "phone"
	FieldPromoter   = "promoter"
)

// LeadFields lists the standard record keys in display order.
var LeadFields = []string{FieldParentName, FieldChildName, FieldAge, FieldPhone, FieldPromoter}

var fieldLabels = map[string]string{
	FieldParentName: "Parent",
	FieldChildName:  "Child",
	FieldAge:        "Age",
	FieldPhone:      "Phone",
	FieldPromoter:   "Promoter",
}

// Field is one named value of a record.
type Field struct {
	Key   string
	Value string
}

// Label returns the caption label for the field.
func (f Field) Label() string {
	if label, ok := fieldLabels[f.Key]; ok {
		return label
	}
	return textutil.HumanizeKey(f.Key)
}

// Record is an ordered list of named fields.
type Record []Field

// NewRecord builds a record from alternating key, value pairs.
func NewRecord(pairs ...string) (Record, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("record needs key/value pairs")
	}
	record := make(Record, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		record = append(record, Field{Key: pairs[i], Value: pairs[i+1]})
	}
	return record, nil
}

// Value returns the trimmed value for key.
func (r Record) Value(key string) (string, bool) {
	for _, field := range r {
		if field.Key == key {
			return strings.TrimSpace(field.Value), true
		}
	}
	return "", false
}

// Validate requires at least one field and a non-blank value for every field.
func (r Record) Validate() error {
	if len(r) == 0 {
		return services.Wrap(services.ErrValidation, "delivery", "validate record", "record has no fields", nil)
	}
	seen := make(map[string]struct{}, len(r))
	for _, field := range r {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			return services.Wrap(services.ErrValidation, "delivery", "validate record", "field key is empty", nil)
		}
		if _, dup := seen[key]; dup {
			return services.Wrap(services.ErrValidation, "delivery", "validate record", fmt.Sprintf("duplicate field %q", key), nil)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(field.Value) == "" {
			return services.Wrap(services.ErrValidation, "delivery", "validate record", fmt.Sprintf("field %q is empty", key), nil)
		}
	}
	return nil
}
