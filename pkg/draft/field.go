package draft

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field identifies one editable draft field. Fields combine into a set.
type Field uint8

const (
	FieldAmount Field = 1 << iota
	FieldType
	FieldCategory
	FieldAccount
	FieldTransferTo
	FieldDate
	FieldDescription
)

var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldAmount, "amount"},
	{FieldType, "type"},
	{FieldCategory, "category"},
	{FieldAccount, "account"},
	{FieldTransferTo, "transfer_to"},
	{FieldDate, "date"},
	{FieldDescription, "description"},
}

// ParseField returns the field with the given wire name.
func ParseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, fn := range fieldNames {
		if fn.name == name {
			return fn.field, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// Has reports whether every field in other is also in f.
func (f Field) Has(other Field) bool {
	return other != 0 && f&other == other
}

// Names returns the wire names of the fields in the set, in declaration order.
func (f Field) Names() []string {
	names := make([]string, 0, len(fieldNames))
	for _, fn := range fieldNames {
		if f&fn.field != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f Field) String() string {
	return strings.Join(f.Names(), ",")
}

// MarshalJSON encodes the set as a list of field names.
func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Names())
}

// UnmarshalJSON decodes a list of field names.
func (f *Field) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decoding field set: %w", err)
	}

	var set Field
	for _, name := range names {
		field, err := ParseField(name)
		if err != nil {
			return err
		}
		set |= field
	}
	*f = set
	return nil
}
