package notion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ntodo/ntodo/internal/apperrors"
)

const (
	// DateFormat is the layout of a date-only property start value.
	DateFormat = "2006-01-02"

	// dateOnlyLength distinguishes a plain ISO date from a full timestamp.
	dateOnlyLength = 10
)

// ValueKind discriminates the variants of a decoded property value.
type ValueKind int

// Value kinds produced by DecodeProperty.
const (
	// KindAbsent marks a property with no usable value (unset date, empty
	// select, unsupported type).
	KindAbsent ValueKind = iota
	// KindBool is a checkbox or boolean formula result.
	KindBool
	// KindNumber is a number or numeric formula/rollup result.
	KindNumber
	// KindText is flattened text, a select/status option name, or a user
	// display name.
	KindText
	// KindStrings is an ordered list of names (multi_select) or page ids
	// (relation).
	KindStrings
	// KindTime is a date or datetime; DateOnly records which.
	KindTime
	// KindList is a list of nested values (rollup/formula arrays).
	KindList
)

// Value is a decoded property value. Exactly one payload field is
// meaningful, selected by Kind. Formula and rollup results reuse the same
// shape, so recursion stays lossless.
type Value struct {
	Kind     ValueKind
	Bool     bool
	Number   float64
	Text     string
	Strings  []string
	Time     time.Time
	DateOnly bool
	List     []Value
}

// AbsentValue returns the absent value.
func AbsentValue() Value { return Value{Kind: KindAbsent} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NumberValue wraps a float.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// TextValue wraps a string.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// StringsValue wraps a list of names or ids.
func StringsValue(items []string) Value { return Value{Kind: KindStrings, Strings: items} }

// TimeValue wraps a point in time. dateOnly records that the wire value
// carried no time-of-day component.
func TimeValue(t time.Time, dateOnly bool) Value {
	return Value{Kind: KindTime, Time: t, DateOnly: dateOnly}
}

// IsAbsent reports whether the value carries no payload.
func (v Value) IsAbsent() bool { return v.Kind == KindAbsent }

// propertyKeyByID returns the map key of the property whose embedded id
// matches. The map key itself is the display name and may change whenever a
// user renames the property, so it is never used for lookup.
func propertyKeyByID(properties map[string]Property, propertyID string) (string, bool) {
	for key, prop := range properties {
		if prop.ID == propertyID {
			return key, true
		}
	}
	return "", false
}

// DecodeProperty locates the property with the given id on the page and
// translates it into a plain value.
func DecodeProperty(page *Page, propertyID string) (Value, error) {
	key, ok := propertyKeyByID(page.Properties, propertyID)
	if !ok {
		return AbsentValue(), fmt.Errorf("decode property %q: %w", propertyID, apperrors.ErrPropertyNotFound)
	}
	prop := page.Properties[key]
	return decodeValue(&prop), nil
}

// decodeValue dispatches on the property type tag. Unknown tags degrade to
// an absent value with an error log so a single unsupported property cannot
// take down a whole poll.
func decodeValue(prop *Property) Value {
	switch prop.Type {
	case "checkbox":
		if prop.Checkbox == nil {
			return AbsentValue()
		}
		return BoolValue(*prop.Checkbox)
	case "number":
		if prop.Number == nil {
			return AbsentValue()
		}
		return NumberValue(*prop.Number)
	case "string":
		if prop.String == nil {
			return AbsentValue()
		}
		return TextValue(*prop.String)
	case "boolean":
		if prop.Boolean == nil {
			return AbsentValue()
		}
		return BoolValue(*prop.Boolean)
	case "title":
		return TextValue(PlainText(prop.Title))
	case "rich_text":
		return TextValue(PlainText(prop.RichText))
	case "select":
		if prop.Select == nil {
			return AbsentValue()
		}
		return TextValue(prop.Select.Name)
	case "status":
		if prop.Status == nil {
			return AbsentValue()
		}
		return TextValue(prop.Status.Name)
	case "multi_select":
		names := make([]string, 0, len(prop.MultiSelect))
		for _, option := range prop.MultiSelect {
			names = append(names, option.Name)
		}
		return StringsValue(names)
	case "relation":
		ids := make([]string, 0, len(prop.Relation))
		for _, rel := range prop.Relation {
			ids = append(ids, rel.ID)
		}
		return StringsValue(ids)
	case "date":
		return decodeDate(prop)
	case "formula":
		if prop.Formula == nil {
			return AbsentValue()
		}
		return decodeValue(prop.Formula)
	case "rollup":
		if prop.Rollup == nil {
			return AbsentValue()
		}
		return decodeValue(prop.Rollup)
	case "array":
		items := make([]Value, 0, len(prop.Array))
		for i := range prop.Array {
			items = append(items, decodeValue(&prop.Array[i]))
		}
		return Value{Kind: KindList, List: items}
	case "last_edited_by":
		if prop.LastEditedBy == nil {
			return AbsentValue()
		}
		return TextValue(prop.LastEditedBy.Name)
	case "last_edited_time":
		return decodeTimestamp(prop.LastEditedTime)
	case "created_time":
		return decodeTimestamp(prop.CreatedTime)
	default:
		slog.Error("no parser for property type", "type", prop.Type, "property_id", prop.ID)
		return AbsentValue()
	}
}

// decodeDate parses a date property start value. A 10-character value is a
// plain date, anything longer a full timestamp. A null date is a logged
// absent value, never an error.
func decodeDate(prop *Property) Value {
	if prop.Date == nil || prop.Date.Start == "" {
		slog.Warn("no date provided", "property_id", prop.ID)
		return AbsentValue()
	}

	start := prop.Date.Start
	if len(start) > dateOnlyLength {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			slog.Warn("unparseable datetime", "property_id", prop.ID, "value", start, "error", err)
			return AbsentValue()
		}
		return TimeValue(t, false)
	}

	t, err := time.Parse(DateFormat, start)
	if err != nil {
		slog.Warn("unparseable date", "property_id", prop.ID, "value", start, "error", err)
		return AbsentValue()
	}
	return TimeValue(t, true)
}

// decodeTimestamp parses a last_edited_time/created_time value.
func decodeTimestamp(value string) Value {
	if value == "" {
		return AbsentValue()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("unparseable timestamp", "value", value, "error", err)
		return AbsentValue()
	}
	return TimeValue(t, false)
}

// EncodeProperty locates the property with the given id and overwrites its
// type-specific payload with the value. The schema name the template may
// still carry is stripped, since the API rejects it on writes.
func EncodeProperty(page *Page, propertyID string, value Value) error {
	key, ok := propertyKeyByID(page.Properties, propertyID)
	if !ok {
		return fmt.Errorf("encode property %q: %w", propertyID, apperrors.ErrPropertyNotFound)
	}

	prop := page.Properties[key]
	prop.Name = ""

	switch prop.Type {
	case "title":
		prop.Title = TextSpan(value.Text)
	case "rich_text":
		prop.RichText = TextSpan(value.Text)
	case "select":
		prop.Select = &SelectOption{Name: value.Text}
	case "status":
		prop.Status = &SelectOption{Name: value.Text}
	case "date":
		layout := time.RFC3339
		if value.DateOnly {
			layout = DateFormat
		}
		prop.Date = &DateValue{Start: value.Time.Format(layout)}
	case "checkbox":
		b := value.Bool
		prop.Checkbox = &b
	case "number":
		n := value.Number
		prop.Number = &n
	case "multi_select":
		options := make([]SelectOption, 0, len(value.Strings))
		for _, name := range value.Strings {
			options = append(options, SelectOption{Name: name})
		}
		prop.MultiSelect = options
	default:
		return fmt.Errorf("encode property %q (type %q): %w",
			propertyID, prop.Type, apperrors.ErrUnsupportedPropertyType)
	}

	page.Properties[key] = prop
	return nil
}

// RemoveProperty deletes the property with the given id from the page.
// Read-only and derived properties are stripped this way before a write,
// since the API rejects writes that mention them. Removing an absent id is
// a no-op.
func RemoveProperty(page *Page, propertyID string) {
	if key, ok := propertyKeyByID(page.Properties, propertyID); ok {
		delete(page.Properties, key)
	}
}

// KeepProperties deletes every property whose id is not in keep. Mutation
// payloads mention only the properties they actually set.
func KeepProperties(page *Page, keep ...string) {
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	for key, prop := range page.Properties {
		if !kept[prop.ID] {
			delete(page.Properties, key)
		}
	}
}
