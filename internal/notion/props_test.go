package notion

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ntodo/ntodo/internal/apperrors"
)

// pageFromJSON builds a page from raw wire JSON.
func pageFromJSON(t *testing.T, data string) *Page {
	t.Helper()

	var page Page
	if err := json.Unmarshal([]byte(data), &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	return &page
}

func TestDecodePropertyLookupByEmbeddedID(t *testing.T) {
	t.Parallel()

	// The map key is the display name and changes on rename; the embedded
	// id is what decode must match on.
	page := pageFromJSON(t, `{
		"id": "page-1",
		"properties": {
			"Totally Renamed Column": {
				"id": "Np%5D%7D",
				"type": "checkbox",
				"checkbox": true
			}
		}
	}`)

	got, err := DecodeProperty(page, "Np%5D%7D")
	if err != nil {
		t.Fatalf("DecodeProperty: %v", err)
	}
	if got.Kind != KindBool || !got.Bool {
		t.Errorf("DecodeProperty = %+v, want bool true", got)
	}

	// Looking up by the display name must fail.
	if _, err := DecodeProperty(page, "Totally Renamed Column"); !errors.Is(err, apperrors.ErrPropertyNotFound) {
		t.Errorf("lookup by display name: got %v, want ErrPropertyNotFound", err)
	}
}

func TestDecodePropertyNotFound(t *testing.T) {
	t.Parallel()

	page := &Page{Properties: map[string]Property{}}
	_, err := DecodeProperty(page, "nope")
	if !errors.Is(err, apperrors.ErrPropertyNotFound) {
		t.Errorf("got %v, want ErrPropertyNotFound", err)
	}
}

func TestDecodePropertyVariants(t *testing.T) {
	t.Parallel()

	page := pageFromJSON(t, `{
		"id": "page-1",
		"properties": {
			"Name": {
				"id": "title",
				"type": "title",
				"title": [
					{"type": "text", "plain_text": "Buy milk", "text": {"content": "Buy milk"}}
				]
			},
			"Notes": {
				"id": "notes",
				"type": "rich_text",
				"rich_text": [
					{"type": "text", "plain_text": "first line"},
					{"type": "text", "plain_text": "second line"}
				]
			},
			"Status": {
				"id": "st",
				"type": "status",
				"status": {"id": "abc", "name": "In progress", "color": "blue"}
			},
			"Priority": {
				"id": "pr",
				"type": "select",
				"select": {"name": "High"}
			},
			"Empty Priority": {
				"id": "pr2",
				"type": "select",
				"select": null
			},
			"Tags": {
				"id": "tg",
				"type": "multi_select",
				"multi_select": [{"name": "home"}, {"name": "urgent"}]
			},
			"Blocked By": {
				"id": "rel",
				"type": "relation",
				"relation": [{"id": "page-2"}, {"id": "page-3"}]
			},
			"Estimate": {
				"id": "est",
				"type": "number",
				"number": 2.5
			},
			"Done Flag": {
				"id": "df",
				"type": "checkbox",
				"checkbox": false
			},
			"Computed": {
				"id": "fx",
				"type": "formula",
				"formula": {"type": "number", "number": 7}
			},
			"Rolled": {
				"id": "ru",
				"type": "rollup",
				"rollup": {
					"type": "array",
					"array": [
						{"type": "number", "number": 1},
						{"type": "number", "number": 2}
					]
				}
			},
			"Editor": {
				"id": "ed",
				"type": "last_edited_by",
				"last_edited_by": {"object": "user", "id": "u1", "name": "Jane"}
			},
			"Edited At": {
				"id": "et",
				"type": "last_edited_time",
				"last_edited_time": "2024-03-01T09:30:00.000Z"
			},
			"Exotic": {
				"id": "xx",
				"type": "files"
			}
		}
	}`)

	tests := []struct {
		name       string
		propertyID string
		check      func(t *testing.T, v Value)
	}{
		{
			name:       "title",
			propertyID: "title",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindText || v.Text != "Buy milk" {
					t.Errorf("got %+v, want text %q", v, "Buy milk")
				}
			},
		},
		{
			name:       "rich text joins spans with newlines",
			propertyID: "notes",
			check: func(t *testing.T, v Value) {
				if v.Text != "first line\nsecond line" {
					t.Errorf("got %q", v.Text)
				}
			},
		},
		{
			name:       "status returns the option name",
			propertyID: "st",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindText || v.Text != "In progress" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "select returns the option name",
			propertyID: "pr",
			check: func(t *testing.T, v Value) {
				if v.Text != "High" {
					t.Errorf("got %q", v.Text)
				}
			},
		},
		{
			name:       "null select is absent",
			propertyID: "pr2",
			check: func(t *testing.T, v Value) {
				if !v.IsAbsent() {
					t.Errorf("got %+v, want absent", v)
				}
			},
		},
		{
			name:       "multi select returns ordered names",
			propertyID: "tg",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindStrings || len(v.Strings) != 2 || v.Strings[0] != "home" || v.Strings[1] != "urgent" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "relation returns ordered page ids",
			propertyID: "rel",
			check: func(t *testing.T, v Value) {
				if len(v.Strings) != 2 || v.Strings[0] != "page-2" || v.Strings[1] != "page-3" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "number",
			propertyID: "est",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindNumber || v.Number != 2.5 {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "checkbox false is a real value",
			propertyID: "df",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindBool || v.Bool {
					t.Errorf("got %+v, want bool false", v)
				}
			},
		},
		{
			name:       "formula recurses into the wrapped value",
			propertyID: "fx",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindNumber || v.Number != 7 {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "rollup array recurses per item",
			propertyID: "ru",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindList || len(v.List) != 2 || v.List[1].Number != 2 {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "last edited by returns the display name",
			propertyID: "ed",
			check: func(t *testing.T, v Value) {
				if v.Text != "Jane" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:       "last edited time parses",
			propertyID: "et",
			check: func(t *testing.T, v Value) {
				want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
				if v.Kind != KindTime || !v.Time.Equal(want) {
					t.Errorf("got %+v, want %v", v, want)
				}
			},
		},
		{
			name:       "unsupported type degrades to absent",
			propertyID: "xx",
			check: func(t *testing.T, v Value) {
				if !v.IsAbsent() {
					t.Errorf("got %+v, want absent", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := DecodeProperty(page, tt.propertyID)
			if err != nil {
				t.Fatalf("DecodeProperty(%q): %v", tt.propertyID, err)
			}
			tt.check(t, v)
		})
	}
}

func TestDecodeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		want     time.Time
		dateOnly bool
		absent   bool
	}{
		{
			name:     "date only",
			payload:  `{"id": "d", "type": "date", "date": {"start": "2024-03-15"}}`,
			want:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			dateOnly: true,
		},
		{
			name:    "datetime",
			payload: `{"id": "d", "type": "date", "date": {"start": "2024-03-15T18:30:00.000+01:00"}}`,
			want:    time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC),
		},
		{
			name:    "null date is absent, not an error",
			payload: `{"id": "d", "type": "date", "date": null}`,
			absent:  true,
		},
		{
			name:    "garbage start is absent, not an error",
			payload: `{"id": "d", "type": "date", "date": {"start": "soon"}}`,
			absent:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := pageFromJSON(t, `{"id": "p", "properties": {"Due": `+tt.payload+`}}`)
			v, err := DecodeProperty(page, "d")
			if err != nil {
				t.Fatalf("DecodeProperty: %v", err)
			}

			if tt.absent {
				if !v.IsAbsent() {
					t.Errorf("got %+v, want absent", v)
				}
				return
			}

			if v.Kind != KindTime || !v.Time.Equal(tt.want) {
				t.Errorf("got %+v, want %v", v, tt.want)
			}
			if v.DateOnly != tt.dateOnly {
				t.Errorf("DateOnly = %v, want %v", v.DateOnly, tt.dateOnly)
			}
		})
	}
}

// newTemplate builds a schema-shaped page the way the template cache does:
// type metadata only, display name still attached.
func newTemplate() *Page {
	return &Page{
		Parent: &Parent{Type: "database_id", DatabaseID: "db-1"},
		Properties: map[string]Property{
			"Name":     {ID: "title", Type: "title", Name: "Name"},
			"Notes":    {ID: "notes", Type: "rich_text", Name: "Notes"},
			"Status":   {ID: "st", Type: "status", Name: "Status"},
			"Priority": {ID: "pr", Type: "select", Name: "Priority"},
			"Due":      {ID: "d", Type: "date", Name: "Due"},
			"Done":     {ID: "df", Type: "checkbox", Name: "Done"},
			"Estimate": {ID: "est", Type: "number", Name: "Estimate"},
			"Tags":     {ID: "tg", Type: "multi_select", Name: "Tags"},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		propertyID string
		value      Value
	}{
		{name: "title", propertyID: "title", value: TextValue("Water the plants")},
		{name: "rich text", propertyID: "notes", value: TextValue("use the small can")},
		{name: "status", propertyID: "st", value: TextValue("In progress")},
		{name: "select", propertyID: "pr", value: TextValue("High")},
		{name: "date only", propertyID: "d", value: TimeValue(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true)},
		{name: "datetime", propertyID: "d", value: TimeValue(time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC), false)},
		{name: "checkbox", propertyID: "df", value: BoolValue(true)},
		{name: "number", propertyID: "est", value: NumberValue(3)},
		{name: "multi select", propertyID: "tg", value: StringsValue([]string{"a", "b"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := newTemplate()
			if err := EncodeProperty(page, tt.propertyID, tt.value); err != nil {
				t.Fatalf("EncodeProperty: %v", err)
			}

			got, err := DecodeProperty(page, tt.propertyID)
			if err != nil {
				t.Fatalf("DecodeProperty: %v", err)
			}

			if got.Kind != tt.value.Kind {
				t.Fatalf("round trip kind = %v, want %v (%+v)", got.Kind, tt.value.Kind, got)
			}

			switch tt.value.Kind {
			case KindTime:
				if !got.Time.Equal(tt.value.Time) || got.DateOnly != tt.value.DateOnly {
					t.Errorf("round trip = %+v, want %+v", got, tt.value)
				}
			case KindStrings:
				if len(got.Strings) != len(tt.value.Strings) {
					t.Fatalf("round trip = %+v, want %+v", got, tt.value)
				}
				for i := range got.Strings {
					if got.Strings[i] != tt.value.Strings[i] {
						t.Errorf("round trip = %+v, want %+v", got, tt.value)
					}
				}
			case KindText:
				if got.Text != tt.value.Text {
					t.Errorf("round trip = %q, want %q", got.Text, tt.value.Text)
				}
			case KindBool:
				if got.Bool != tt.value.Bool {
					t.Errorf("round trip = %v, want %v", got.Bool, tt.value.Bool)
				}
			case KindNumber:
				if got.Number != tt.value.Number {
					t.Errorf("round trip = %v, want %v", got.Number, tt.value.Number)
				}
			}
		})
	}
}

func TestEncodeStripsSchemaName(t *testing.T) {
	t.Parallel()

	page := newTemplate()
	if err := EncodeProperty(page, "title", TextValue("x")); err != nil {
		t.Fatalf("EncodeProperty: %v", err)
	}

	data, err := json.Marshal(page.Properties["Name"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["name"]; present {
		t.Errorf("encoded property still carries the schema name: %s", data)
	}
}

func TestEncodePropertyErrors(t *testing.T) {
	t.Parallel()

	page := newTemplate()

	if err := EncodeProperty(page, "missing", TextValue("x")); !errors.Is(err, apperrors.ErrPropertyNotFound) {
		t.Errorf("missing id: got %v, want ErrPropertyNotFound", err)
	}

	page.Properties["Weird"] = Property{ID: "w", Type: "files"}
	if err := EncodeProperty(page, "w", TextValue("x")); !errors.Is(err, apperrors.ErrUnsupportedPropertyType) {
		t.Errorf("unsupported type: got %v, want ErrUnsupportedPropertyType", err)
	}
}

func TestRemoveAndKeepProperties(t *testing.T) {
	t.Parallel()

	page := newTemplate()

	RemoveProperty(page, "est")
	if _, ok := page.Properties["Estimate"]; ok {
		t.Error("Estimate should be gone")
	}

	// Removing an absent id is a no-op.
	RemoveProperty(page, "est")

	KeepProperties(page, "title", "st")
	if len(page.Properties) != 2 {
		t.Fatalf("got %d properties, want 2: %+v", len(page.Properties), page.Properties)
	}
	if _, ok := page.Properties["Name"]; !ok {
		t.Error("Name should survive")
	}
	if _, ok := page.Properties["Status"]; !ok {
		t.Error("Status should survive")
	}
}
