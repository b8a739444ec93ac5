// Package notion provides a client for the Notion API and the property
// translation layer between Notion's wire format and plain task values.
package notion

import (
	"strings"
)

// Page represents a Notion page (one row of a task database).
//
// The Properties map is keyed by the property display name, which users can
// rename at any time. The stable identifier is the id embedded in each
// Property; all lookups go through it, never through the map key.
type Page struct {
	Object         string              `json:"object,omitempty"`
	ID             string              `json:"id,omitempty"`
	CreatedTime    string              `json:"created_time,omitempty"`
	LastEditedTime string              `json:"last_edited_time,omitempty"`
	Parent         *Parent             `json:"parent,omitempty"`
	Archived       bool                `json:"archived,omitempty"`
	InTrash        bool                `json:"in_trash,omitempty"`
	Properties     map[string]Property `json:"properties"`
	URL            string              `json:"url,omitempty"`
}

// Parent references the container of a page.
type Parent struct {
	Type       string `json:"type,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// Property represents a page property value.
//
// The Type discriminant in the wire payload determines which of the typed
// fields is present. Formula and rollup wrap another property-shaped value
// and nest arbitrarily, so both are modeled as a nested *Property.
type Property struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`

	// Name is only present on schema introspection results. It must be
	// stripped before a property is sent back to the API.
	Name string `json:"name,omitempty"`

	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Checkbox    *bool          `json:"checkbox,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
	Relation    []RelationRef  `json:"relation,omitempty"`
	People      []User         `json:"people,omitempty"`

	// Formula and rollup results wrap another property value.
	Formula *Property  `json:"formula,omitempty"`
	Rollup  *Property  `json:"rollup,omitempty"`
	Array   []Property `json:"array,omitempty"`

	// Scalar formula results use the result type as the discriminant.
	String  *string `json:"string,omitempty"`
	Boolean *bool   `json:"boolean,omitempty"`

	LastEditedBy   *User  `json:"last_edited_by,omitempty"`
	LastEditedTime string `json:"last_edited_time,omitempty"`
	CreatedTime    string `json:"created_time,omitempty"`
}

// RichText represents one span of formatted text.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	Href      *string      `json:"href,omitempty"`
}

// TextContent contains the writable text payload of a rich text span.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link represents a URL link inside a text span.
type Link struct {
	URL string `json:"url"`
}

// TextSpan builds a single writable text span from a flat string.
// Any rich formatting a property previously carried is discarded; the task
// model has no rich text.
func TextSpan(content string) []RichText {
	return []RichText{{
		Type: "text",
		Text: &TextContent{Content: content},
	}}
}

// PlainText flattens rich text spans into a single string, newline
// separated. A span written by TextSpan has no plain_text yet, so the
// writable content is the fallback.
func PlainText(spans []RichText) string {
	var builder strings.Builder
	for i := range spans {
		if i > 0 {
			builder.WriteString("\n")
		}
		text := spans[i].PlainText
		if text == "" && spans[i].Text != nil {
			text = spans[i].Text.Content
		}
		builder.WriteString(text)
	}
	return builder.String()
}

// SelectOption represents a select, multi-select or status option.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// DateValue represents a date property value. Start is either a plain ISO
// date (10 characters) or a full ISO-8601 timestamp.
type DateValue struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// RelationRef references a related page.
type RelationRef struct {
	ID string `json:"id"`
}

// User represents a Notion user reference.
type User struct {
	Object string `json:"object,omitempty"`
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Database represents a database schema response. Property values here are
// configuration objects, not page values; only the id, name and type matter
// for building the task template.
type Database struct {
	Object     string                    `json:"object,omitempty"`
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title,omitempty"`
	Properties map[string]SchemaProperty `json:"properties"`
}

// SchemaProperty is one property definition from a database schema.
type SchemaProperty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResponse represents the response from querying a database.
type QueryResponse struct {
	Object     string  `json:"object,omitempty"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// APIError represents a Notion API error payload.
type APIError struct {
	Object  string `json:"object,omitempty"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}
