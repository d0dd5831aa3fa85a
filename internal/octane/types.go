// Package octane provides a client and data types for the ALM Octane REST API.
package octane

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity is an Octane entity as returned by the REST API. Field values are
// kept as decoded JSON: strings, float64 numbers, bools, nested references
// ({"type","id","name"}) and multi-references ({"total_count","data"}).
type Entity map[string]any

// ID returns the entity id as a string.
func (e Entity) ID() string { return stringValue(e["id"]) }

// Name returns the entity name.
func (e Entity) Name() string { return stringValue(e["name"]) }

// LogicalName returns the logical_name of catalog entities (list nodes, phases).
func (e Entity) LogicalName() string { return stringValue(e["logical_name"]) }

// Ref returns the nested reference stored in field, if any.
func (e Entity) Ref(field string) (Entity, bool) {
	switch m := e[field].(type) {
	case Entity:
		return m, m != nil
	case map[string]any:
		return Entity(m), m != nil
	default:
		return nil, false
	}
}

// Reference returns the minimal {type,id} form used when an entity is sent
// as the value of a reference field.
func (e Entity) Reference() Entity {
	ref := Entity{"id": e["id"]}
	if t, ok := e["type"]; ok {
		ref["type"] = t
	}
	return ref
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// EntityList is a page of entities.
type EntityList struct {
	TotalCount int      `json:"total_count"`
	Data       []Entity `json:"data"`
}

// ListOptions selects and shapes the entities returned by a list call.
type ListOptions struct {
	Query      Query
	Fields     []string
	TextSearch *TextSearch
	Limit      int
	Offset     int
}

// TextSearch is the text_search parameter of a list call.
type TextSearch struct {
	Type string `json:"type"` // "global" or "context"
	Text string `json:"text"`
}

// FormLayout is the body of a form_layouts entity.
type FormLayout struct {
	Layout struct {
		Sections []FormSection `json:"sections"`
	} `json:"layout"`
}

// FormSection is one section of a form layout.
type FormSection struct {
	Fields []FormField `json:"fields"`
}

// FormField is one field of a form section.
type FormField struct {
	Name string `json:"name"`
}

// FieldMetadata describes one entity field.
type FieldMetadata struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	FieldType string `json:"field_type"`
}

// Field types reported by field metadata.
const (
	FieldTypeString    = "string"
	FieldTypeInteger   = "integer"
	FieldTypeReference = "reference"
	FieldTypeMemo      = "memo"
	FieldTypeBoolean   = "boolean"
	FieldTypeDateTime  = "date_time"
)

// Credentials authenticate the client. Either the user/password pair or the
// API client id/secret pair is set.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Validate reports whether exactly one usable credential pair is present.
func (c Credentials) Validate() error {
	user := c.Username != "" && c.Password != ""
	client := c.ClientID != "" && c.ClientSecret != ""
	if !user && !client {
		return fmt.Errorf("octane credentials missing: set username and password, or client id and secret")
	}
	return nil
}

// signInBody returns the JSON body of the sign_in request. The user pair
// wins when both are configured.
func (c Credentials) signInBody() map[string]string {
	if c.Username != "" && c.Password != "" {
		return map[string]string{"user": c.Username, "password": c.Password}
	}
	return map[string]string{"client_id": c.ClientID, "client_secret": c.ClientSecret}
}

// APIError is a non-2xx response from Octane.
type APIError struct {
	StatusCode  int    `json:"-"`
	ErrorCode   string `json:"error_code"`
	Description string `json:"description"`
	Body        string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("octane API returned %d: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("octane API returned %d", e.StatusCode)
}

// Unauthorized reports whether the session is missing or expired.
func (e *APIError) Unauthorized() bool { return e.StatusCode == 401 }
