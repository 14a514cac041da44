package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// defaultPreviewRows bounds the rows a preview response carries. Counts
// always cover the whole file.
const defaultPreviewRows = 100

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseFields splits the comma-separated fields parameter. Empty means the
// schema's declared order.
func parseFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

type fieldView struct {
	Name     string    `json:"name"`
	Kind     core.Kind `json:"kind"`
	Required bool      `json:"required"`
	Enum     []string  `json:"enum,omitempty"`
}

type schemaView struct {
	Name       string      `json:"name"`
	Label      string      `json:"label"`
	Collection string      `json:"collection"`
	Fields     []fieldView `json:"fields"`
}

func toSchemaView(s core.RecordSchema) schemaView {
	v := schemaView{
		Name:       s.Name,
		Label:      s.Label,
		Collection: s.Target(),
		Fields:     make([]fieldView, len(s.Fields)),
	}
	for i, f := range s.Fields {
		v.Fields[i] = fieldView{Name: f.Name, Kind: f.Kind, Required: f.Required, Enum: f.EnumValues}
	}
	return v
}

type messageView struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type invalidRowView struct {
	Line   int               `json:"line"`
	Errors []core.FieldError `json:"errors"`
	Values map[string]string `json:"values"`
}

type previewView struct {
	SessionID   string               `json:"sessionId"`
	Schema      string               `json:"schema"`
	FileName    string               `json:"fileName"`
	State       core.State           `json:"state"`
	Counts      core.Counts          `json:"counts"`
	Columns     core.ColumnReport    `json:"columns"`
	Fields      []string             `json:"fields"`
	ValidRows   []map[string]*string `json:"validRows"`
	InvalidRows []invalidRowView     `json:"invalidRows"`
	Truncated   bool                 `json:"truncated"`
	Attempts    int                  `json:"attempts"`
	Failure     *messageView         `json:"failure,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// toPreviewView renders at most limit valid and limit invalid rows.
func toPreviewView(p *core.Preview, limit int) previewView {
	v := previewView{
		SessionID:   p.SessionID,
		Schema:      p.Schema.Name,
		FileName:    p.FileName,
		State:       p.State,
		Counts:      p.Counts,
		Columns:     p.Result.Columns,
		Fields:      p.Schema.FieldOrder(),
		ValidRows:   []map[string]*string{},
		InvalidRows: []invalidRowView{},
		Attempts:    p.Attempts,
		CreatedAt:   p.CreatedAt,
	}
	if p.Failure != nil {
		v.Failure = &messageView{Message: p.Failure.Message, Action: p.Failure.Action, Code: p.Failure.Code}
	}

	for i, rec := range p.Result.ValidRows {
		if i == limit {
			v.Truncated = true
			break
		}
		v.ValidRows = append(v.ValidRows, rec.Map())
	}
	for i, row := range p.Result.InvalidRows {
		if i == limit {
			v.Truncated = true
			break
		}
		v.InvalidRows = append(v.InvalidRows, invalidRowView{
			Line:   row.Line,
			Errors: row.Errors,
			Values: row.Row.Values(),
		})
	}
	return v
}

// sessionView is the list form of a preview, without rows.
type sessionView struct {
	SessionID string      `json:"sessionId"`
	Schema    string      `json:"schema"`
	FileName  string      `json:"fileName"`
	State     core.State  `json:"state"`
	Counts    core.Counts `json:"counts"`
	Attempts  int         `json:"attempts"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toSessionView(p *core.Preview) sessionView {
	return sessionView{
		SessionID: p.SessionID,
		Schema:    p.Schema.Name,
		FileName:  p.FileName,
		State:     p.State,
		Counts:    p.Counts,
		Attempts:  p.Attempts,
		CreatedAt: p.CreatedAt,
	}
}
