package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// HTMX fragments live in fragments.templ. Layout and styling belong to the
// page that embeds them; these only carry structure and hx- attributes.

// renderFragment writes an HTML fragment with the given status.
func renderFragment(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render fragment", "error", err)
	}
}

func panelID(id string) string {
	return "import-" + id
}

func actionPath(id, action string) string {
	return "/api/imports/" + id + "/" + action
}

func invalidRowsPath(id string) string {
	return actionPath(id, "invalid-rows")
}

func countsLine(c core.Counts) string {
	return fmt.Sprintf("%d rows: %d valid, %d invalid", c.Total, c.Valid, c.Invalid)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

func failureLine(m *messageView) string {
	return fmt.Sprintf("%s (%s)", m.Message, m.Code)
}

// cellText renders an absent value as an empty cell.
func cellText(row map[string]*string, field string) string {
	if p := row[field]; p != nil {
		return *p
	}
	return ""
}

func rowErrors(row invalidRowView) string {
	msgs := make([]string, len(row.Errors))
	for i, fe := range row.Errors {
		msgs[i] = fe.String()
	}
	return strings.Join(msgs, "; ")
}

func receiptLine(r *core.CommitReceipt) string {
	return fmt.Sprintf("Committed %d %s records, skipped %d invalid rows.", r.Committed, r.Schema, r.Skipped)
}
