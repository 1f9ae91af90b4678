package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/formpilot/engine/internal/session"
)

// csvHeader is the column layout of an exported action log
var csvHeader = []string{
	"id", "kind", "target", "timestamp", "page_url",
	"value", "key", "scroll_x", "scroll_y", "url", "description",
}

// ExportCSV writes a session's action log as CSV. Secret values were
// redacted at capture time, so the export never contains them.
func ExportCSV(w io.Writer, sess *session.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range sess.Actions {
		row := []string{
			a.ID,
			string(a.Kind),
			a.Target,
			a.Timestamp.Format(time.RFC3339Nano),
			a.PageURL,
			a.Payload.Value,
			a.Payload.Key,
			strconv.Itoa(a.Payload.ScrollX),
			strconv.Itoa(a.Payload.ScrollY),
			a.Payload.URL,
			a.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
