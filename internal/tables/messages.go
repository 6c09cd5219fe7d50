package tables

import (
	"strconv"
	"strings"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// MessageColumns is the RawMessage table header.
var MessageColumns = []string{"message_id", "timestamp_utc", "text"}

// ReadMessages reads a RawMessage table. Rows whose timestamp cannot be parsed are
// skipped and counted in skipped. Messages are returned in file order.
func ReadMessages(path string) (msgs []models.RawMessage, skipped int, err error) {
	t, err := openTable(path, []string{"timestamp_utc", "text"})
	if err != nil {
		return nil, 0, err
	}
	defer t.Close()

	msgs = []models.RawMessage{}
	err = t.each(func(rec record, line int) error {
		ts, err := models.ParseTimestamp(rec.get("timestamp_utc"))
		if err != nil {
			skipped++
			return nil
		}
		// message_id is optional; fall back to the line number
		id, err := strconv.ParseInt(rec.get("message_id"), 10, 64)
		if err != nil {
			id = int64(line)
		}
		msgs = append(msgs, models.RawMessage{ID: id, Timestamp: ts, Text: rec.get("text")})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return msgs, skipped, nil
}

// WriteMessages writes a RawMessage table. Line breaks in text are flattened to spaces.
func WriteMessages(path string, msgs []models.RawMessage) error {
	flatten := strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			models.FormatTimestamp(m.Timestamp),
			flatten.Replace(m.Text),
		})
	}
	return writeTable(path, MessageColumns, rows)
}
