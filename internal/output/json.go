package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes pretty-printed JSON output.
type JSONWriter struct {
	w     *bufio.Writer
	items []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		w:     bufio.NewWriter(w),
		items: make([]any, 0),
	}
}

// Write buffers a single item for output.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Flush writes the buffered items. A single item is emitted directly, more
// than one as an array.
func (w *JSONWriter) Flush() error {
	var output []byte
	var err error

	if len(w.items) == 1 {
		output, err = json.MarshalIndent(w.items[0], "", "  ")
	} else {
		output, err = json.MarshalIndent(w.items, "", "  ")
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	return w.w.Flush()
}

// Close flushes and closes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}
