package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // human-readable text
	FormatNDJSON               // newline-delimited JSON
	FormatChrome               // chrome://tracing JSON
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|chrome)", s)
}

// FormatForPath resolves FormatAuto from an output file name.
func FormatForPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".json"):
		return FormatChrome
	}
	return FormatText
}

type formatter struct {
	format Format
	start  time.Time
}

func newFormatter(f Format) *formatter {
	if f == FormatAuto {
		f = FormatText
	}
	return &formatter{format: f}
}

func (f *formatter) header(w io.Writer) error {
	if f.format == FormatChrome {
		_, err := io.WriteString(w, "{\"traceEvents\":[\n")
		return err
	}
	return nil
}

func (f *formatter) footer(w io.Writer) error {
	if f.format == FormatChrome {
		_, err := io.WriteString(w, "\n]}\n")
		return err
	}
	return nil
}

func (f *formatter) write(w io.Writer, ev *Event, first bool) error {
	if f.start.IsZero() {
		f.start = ev.Time
	}
	var data []byte
	switch f.format {
	case FormatNDJSON:
		data = f.ndjson(ev)
	case FormatChrome:
		data = f.chrome(ev)
		if !first {
			data = append([]byte(",\n"), data...)
		}
	default:
		data = f.text(ev)
	}
	_, err := w.Write(data)
	return err
}

func (f *formatter) ndjson(ev *Event) []byte {
	type jsonEvent struct {
		Time     string            `json:"time"`
		Seq      uint64            `json:"seq"`
		Kind     string            `json:"kind"`
		Scope    string            `json:"scope"`
		SpanID   uint64            `json:"span_id,omitempty"`
		ParentID uint64            `json:"parent_id,omitempty"`
		GID      uint64            `json:"gid,omitempty"`
		Name     string            `json:"name"`
		Detail   string            `json:"detail,omitempty"`
		Elapsed  int64             `json:"elapsed_us,omitempty"`
		Extra    map[string]string `json:"extra,omitempty"`
	}
	data, err := json.Marshal(jsonEvent{
		Time:     ev.Time.Format(time.RFC3339Nano),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Elapsed:  ev.Elapsed.Microseconds(),
		Extra:    ev.Extra,
	})
	if err != nil {
		data = []byte(fmt.Sprintf(`{"name":%q,"error":%q}`, ev.Name, err))
	}
	return append(data, '\n')
}

func (f *formatter) chrome(ev *Event) []byte {
	ph := "i"
	switch ev.Kind {
	case KindSpanBegin:
		ph = "B"
	case KindSpanEnd:
		ph = "E"
	}
	args := map[string]string{"scope": ev.Scope.String()}
	if ev.Detail != "" {
		args["detail"] = ev.Detail
	}
	for k, v := range ev.Extra {
		args[k] = v
	}
	data, err := json.Marshal(struct {
		Name string            `json:"name"`
		Ph   string            `json:"ph"`
		Ts   int64             `json:"ts"`
		Pid  int               `json:"pid"`
		Tid  uint64            `json:"tid"`
		Args map[string]string `json:"args"`
	}{ev.Name, ph, ev.Time.Sub(f.start).Microseconds(), 1, ev.GID, args})
	if err != nil {
		return []byte(fmt.Sprintf(`{"name":%q,"ph":"i","ts":0}`, ev.Name))
	}
	return data
}

// text renders "[  1.234ms] → name (detail) {k=v}".
func (f *formatter) text(ev *Event) []byte {
	var sb strings.Builder
	ms := float64(ev.Time.Sub(f.start).Microseconds()) / 1000
	fmt.Fprintf(&sb, "[%9.3fms] ", ms)
	sb.WriteString(strings.Repeat("  ", max(int(ev.Scope)-1, 0)))
	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ")
	case KindSpanEnd:
		sb.WriteString("← ")
	case KindPoint:
		sb.WriteString("• ")
	case KindHeartbeat:
		sb.WriteString("♡ ")
	}
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if ev.Kind == KindSpanEnd {
		fmt.Fprintf(&sb, " %s", ev.Elapsed.Round(time.Microsecond))
	}
	if len(ev.Extra) > 0 {
		keys := make([]string, 0, len(ev.Extra))
		for k := range ev.Extra {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + ev.Extra[k]
		}
		fmt.Fprintf(&sb, " {%s}", strings.Join(parts, ", "))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
