package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// EventKind tags the decoded shape of one stream line.
type EventKind int

const (
	KindUnrecognized EventKind = iota
	KindTotal
	KindProgress
	KindResult
	KindDone
)

func (k EventKind) String() string {
	switch k {
	case KindTotal:
		return "total"
	case KindProgress:
		return "progress"
	case KindResult:
		return "result"
	case KindDone:
		return "done"
	default:
		return "unrecognized"
	}
}

// Event is one classified stream line.
type Event interface {
	Kind() EventKind
}

// TotalEvent declares how many platforms the server will query.
type TotalEvent struct {
	Total int
}

// ProgressEvent reports platform completion without a payload.
type ProgressEvent struct {
	Completed int
	Total     int
}

// ResultEvent reports completion together with one platform's outcome.
type ResultEvent struct {
	Completed int
	Total     int
	Result    PlatformResult
}

// DoneEvent marks the end of the stream.
type DoneEvent struct{}

// UnrecognizedEvent is any line that matches no known shape. Malformed is
// set when the line is not valid JSON at all.
type UnrecognizedEvent struct {
	Reason    string
	Malformed bool
}

func (TotalEvent) Kind() EventKind        { return KindTotal }
func (ProgressEvent) Kind() EventKind     { return KindProgress }
func (ResultEvent) Kind() EventKind       { return KindResult }
func (DoneEvent) Kind() EventKind         { return KindDone }
func (UnrecognizedEvent) Kind() EventKind { return KindUnrecognized }

type progressPayload struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type resultPayload struct {
	Name    string        `json:"name"`
	Color   string        `json:"color"`
	URL     string        `json:"url"`
	Website string        `json:"website"`
	Items   []itemPayload `json:"items"`
	Tags    []string      `json:"tags"`
	Error   string        `json:"error"`
}

type itemPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Classify decodes one line into an Event. It never fails: lines that are
// not JSON objects, or whose recognized fields have the wrong shape, come
// back as UnrecognizedEvent.
//
// Rules are applied in order: numeric total without progress, progress with
// result, progress alone, done === true.
func Classify(line []byte) Event {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return UnrecognizedEvent{Reason: err.Error(), Malformed: true}
		}
		return UnrecognizedEvent{Reason: "not a JSON object"}
	}
	if obj == nil {
		return UnrecognizedEvent{Reason: "not a JSON object"}
	}

	rawProgress, hasProgress := present(obj, "progress")

	if rawTotal, ok := present(obj, "total"); ok && !hasProgress {
		var total float64
		if err := json.Unmarshal(rawTotal, &total); err == nil {
			return TotalEvent{Total: int(total)}
		}
	}

	if hasProgress {
		var progress progressPayload
		if err := json.Unmarshal(rawProgress, &progress); err != nil {
			return UnrecognizedEvent{Reason: "invalid progress: " + err.Error()}
		}

		if rawResult, ok := present(obj, "result"); ok {
			var result resultPayload
			if err := json.Unmarshal(rawResult, &result); err != nil {
				return UnrecognizedEvent{Reason: "invalid result: " + err.Error()}
			}
			return ResultEvent{
				Completed: progress.Completed,
				Total:     progress.Total,
				Result:    normalizeResult(result),
			}
		}

		return ProgressEvent{Completed: progress.Completed, Total: progress.Total}
	}

	if rawDone, ok := obj["done"]; ok {
		var done bool
		if err := json.Unmarshal(rawDone, &done); err == nil && done {
			return DoneEvent{}
		}
	}

	return UnrecognizedEvent{Reason: "unknown event shape"}
}

// present returns the raw value of key when it exists and is not JSON null.
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}
