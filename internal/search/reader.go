package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const readBufferSize = 32 * 1024

// State is the lifecycle position of one search.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateDone
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateAborted
}

// ChunkSource yields the response body one chunk at a time. Next returns
// io.EOF once the body is exhausted. The returned slice is only valid until
// the following call.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Stats counts what the reader saw on the wire.
type Stats struct {
	Chunks          int
	Bytes           int
	Lines           int
	Events          int
	Malformed       int
	Ignored         int
	DroppedTrailing int // bytes of unterminated text discarded at end of stream
}

// Outcome is the result of one search.
type Outcome struct {
	State    State
	Err      *Error
	Stats    Stats
	Progress Progress
	// EndedWithoutDone is set when the body ended before a done event.
	EndedWithoutDone bool
}

// StreamOptions configures the stream driver.
type StreamOptions struct {
	// Host is used in error messages.
	Host string
	// FlushTrailingLine parses an unterminated final line instead of
	// discarding it.
	FlushTrailingLine bool
	Logger            zerolog.Logger
}

// Stream drives the read loop over src until a done event, end of body,
// cancellation or a read failure. Exactly one of OnComplete or OnError is
// invoked before it returns.
func Stream(ctx context.Context, src ChunkSource, cb Callbacks, opts StreamOptions) Outcome {
	r := &streamReader{
		src:        src,
		callbacks:  cb,
		opts:       opts,
		decoder:    NewDecoder(),
		dispatcher: NewDispatcher(cb, opts.Logger),
		state:      StateStreaming,
	}
	return r.run(ctx)
}

type streamReader struct {
	src        ChunkSource
	callbacks  Callbacks
	opts       StreamOptions
	decoder    *Decoder
	dispatcher *Dispatcher
	state      State
	stats      Stats
	err        *Error
	noDone     bool
}

func (r *streamReader) run(ctx context.Context) Outcome {
	for !r.state.Terminal() {
		if ctx.Err() != nil {
			r.fail(readError(ctx, r.opts.Host, ctx.Err()))
			break
		}

		chunk, err := r.src.Next(ctx)
		if len(chunk) > 0 {
			r.stats.Chunks++
			r.stats.Bytes += len(chunk)
			if r.processLines(r.decoder.Feed(chunk)) {
				r.complete()
				break
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			r.finishAtEOF()
			break
		}
		r.fail(readError(ctx, r.opts.Host, err))
	}

	r.decoder.Reset()
	return Outcome{
		State:            r.state,
		Err:              r.err,
		Stats:            r.stats,
		Progress:         r.dispatcher.Progress(),
		EndedWithoutDone: r.noDone,
	}
}

// processLines dispatches lines in order and reports whether a done event
// was seen. Lines after the done event are not looked at.
func (r *streamReader) processLines(lines []string) bool {
	for _, line := range lines {
		if r.processLine(line) {
			return true
		}
	}
	return false
}

func (r *streamReader) processLine(line string) bool {
	r.stats.Lines++
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	ev := Classify([]byte(trimmed))
	if u, ok := ev.(UnrecognizedEvent); ok {
		if u.Malformed {
			r.stats.Malformed++
			r.opts.Logger.Debug().
				Str("line", truncate(trimmed, 200)).
				Str("reason", u.Reason).
				Msg("skipping malformed stream line")
		} else {
			r.stats.Ignored++
		}
	} else {
		r.stats.Events++
	}

	return r.dispatcher.Dispatch(ev)
}

func (r *streamReader) finishAtEOF() {
	remainder := r.decoder.Remainder()
	if strings.TrimSpace(remainder) != "" {
		if r.opts.FlushTrailingLine {
			if r.processLine(remainder) {
				r.complete()
				return
			}
		} else {
			r.stats.DroppedTrailing = len(remainder)
			r.opts.Logger.Debug().
				Int("bytes", len(remainder)).
				Msg("discarding unterminated trailing line")
		}
	}

	r.noDone = true
	r.complete()
}

func (r *streamReader) complete() {
	r.state = StateDone
	if r.callbacks.OnComplete != nil {
		r.callbacks.OnComplete()
	}
}

func (r *streamReader) fail(err *Error) {
	r.err = err
	if err.Kind == KindAborted {
		r.state = StateAborted
	} else {
		r.state = StateFailed
	}
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(err)
	}
}

// readError classifies a failure that happened while the body was being read.
func readError(ctx context.Context, host string, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return abortedError("stream", host, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return timeoutError("stream", host, err)
	}
	return newError(KindNetwork, "stream", host,
		fmt.Sprintf("lost connection to the search API at %s while receiving results", host), err)
}

// bodySource adapts an io.Reader to ChunkSource with one outstanding read.
type bodySource struct {
	r   io.Reader
	buf []byte
}

func newBodySource(r io.Reader) *bodySource {
	return &bodySource{r: r, buf: make([]byte, readBufferSize)}
}

func (b *bodySource) Next(_ context.Context) ([]byte, error) {
	n, err := b.r.Read(b.buf)
	return b.buf[:n], err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
