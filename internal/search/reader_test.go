package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the callback trace of one search.
type recorder struct {
	calls   []string
	results []PlatformResult
	err     error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTotal: func(total int) {
			r.calls = append(r.calls, fmt.Sprintf("total:%d", total))
		},
		OnProgress: func(completed, total int) {
			r.calls = append(r.calls, fmt.Sprintf("progress:%d/%d", completed, total))
		},
		OnPlatformResult: func(result PlatformResult) {
			r.calls = append(r.calls, "result:"+result.Name)
			r.results = append(r.results, result)
		},
		OnComplete: func() {
			r.calls = append(r.calls, "complete")
		},
		OnError: func(err error) {
			r.calls = append(r.calls, "error:"+string(KindOf(err)))
			r.err = err
		},
	}
}

// sliceSource replays fixed chunks, then io.EOF.
type sliceSource struct {
	chunks [][]byte
	reads  int
	err    error // returned instead of io.EOF when set
}

func (s *sliceSource) Next(_ context.Context) ([]byte, error) {
	if s.reads >= len(s.chunks) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	chunk := s.chunks[s.reads]
	s.reads++
	return chunk, nil
}

func chunksOf(parts ...string) *sliceSource {
	chunks := make([][]byte, len(parts))
	for i, p := range parts {
		chunks[i] = []byte(p)
	}
	return &sliceSource{chunks: chunks}
}

func splitEvery(data string, size int) *sliceSource {
	var parts []string
	for len(data) > 0 {
		n := min(size, len(data))
		parts = append(parts, data[:n])
		data = data[n:]
	}
	return chunksOf(parts...)
}

func runStream(t *testing.T, src ChunkSource, opts StreamOptions) (*recorder, Outcome) {
	t.Helper()
	rec := &recorder{}
	if opts.Host == "" {
		opts.Host = "api.test"
	}
	opts.Logger = zerolog.Nop()
	outcome := Stream(context.Background(), src, rec.callbacks(), opts)
	return rec, outcome
}

const orderedStream = "{\"total\":2}\n" +
	"{\"progress\":{\"completed\":1,\"total\":2}}\n" +
	"{\"progress\":{\"completed\":2,\"total\":2},\"result\":{\"name\":\"B\",\"color\":\"gold\",\"items\":[{\"name\":\"Game\",\"url\":\"https://b.example/g\"}]}}\n" +
	"{\"done\":true}\n"

func TestStream_OrderIndependentOfChunking(t *testing.T) {
	baseline, outcome := runStream(t, chunksOf(orderedStream), StreamOptions{})
	require.Equal(t, StateDone, outcome.State)
	require.Equal(t, []string{"total:2", "progress:1/2", "progress:2/2", "result:B", "complete"}, baseline.calls)

	for size := 1; size < len(orderedStream); size++ {
		rec, _ := runStream(t, splitEvery(orderedStream, size), StreamOptions{})
		assert.Equal(t, baseline.calls, rec.calls, "chunk size %d", size)
	}

	for cut := 1; cut < len(orderedStream); cut++ {
		rec, _ := runStream(t, chunksOf(orderedStream[:cut], orderedStream[cut:]), StreamOptions{})
		assert.Equal(t, baseline.calls, rec.calls, "cut at %d", cut)
		assert.Equal(t, baseline.results, rec.results, "cut at %d", cut)
	}
}

func TestStream_SplitLineYieldsOneTotal(t *testing.T) {
	rec, outcome := runStream(t, chunksOf(`{"total":`, "5}\n"), StreamOptions{})

	assert.Equal(t, []string{"total:5", "complete"}, rec.calls)
	assert.True(t, outcome.EndedWithoutDone)
	assert.Equal(t, 5, outcome.Progress.Total)
}

func TestStream_MalformedLineSkipped(t *testing.T) {
	rec, outcome := runStream(t, chunksOf(
		"{\"total\":1}\n",
		"{\"progress\": oops\n",
		"{\"progress\":{\"completed\":1,\"total\":1}}\n",
		"{\"done\":true}\n",
	), StreamOptions{})

	assert.Equal(t, []string{"total:1", "progress:1/1", "complete"}, rec.calls)
	assert.Nil(t, rec.err)
	assert.Nil(t, outcome.Err)
	assert.Equal(t, 1, outcome.Stats.Malformed)
	assert.Equal(t, 3, outcome.Stats.Events)
}

func TestStream_TrailingIncompleteLineDropped(t *testing.T) {
	// An unterminated final line is discarded, never parsed, even when it
	// would be a valid event on its own.
	rec, outcome := runStream(t, chunksOf("{\"total\":1}\n", `{"done"`), StreamOptions{})

	assert.Equal(t, []string{"total:1", "complete"}, rec.calls)
	assert.Equal(t, StateDone, outcome.State)
	assert.True(t, outcome.EndedWithoutDone)
	assert.Equal(t, len(`{"done"`), outcome.Stats.DroppedTrailing)

	rec, outcome = runStream(t, chunksOf("{\"total\":1}\n", `{"done":true}`), StreamOptions{})
	assert.Equal(t, []string{"total:1", "complete"}, rec.calls)
	assert.True(t, outcome.EndedWithoutDone, "unterminated done line must not count as done")
}

func TestStream_FlushTrailingLineOptIn(t *testing.T) {
	rec, outcome := runStream(t, chunksOf("{\"total\":1}\n", `{"done":true}`), StreamOptions{FlushTrailingLine: true})

	assert.Equal(t, []string{"total:1", "complete"}, rec.calls)
	assert.False(t, outcome.EndedWithoutDone)
	assert.Equal(t, 0, outcome.Stats.DroppedTrailing)

	rec, outcome = runStream(t, chunksOf("{\"total\":1}\n", `{"done"`), StreamOptions{FlushTrailingLine: true})
	assert.Equal(t, []string{"total:1", "complete"}, rec.calls)
	assert.True(t, outcome.EndedWithoutDone)
	assert.Equal(t, 1, outcome.Stats.Malformed)
}

func TestStream_DoneStopsProcessing(t *testing.T) {
	src := chunksOf(
		"{\"total\":2}\n{\"done\":true}\n{\"progress\":{\"completed\":1,\"total\":2}}\n",
		"{\"total\":9}\n",
	)
	rec, outcome := runStream(t, src, StreamOptions{})

	assert.Equal(t, []string{"total:2", "complete"}, rec.calls)
	assert.Equal(t, 1, src.reads, "no chunk may be read after done")
	assert.False(t, outcome.EndedWithoutDone)
	assert.Equal(t, StateDone, outcome.State)
}

func TestStream_ProgressPrecedesResult(t *testing.T) {
	rec, _ := runStream(t, chunksOf(
		"{\"progress\":{\"completed\":1,\"total\":1},\"result\":{\"name\":\"A\",\"items\":[]}}\n{\"done\":true}\n",
	), StreamOptions{})

	assert.Equal(t, []string{"progress:1/1", "result:A", "complete"}, rec.calls)
}

func TestStream_BlankAndUnknownLinesIgnored(t *testing.T) {
	rec, outcome := runStream(t, chunksOf("\n  \n{\"hello\":1}\r\n{\"total\":0}\r\n{\"done\":true}\r\n"), StreamOptions{})

	assert.Equal(t, []string{"total:0", "complete"}, rec.calls)
	assert.Equal(t, 1, outcome.Stats.Ignored)
	assert.Equal(t, 0, outcome.Stats.Malformed)
}

func TestStream_ReadErrorIsNetworkFailure(t *testing.T) {
	src := chunksOf("{\"total\":3}\n")
	src.err = errors.New("connection reset by peer")

	rec, outcome := runStream(t, src, StreamOptions{Host: "api.example"})

	assert.Equal(t, []string{"total:3", "error:network"}, rec.calls)
	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "api.example")
	assert.True(t, IsNetwork(rec.err))
	assert.False(t, IsAborted(rec.err))
}

// cancellingSource cancels the search after the first chunk.
type cancellingSource struct {
	inner  *sliceSource
	cancel context.CancelFunc
}

func (c *cancellingSource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := c.inner.Next(ctx)
	c.cancel()
	return chunk, err
}

func TestStream_CancellationIsAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancellingSource{
		inner:  chunksOf("{\"total\":2}\n", "{\"progress\":{\"completed\":1,\"total\":2}}\n", "{\"done\":true}\n"),
		cancel: cancel,
	}
	rec := &recorder{}
	outcome := Stream(ctx, src, rec.callbacks(), StreamOptions{Host: "api.test", Logger: zerolog.Nop()})

	assert.Equal(t, []string{"total:2", "error:aborted"}, rec.calls)
	assert.Equal(t, StateAborted, outcome.State)
	assert.True(t, IsAborted(rec.err))
	assert.False(t, IsNetwork(rec.err))
	assert.Equal(t, 1, src.inner.reads)
}

func TestStream_DeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := chunksOf("{\"total\":1}\n")
	src.err = context.DeadlineExceeded

	rec := &recorder{}
	outcome := Stream(context.Background(), src, rec.callbacks(), StreamOptions{Logger: zerolog.Nop()})
	assert.Equal(t, StateFailed, outcome.State)
	assert.True(t, IsTimeout(rec.err))

	rec = &recorder{}
	outcome = Stream(ctx, chunksOf("{\"total\":1}\n"), rec.callbacks(), StreamOptions{Logger: zerolog.Nop()})
	assert.Equal(t, StateAborted, outcome.State)
	assert.Equal(t, []string{"error:aborted"}, rec.calls)
}

func TestStream_ExactlyOneTerminalCallback(t *testing.T) {
	streams := []*sliceSource{
		chunksOf(orderedStream),
		chunksOf("{\"total\":1}\n"),
		chunksOf("{\"done\":true}\n{\"done\":true}\n"),
		{chunks: [][]byte{[]byte("{\"total\":1}\n")}, err: errors.New("boom")},
	}

	for i, src := range streams {
		rec, _ := runStream(t, src, StreamOptions{})
		terminal := 0
		for _, call := range rec.calls {
			if call == "complete" || strings.HasPrefix(call, "error:") {
				terminal++
			}
		}
		assert.Equal(t, 1, terminal, "stream %d: %v", i, rec.calls)
		last := rec.calls[len(rec.calls)-1]
		assert.True(t, last == "complete" || strings.HasPrefix(last, "error:"), "stream %d ends with %s", i, last)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateStreaming.Terminal())
}
