package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWorker_hintsAndSummary(t *testing.T) {
	client := &MockClient{}
	client.On("Hints", mock.Anything, "A: x", "asthma").Return("ask about inhaler", nil)
	client.On("Summarize", mock.Anything, "A: x").Return("", errors.New("boom"))

	w := NewWorker(client, 2, 4, time.Second)
	w.Start(context.Background())

	hints := make(chan string, 1)
	require.True(t, w.Hints("A: x", "asthma", func(s string, err error) {
		assert.NoError(t, err)
		hints <- s
	}))
	summary := make(chan error, 1)
	require.True(t, w.Summarize("A: x", func(_ string, err error) { summary <- err }))

	assert.Equal(t, "ask about inhaler", <-hints)
	assert.EqualError(t, <-summary, "boom")

	w.Close()
	client.AssertExpectations(t)
}

func TestWorker_fullQueueRejects(t *testing.T) {
	client := &MockClient{}
	w := NewWorker(client, 1, 1, 0)
	// not started: the single queue slot fills and stays full
	assert.True(t, w.Summarize("a", func(string, error) {}))
	assert.False(t, w.Summarize("b", func(string, error) {}))
}

func TestWorker_closedRejects(t *testing.T) {
	w := NewWorker(&MockClient{}, 1, 1, 0)
	w.Start(context.Background())
	w.Close()
	w.Close()
	assert.False(t, w.Hints("a", "", func(string, error) {}))
}

func TestWorker_timeoutReachesClient(t *testing.T) {
	client := &MockClient{}
	client.On("Summarize", mock.Anything, "t").Return("ok", nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	})
	w := NewWorker(client, 1, 1, time.Minute)
	w.Start(context.Background())
	done := make(chan struct{})
	require.True(t, w.Summarize("t", func(string, error) { close(done) }))
	<-done
	w.Close()
}
