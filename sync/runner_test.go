package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerRunSource(t *testing.T) {
	store := newTestStore(t)
	runner := NewRunner(NewOrchestrator(Options{Store: store}))
	runner.Register("fake", func(context.Context) (Source, error) {
		return &fakeSource{name: "fake", items: outreachItems(2)}, nil
	})
	runner.Register("broken", func(context.Context) (Source, error) {
		return nil, ErrNoCredentials
	})

	assert.Equal(t, []string{"broken", "fake"}, runner.Sources())

	run, err := runner.RunSource(context.Background(), "fake", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, run.NeedsReview)

	_, err = runner.RunSource(context.Background(), "broken", RunOptions{})
	assert.True(t, errors.Is(err, ErrNoCredentials))

	_, err = runner.RunSource(context.Background(), "missing", RunOptions{})
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestRunnerRejectsOverlappingRuns(t *testing.T) {
	store := newTestStore(t)
	runner := NewRunner(NewOrchestrator(Options{Store: store}))

	started := make(chan struct{})
	release := make(chan struct{})
	runner.Register("slow", func(context.Context) (Source, error) {
		close(started)
		<-release
		return &fakeSource{name: "slow"}, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := runner.RunSource(context.Background(), "slow", RunOptions{})
		done <- err
	}()

	<-started
	_, err := runner.RunSource(context.Background(), "slow", RunOptions{})
	assert.True(t, errors.Is(err, ErrRunInProgress))

	close(release)
	require.NoError(t, <-done)
}
