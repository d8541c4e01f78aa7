package scheduler_test

import (
	"context"
	"testing"
	"time"

	"settlement-service/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerHandler_RunsNamedJob(t *testing.T) {
	s, _, _ := newScheduler(scheduler.Config{})
	runs := 0
	s.Register(funcJob{name: "subscription-expiry", fn: func(context.Context, time.Time) error {
		runs++
		return nil
	}}, nil)

	handler := s.TriggerHandler()
	require.NoError(t, handler(context.Background(), `{"job":"subscription-expiry"}`))
	assert.Equal(t, 1, runs)
}

func TestTriggerHandler_Rejects(t *testing.T) {
	s, _, _ := newScheduler(scheduler.Config{})
	handler := s.TriggerHandler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"job":`},
		{"missing job", `{}`},
		{"unknown job", `{"job":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, handler(context.Background(), tt.body))
		})
	}
}

func TestTriggerHandler_DropsWhileRunning(t *testing.T) {
	s, _, _ := newScheduler(scheduler.Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	s.Register(funcJob{name: "revenue-release", fn: func(context.Context, time.Time) error {
		close(started)
		<-release
		return nil
	}}, nil)

	done := make(chan error, 1)
	go func() { done <- s.RunOnce(context.Background(), "revenue-release") }()
	<-started

	assert.NoError(t, s.TriggerHandler()(context.Background(), `{"job":"revenue-release"}`))

	close(release)
	require.NoError(t, <-done)
}
