package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator(t *testing.T) {
	gen := NewFixedIDGenerator("run-123")
	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())

	assert.Equal(t, "test-run-default", NewFixedIDGenerator("").Generate())
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at, NewFixedClock(at).Now())
	assert.False(t, NewFixedClock(time.Time{}).Now().IsZero())
}

func TestFakeRunner(t *testing.T) {
	r := NewFakeRunner().OnOutput("echo ok", "ok\n")

	res := r.Run(context.Background(), "echo ok")
	assert.False(t, res.Failed)
	assert.Equal(t, "ok", res.Output)

	res = r.Run(context.Background(), "uname")
	assert.True(t, res.Failed)
	assert.Equal(t, 127, res.ExitCode)

	assert.Equal(t, []string{"echo ok", "uname"}, r.Calls())
}

func TestFakeRunner_ThreadSafe(t *testing.T) {
	r := NewFakeRunner().OnOutput("id", "0")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				assert.Equal(t, "0", r.Run(context.Background(), "id").Output)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Len(t, r.Calls(), 500)
}
