package util_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/weblogparser/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestHeartbeat(t *testing.T) {
	var count int32
	stop := util.StartHeartbeat(5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&count, 1)
	})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 3
	}, time.Second, time.Millisecond)

	stop()
	stopped := atomic.LoadInt32(&count)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&count))

	// calling stop twice is harmless
	stop()
}
