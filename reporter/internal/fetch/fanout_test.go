package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NeverExceedsLimit(t *testing.T) {
	ids := make([]int, 25)
	for i := range ids {
		ids[i] = i + 1
	}

	var active, peak atomic.Int32
	res := Run(context.Background(), Fanout{Limit: 10}, ids, func(_ context.Context, id int) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Duration(rand.Intn(5)+1) * time.Millisecond) //nolint:gosec // test jitter
		active.Add(-1)
		return fmt.Sprintf("check-%d", id), nil
	})

	require.NoError(t, res.Err())
	assert.Equal(t, 25, res.Len())
	assert.LessOrEqual(t, peak.Load(), int32(10))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
	for _, id := range ids {
		o, ok := res.Get(id)
		require.True(t, ok, "missing id %d", id)
		assert.Equal(t, fmt.Sprintf("check-%d", id), o.Value)
	}
}

func TestRun_ResultsKeyedByIDNotCompletion(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	// Later ids finish first.
	delay := map[string]time.Duration{"a": 20 * time.Millisecond, "b": 10 * time.Millisecond, "c": 5 * time.Millisecond}

	res := Run(context.Background(), Fanout{Limit: 4}, ids, func(_ context.Context, id string) (string, error) {
		time.Sleep(delay[id])
		return "v-" + id, nil
	})

	assert.Equal(t, ids, res.IDs())
	assert.Equal(t, map[string]string{"a": "v-a", "b": "v-b", "c": "v-c", "d": "v-d"}, res.Values())
}

func TestRun_FailureIsPerEntity(t *testing.T) {
	var completed atomic.Int32
	boom := errors.New("status 500")

	res := Run(context.Background(), Fanout{Limit: 2}, []int{1, 2, 3, 4}, func(_ context.Context, id int) (int, error) {
		if id == 2 {
			return 0, boom
		}
		time.Sleep(5 * time.Millisecond)
		completed.Add(1)
		return id * 10, nil
	})

	assert.Equal(t, int32(3), completed.Load(), "siblings must finish")
	o, ok := res.Get(2)
	require.True(t, ok)
	assert.ErrorIs(t, o.Err, boom)

	err := res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var ee *EntityError[int]
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.ID)
	assert.Equal(t, map[int]int{1: 10, 3: 30, 4: 40}, res.Values())
}

func TestRun_DuplicateIDsRunOnce(t *testing.T) {
	var calls atomic.Int32
	res := Run(context.Background(), Fanout{}, []string{"x", "y", "x"}, func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		return id, nil
	})

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"x", "y"}, res.IDs())
}

func TestRun_PerOperationTimeout(t *testing.T) {
	res := Run(context.Background(), Fanout{Limit: 2, Timeout: 20 * time.Millisecond}, []string{"slow", "fast"},
		func(ctx context.Context, id string) (string, error) {
			if id == "slow" {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "ok", nil
		})

	slow, _ := res.Get("slow")
	assert.ErrorIs(t, slow.Err, context.DeadlineExceeded)
	fast, _ := res.Get("fast")
	assert.NoError(t, fast.Err)
	assert.Equal(t, "ok", fast.Value)
}

func TestRun_NoIDs(t *testing.T) {
	res := Run(context.Background(), Fanout{}, nil, func(context.Context, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	assert.Zero(t, res.Len())
	assert.NoError(t, res.Err())
}
