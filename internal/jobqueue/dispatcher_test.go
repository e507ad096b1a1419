package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherPostRunsFnAndCompletesJob(t *testing.T) {
	d := NewDispatcher(2, nil)
	job := NewJob(ActionRead, "torrent-a", 0, 0, 16384)

	var mu sync.Mutex
	var got Result
	job.OnComplete = func(res Result) {
		mu.Lock()
		defer mu.Unlock()
		got = res
	}

	d.Post(context.Background(), job, func(ctx context.Context, j *Job) (int, error) {
		return 16384, nil
	})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 16384, got.BytesTransferred)
	require.NoError(t, got.Err)
}

func TestDispatcherPostPropagatesError(t *testing.T) {
	d := NewDispatcher(1, nil)
	job := NewJob(ActionWrite, "torrent-a", 0, 0, 16384)
	wantErr := errors.New("disk full")

	done := make(chan Result, 1)
	job.OnComplete = func(res Result) { done <- res }

	d.Post(context.Background(), job, func(ctx context.Context, j *Job) (int, error) {
		return 0, wantErr
	})

	res := <-done
	require.ErrorIs(t, res.Err, wantErr)
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	d := NewDispatcher(1, nil)

	var mu sync.Mutex
	var active, maxActive int
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		job := NewJob(ActionRead, "torrent-a", i, 0, 16384)
		job.OnComplete = func(Result) { wg.Done() }
		d.Post(context.Background(), job, func(ctx context.Context, j *Job) (int, error) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			return 0, nil
		})
	}

	wg.Wait()
	require.LessOrEqual(t, maxActive, 1)
}
