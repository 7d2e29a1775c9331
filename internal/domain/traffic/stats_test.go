package traffic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats_Snapshot(t *testing.T) {
	t.Run("zero value is empty", func(t *testing.T) {
		var s Stats

		snap := s.Snapshot()

		assert.Zero(t, snap.Total)
		assert.Zero(t, snap.Successful)
		assert.Zero(t, snap.Failed)
		assert.Zero(t, snap.Completed)
		assert.Zero(t, snap.TotalDuration)
	})

	t.Run("counts every outcome", func(t *testing.T) {
		var s Stats

		s.RecordAttempt()
		s.RecordAttempt()
		s.RecordAttempt()
		s.RecordSuccess(2 * time.Second)
		s.RecordCompleted()
		s.RecordSuccess(4 * time.Second)
		s.RecordCompleted()
		s.RecordFailure()
		s.RecordCompleted()

		snap := s.Snapshot()

		assert.Equal(t, int64(3), snap.Total)
		assert.Equal(t, int64(2), snap.Successful)
		assert.Equal(t, int64(1), snap.Failed)
		assert.Equal(t, int64(3), snap.Completed)
		assert.Equal(t, 6*time.Second, snap.TotalDuration)
	})
}

// TestStats_ConcurrentRecording hammers the counters from many goroutines
// and checks the terminal bookkeeping identity: every admitted session ends
// exactly once, as either a success or a failure.
func TestStats_ConcurrentRecording(t *testing.T) {
	const (
		workers    = 50
		perWorker  = 200
		totalCount = workers * perWorker
	)

	var s Stats
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.RecordAttempt()
				if (w+i)%3 == 0 {
					s.RecordFailure()
				} else {
					s.RecordSuccess(time.Millisecond)
				}
				s.RecordCompleted()
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()

	assert.Equal(t, int64(totalCount), snap.Total)
	assert.Equal(t, int64(totalCount), snap.Completed)
	assert.Equal(t, snap.Completed, snap.Successful+snap.Failed)
}

func TestStatsSnapshot_AvgSuccessDuration(t *testing.T) {
	t.Run("no successes yields zero", func(t *testing.T) {
		snap := StatsSnapshot{Failed: 3}

		assert.Zero(t, snap.AvgSuccessDuration())
	})

	t.Run("mean across successes", func(t *testing.T) {
		snap := StatsSnapshot{Successful: 4, TotalDuration: 20 * time.Second}

		assert.Equal(t, 5*time.Second, snap.AvgSuccessDuration())
	})
}
