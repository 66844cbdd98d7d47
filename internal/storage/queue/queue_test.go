package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neonbrush/fileserver/internal/domain"
)

// 测试辅助函数：创建临时队列
func setupTestQueue(t *testing.T) *Queue {
	tempDir, err := os.MkdirTemp("", "queue_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	q, err := NewQueue(filepath.Join(tempDir, "email_queue.json"), nil)
	require.NoError(t, err)
	return q
}

// 测试辅助函数：构造任务
func makeJob(id string, status domain.JobStatus, age time.Duration) domain.EmailJob {
	return domain.EmailJob{
		ID:           id,
		Email:        "user@example.com",
		Filename:     "report.pdf",
		FilePath:     "uploads/report.pdf",
		Timestamp:    time.Now().UTC().Add(-age),
		Status:       status,
		FileSize:     1024,
		OriginalName: "report.pdf",
	}
}

func TestNewQueue(t *testing.T) {
	q := setupTestQueue(t)

	// 创建时即初始化为空文档
	data, err := os.ReadFile(q.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	jobs, err := q.Load()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestLoad(t *testing.T) {
	t.Run("absent document is empty, not an error", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "queue_test_*")
		require.NoError(t, err)
		defer os.RemoveAll(tempDir)

		q := Open(filepath.Join(tempDir, "missing.json"), nil)
		jobs, err := q.Load()
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("corrupt document is empty, not an error", func(t *testing.T) {
		q := setupTestQueue(t)
		require.NoError(t, os.WriteFile(q.Path(), []byte("{{{"), 0644))

		jobs, err := q.Load()
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

// TestSaveLoadRoundTrip 整存整取，顺序与字段保持不变
func TestSaveLoadRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("%d jobs", n), func(t *testing.T) {
			q := setupTestQueue(t)

			jobs := make([]domain.EmailJob, 0, n)
			for i := 0; i < n; i++ {
				job := makeJob(fmt.Sprintf("email_%d_abcdefghi", i), domain.JobStatusPending, 0)
				job.RetryCount = i % 3
				job.RequestedBy = "1.2.3.4"
				job.Options = map[string]any{"note": fmt.Sprintf("n%d", i)}
				jobs = append(jobs, job)
			}
			require.NoError(t, q.Save(jobs))

			loaded, err := q.Load()
			require.NoError(t, err)
			require.Len(t, loaded, n)
			for i := range jobs {
				assert.Equal(t, jobs[i].ID, loaded[i].ID)
				assert.Equal(t, jobs[i].Email, loaded[i].Email)
				assert.Equal(t, jobs[i].Status, loaded[i].Status)
				assert.Equal(t, jobs[i].RetryCount, loaded[i].RetryCount)
				assert.True(t, jobs[i].Timestamp.Equal(loaded[i].Timestamp))
			}
		})
	}
}

func TestAppend(t *testing.T) {
	q := setupTestQueue(t)

	t.Run("appends preserve insertion order", func(t *testing.T) {
		require.NoError(t, q.Append(makeJob("email_1_aaaaaaaaa", domain.JobStatusPending, 0)))
		require.NoError(t, q.Append(makeJob("email_2_bbbbbbbbb", domain.JobStatusPending, 0)))

		jobs, err := q.Load()
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "email_1_aaaaaaaaa", jobs[0].ID)
		assert.Equal(t, "email_2_bbbbbbbbb", jobs[1].ID)
	})

	t.Run("invalid job rejected", func(t *testing.T) {
		err := q.Append(domain.EmailJob{Email: "a@b.c"})
		assert.Error(t, err)
	})

	t.Run("concurrent appends are not lost", func(t *testing.T) {
		q := setupTestQueue(t)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, q.Append(makeJob(fmt.Sprintf("email_c%d_xxxxxxxxx", i), domain.JobStatusPending, 0)))
			}(i)
		}
		wg.Wait()

		jobs, err := q.Load()
		require.NoError(t, err)
		assert.Len(t, jobs, n)
	})
}

func TestGet(t *testing.T) {
	q := setupTestQueue(t)
	require.NoError(t, q.Append(makeJob("email_1_aaaaaaaaa", domain.JobStatusPending, 0)))

	job, err := q.Get("email_1_aaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", job.Email)

	_, err = q.Get("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestUpdateStatus(t *testing.T) {
	q := setupTestQueue(t)
	require.NoError(t, q.Append(makeJob("email_1_aaaaaaaaa", domain.JobStatusPending, 0)))

	t.Run("updates status and retry count", func(t *testing.T) {
		retries := 2
		changed, err := q.UpdateStatus("email_1_aaaaaaaaa", domain.JobStatusFailed, &retries)
		require.NoError(t, err)
		assert.True(t, changed)

		job, err := q.Get("email_1_aaaaaaaaa")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Equal(t, 2, job.RetryCount)
	})

	t.Run("nil retry count keeps old value", func(t *testing.T) {
		changed, err := q.UpdateStatus("email_1_aaaaaaaaa", domain.JobStatusPending, nil)
		require.NoError(t, err)
		assert.True(t, changed)

		job, err := q.Get("email_1_aaaaaaaaa")
		require.NoError(t, err)
		assert.Equal(t, 2, job.RetryCount)
	})

	t.Run("unknown id reports no change", func(t *testing.T) {
		changed, err := q.UpdateStatus("nope", domain.JobStatusSent, nil)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestPending(t *testing.T) {
	q := setupTestQueue(t)
	require.NoError(t, q.Save([]domain.EmailJob{
		makeJob("email_1_aaaaaaaaa", domain.JobStatusSent, 0),
		makeJob("email_2_bbbbbbbbb", domain.JobStatusPending, 0),
		makeJob("email_3_ccccccccc", domain.JobStatusFailed, 0),
		makeJob("email_4_ddddddddd", domain.JobStatusPending, 0),
	}))

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "email_2_bbbbbbbbb", pending[0].ID)
	assert.Equal(t, "email_4_ddddddddd", pending[1].ID)
}

func TestPrune(t *testing.T) {
	q := setupTestQueue(t)
	require.NoError(t, q.Save([]domain.EmailJob{
		makeJob("email_old_aaaaaaa", domain.JobStatusSent, 48*time.Hour),
		makeJob("email_fresh_bbbbb", domain.JobStatusPending, 1*time.Hour),
	}))

	removed, err := q.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	jobs, err := q.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "email_fresh_bbbbb", jobs[0].ID)

	t.Run("nothing to prune is a no-op", func(t *testing.T) {
		removed, err := q.Prune(24 * time.Hour)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestStats(t *testing.T) {
	q := setupTestQueue(t)
	require.NoError(t, q.Save([]domain.EmailJob{
		makeJob("email_1_aaaaaaaaa", domain.JobStatusPending, 0),
		makeJob("email_2_bbbbbbbbb", domain.JobStatusPending, 0),
		makeJob("email_3_ccccccccc", domain.JobStatusSent, 0),
		makeJob("email_4_ddddddddd", domain.JobStatusFailed, 0),
	}))

	stats, err := q.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Pending: 2, Sending: 0, Sent: 1, Failed: 1}, stats)
}
