package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/mail"
	"neonbrush/fileserver/internal/storage/queue"
)

// fakeSender 可编程的投递桩：按收件人决定成功或失败
type fakeSender struct {
	failFor map[string]error
	sent    []mail.Delivery
}

func (f *fakeSender) Send(_ context.Context, d mail.Delivery) error {
	if err, ok := f.failFor[d.Email]; ok {
		return err
	}
	f.sent = append(f.sent, d)
	return nil
}

func newTestQueue(t *testing.T, jobs []domain.EmailJob) *queue.Queue {
	t.Helper()
	dir, err := os.MkdirTemp("", "processor-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	q, err := queue.NewQueue(filepath.Join(dir, "email_queue.json"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Save(jobs))
	return q
}

func testJob(id string, status domain.JobStatus, retries int) domain.EmailJob {
	return domain.EmailJob{
		ID:           id,
		Email:        id + "@example.com",
		Filename:     "H1_file-1-1.bin",
		FilePath:     "/tmp/H1_file-1-1.bin",
		Timestamp:    time.Now().UTC(),
		Status:       status,
		RetryCount:   retries,
		FileSize:     10,
		OriginalName: "file.bin",
	}
}

func TestProcessorRun(t *testing.T) {
	t.Run("successful delivery marks sent", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{testJob("job1", domain.JobStatusPending, 0)})
		sender := &fakeSender{}

		result, err := New(q, sender, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Pending)
		assert.Equal(t, 1, result.Sent)
		assert.Equal(t, 0, result.Failed)

		job, err := q.Get("job1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSent, job.Status)
		assert.Equal(t, 0, job.RetryCount)
	})

	t.Run("failure requeues with incremented retry count", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{testJob("job1", domain.JobStatusPending, 0)})
		sender := &fakeSender{failFor: map[string]error{
			"job1@example.com": errors.New("connection refused"),
		}}

		result, err := New(q, sender, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Retried)
		assert.Equal(t, 0, result.Failed)

		job, err := q.Get("job1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, job.Status)
		assert.Equal(t, 1, job.RetryCount)
	})

	t.Run("retry limit reached marks failed", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{testJob("job1", domain.JobStatusPending, 2)})
		sender := &fakeSender{failFor: map[string]error{
			"job1@example.com": errors.New("connection refused"),
		}}

		result, err := New(q, sender, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Retried)
		assert.Equal(t, 1, result.Failed)

		job, err := q.Get("job1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Equal(t, domain.MaxJobRetries, job.RetryCount)
	})

	t.Run("sending never persisted", func(t *testing.T) {
		jobs := make([]domain.EmailJob, 0, 6)
		for i := 0; i < 6; i++ {
			status := domain.JobStatusPending
			if i%2 == 1 {
				status = domain.JobStatusSent
			}
			jobs = append(jobs, testJob(fmt.Sprintf("job%d", i), status, 0))
		}
		q := newTestQueue(t, jobs)
		sender := &fakeSender{failFor: map[string]error{
			"job2@example.com": errors.New("timeout"),
		}}

		_, err := New(q, sender, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)

		stats, err := q.Stats()
		require.NoError(t, err)
		assert.Zero(t, stats.Sending, "sending is an in-memory status only")
	})

	t.Run("terminal jobs untouched", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{
			testJob("done", domain.JobStatusSent, 0),
			testJob("dead", domain.JobStatusFailed, 3),
			testJob("todo", domain.JobStatusPending, 0),
		})
		sender := &fakeSender{}

		result, err := New(q, sender, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Pending)
		assert.Equal(t, 1, result.Sent)

		done, err := q.Get("done")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSent, done.Status)

		dead, err := q.Get("dead")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, dead.Status)
		assert.Equal(t, 3, dead.RetryCount)
	})

	t.Run("empty queue writes nothing", func(t *testing.T) {
		q := newTestQueue(t, nil)
		before, err := os.Stat(q.Path())
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		result, err := New(q, &fakeSender{}, zap.NewNop()).Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Pending)

		after, err := os.Stat(q.Path())
		require.NoError(t, err)
		assert.Equal(t, before.ModTime(), after.ModTime(), "a pass with no pending jobs must not rewrite the document")
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{testJob("job1", domain.JobStatusPending, 0)})
		sender := &fakeSender{}
		p := New(q, sender, zap.NewNop())

		_, err := p.Run(context.Background())
		require.NoError(t, err)

		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Pending)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("dry run marks sent without delay", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{
			testJob("job1", domain.JobStatusPending, 0),
			testJob("job2", domain.JobStatusPending, 0),
			testJob("job3", domain.JobStatusPending, 0),
		})
		p := New(q, mail.NewDryRunSender(zap.NewNop()), zap.NewNop(),
			WithSendDelay(time.Hour),
			WithDryRun(true),
		)

		start := time.Now()
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Sent)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("cancelled context keeps remaining jobs pending", func(t *testing.T) {
		q := newTestQueue(t, []domain.EmailJob{
			testJob("job1", domain.JobStatusPending, 0),
			testJob("job2", domain.JobStatusPending, 0),
		})
		p := New(q, &fakeSender{}, zap.NewNop(), WithSendDelay(time.Hour))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		result, err := p.Run(ctx)
		require.Error(t, err)

		stats, err2 := q.Stats()
		require.NoError(t, err2)
		assert.Zero(t, stats.Sending)
		assert.Equal(t, result.Sent, stats.Sent)
		assert.Equal(t, 2-result.Sent, stats.Pending)
	})
}
