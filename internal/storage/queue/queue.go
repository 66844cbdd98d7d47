// Package queue 实现邮件投递任务队列的持久化。
//
// 全部任务保存在单个 JSON 文档（data/email_queue.json）中，
// 整个文档是持久化的最小单位：读是整读，写是临时文件 + rename
// 的原子替换，读取方永远看不到半写状态。
//
// 进程内所有 load-modify-save 序列由同一把互斥锁串行化，避免
// 两个并发请求各自读到旧快照后互相覆盖。跨进程（在线服务追加、
// 稍后运行的处理器消费）不加锁 —— 既定的单写者假设：两者正常
// 运行时不会同时操作同一份队列文件。
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/storage"
)

var (
	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("job not found")
)

// Stats 队列按状态聚合的计数
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sending int `json:"sending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Queue 邮件任务队列
type Queue struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewQueue 创建队列实例
//
// 确保数据目录存在；队列文档不存在时初始化为空文档，
// 让后续消费方（包括独立运行的处理器）总能读到合法 JSON。
func NewQueue(path string, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	q := &Queue{path: path, logger: logger}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := q.Save(nil); err != nil {
			return nil, fmt.Errorf("failed to initialize queue document: %w", err)
		}
	}
	return q, nil
}

// Open 打开已有队列文件，不做目录初始化
//
// 供独立运行的处理器使用：处理器不应在错误的路径下凭空造出队列。
func Open(path string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{path: path, logger: logger}
}

// Path 返回队列文档路径
func (q *Queue) Path() string {
	return q.path
}

// Load 读取整个队列文档
//
// 文件不存在按"还没有任务"处理；文件存在但无法解析时同样返回
// 空队列 —— 容忍损坏换取可用性，属于文档化的数据丢失风险，
// 因此必须带路径告警，绝不静默。
func (q *Queue) Load() ([]domain.EmailJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked()
}

func (q *Queue) loadLocked() ([]domain.EmailJob, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.EmailJob{}, nil
		}
		return nil, fmt.Errorf("failed to read queue document: %w", err)
	}

	var jobs []domain.EmailJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		q.logger.Warn("corrupt queue document treated as empty, pending jobs may be lost",
			zap.String("path", q.path),
			zap.Error(err),
		)
		return []domain.EmailJob{}, nil
	}
	if jobs == nil {
		jobs = []domain.EmailJob{}
	}
	return jobs, nil
}

// Save 将任务序列整体写回文档（原子替换）
func (q *Queue) Save(jobs []domain.EmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.saveLocked(jobs)
}

func (q *Queue) saveLocked(jobs []domain.EmailJob) error {
	if jobs == nil {
		jobs = []domain.EmailJob{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	if err := storage.WriteFileAtomic(q.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

// Append 追加一个任务
func (q *Queue) Append(job domain.EmailJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return err
	}
	jobs = append(jobs, job)
	return q.saveLocked(jobs)
}

// Get 按 ID 查找任务
func (q *Queue) Get(id string) (*domain.EmailJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i], nil
		}
	}
	return nil, ErrJobNotFound
}

// Pending 返回全部待投递任务，保持队列顺序
func (q *Queue) Pending() ([]domain.EmailJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return nil, err
	}
	pending := make([]domain.EmailJob, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == domain.JobStatusPending {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

// UpdateStatus 更新指定任务的状态
//
// retryCount 为 nil 时保持原值。返回是否找到匹配任务。
func (q *Queue) UpdateStatus(id string, status domain.JobStatus, retryCount *int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return false, err
	}

	changed := false
	for i := range jobs {
		if jobs[i].ID == id {
			jobs[i].Status = status
			if retryCount != nil {
				jobs[i].RetryCount = *retryCount
			}
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}
	return true, q.saveLocked(jobs)
}

// Prune 清理创建时间早于保留窗口的任务
//
// 不区分状态 —— 超龄的 pending 任务同样被清理。返回清理数量。
func (q *Queue) Prune(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	kept := make([]domain.EmailJob, 0, len(jobs))
	for _, job := range jobs {
		if !job.OlderThan(cutoff) {
			kept = append(kept, job)
		}
	}

	removed := len(jobs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := q.saveLocked(kept); err != nil {
		return 0, err
	}

	q.logger.Info("old jobs pruned",
		zap.Int("removed", removed),
		zap.Duration("older_than", olderThan),
	)
	return removed, nil
}

// Stats 统计各状态任务数量
func (q *Queue) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.loadLocked()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(jobs)}
	for _, job := range jobs {
		switch job.Status {
		case domain.JobStatusPending:
			stats.Pending++
		case domain.JobStatusSending:
			stats.Sending++
		case domain.JobStatusSent:
			stats.Sent++
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
