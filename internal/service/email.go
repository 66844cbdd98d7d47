package service

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"neonbrush/fileserver/internal/cache"
	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/storage/metadata"
	"neonbrush/fileserver/internal/storage/queue"
)

var ErrJobNotFound = errors.New("job not found")

const jobIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// EmailService 封装邮件投递任务的排队与查询。
//
// 服务只负责入队，真实投递由独立运行的队列处理器完成。
type EmailService struct {
	queue  *queue.Queue
	store  *metadata.Store
	recent *cache.RecentRecipients
	logger *zap.Logger

	mu     sync.Mutex
	random *rand.Rand
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(q *queue.Queue, store *metadata.Store, recent *cache.RecentRecipients, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		queue:  q,
		store:  store,
		recent: recent,
		logger: logger,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// generateJobID 生成任务 ID：email_<毫秒时间戳>_<9位随机小写字母数字>
func (s *EmailService) generateJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = jobIDAlphabet[s.random.Intn(len(jobIDAlphabet))]
	}
	return fmt.Sprintf("email_%d_%s", time.Now().UnixMilli(), suffix)
}

// EnqueueInput 一次邮件投递请求的输入。
type EnqueueInput struct {
	Email       string
	Filename    string
	RequestedBy string
	Options     map[string]any
}

// Enqueue 登记一个邮件投递任务。
//
// 任务立即落盘并返回，不等待投递结果；收件人同时记入
// 最近收件人缓存供前端补全。
func (s *EmailService) Enqueue(input EnqueueInput) (*domain.EmailJob, error) {
	email := strings.TrimSpace(input.Email)
	if err := domain.ValidateRecipient(email); err != nil {
		return nil, err
	}
	if err := domain.ValidateStoredFilename(input.Filename); err != nil {
		return nil, err
	}

	meta, ok := s.store.Get(input.Filename)
	if !ok {
		return nil, ErrFileNotFound
	}

	filePath := s.store.UploadPath(input.Filename)
	size := meta.Size
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	} else {
		return nil, ErrFileNotFound
	}

	job := domain.EmailJob{
		ID:           s.generateJobID(),
		Email:        email,
		Filename:     input.Filename,
		FilePath:     filePath,
		Timestamp:    time.Now().UTC(),
		Status:       domain.JobStatusPending,
		RetryCount:   0,
		FileSize:     size,
		OriginalName: meta.OriginalName,
		RequestedBy:  input.RequestedBy,
		Options:      input.Options,
	}
	if err := s.queue.Append(job); err != nil {
		return nil, err
	}

	if s.recent != nil {
		s.recent.Touch(email)
	}

	s.logger.Info("email job queued",
		zap.String("job_id", job.ID),
		zap.String("email", email),
		zap.String("filename", input.Filename),
	)
	return &job, nil
}

// JobStatus 查询任务当前状态。
func (s *EmailService) JobStatus(jobID string) (*domain.EmailJob, error) {
	job, err := s.queue.Get(jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// QueueStats 返回队列按状态聚合的计数。
func (s *EmailService) QueueStats() (queue.Stats, error) {
	return s.queue.Stats()
}

// RecentRecipients 返回最近使用过的收件人地址，按最近使用排序。
func (s *EmailService) RecentRecipients() []string {
	if s.recent == nil {
		return []string{}
	}
	return s.recent.List()
}
