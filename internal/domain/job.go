package domain

import (
	"errors"
	"time"
)

// JobStatus 邮件任务状态
type JobStatus string

const (
	JobStatusPending JobStatus = "pending" // 等待投递
	JobStatusSending JobStatus = "sending" // 投递中（仅存在于内存，不落盘）
	JobStatusSent    JobStatus = "sent"    // 投递成功（终态）
	JobStatusFailed  JobStatus = "failed"  // 重试耗尽（终态）
)

// MaxJobRetries 投递失败重试上限，达到后任务进入 failed 终态
const MaxJobRetries = 3

// 任务相关错误定义
var (
	ErrJobMissingID        = errors.New("job missing id")
	ErrJobMissingEmail     = errors.New("job missing email")
	ErrJobMissingFilename  = errors.New("job missing filename")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrJobTerminal         = errors.New("job already in terminal status")
)

// jobTransitions 状态机迁移表
//
// 迁移表本身就是规格：
//   pending -> sending  处理器认领任务
//   sending -> sent     投递成功（终态）
//   sending -> pending  投递失败且重试次数未达上限
//   sending -> failed   投递失败且重试次数达到上限（终态）
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusSending},
	JobStatusSending: {JobStatusSent, JobStatusPending, JobStatusFailed},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal 判断状态是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSent || s == JobStatusFailed
}

// EmailJob 一次"以邮件投递已存储文件"的请求
//
// timestamp 为创建时间，创建后不变；retryCount 只增不减；
// 进入终态的任务除按时效清理外不再变更。
type EmailJob struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Filename     string         `json:"filename"`
	FilePath     string         `json:"filePath"`
	Timestamp    time.Time      `json:"timestamp"`
	Status       JobStatus      `json:"status"`
	RetryCount   int            `json:"retryCount"`
	FileSize     int64          `json:"fileSize"`
	OriginalName string         `json:"originalName"`
	RequestedBy  string         `json:"requestedBy,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
}

// Validate 校验必填字段
func (j *EmailJob) Validate() error {
	if j.ID == "" {
		return ErrJobMissingID
	}
	if j.Email == "" {
		return ErrJobMissingEmail
	}
	if j.Filename == "" {
		return ErrJobMissingFilename
	}
	return nil
}

// Transition 按迁移表变更状态
func (j *EmailJob) Transition(to JobStatus) error {
	if j.Status.IsTerminal() {
		return ErrJobTerminal
	}
	if !CanTransition(j.Status, to) {
		return ErrInvalidTransition
	}
	j.Status = to
	return nil
}

// RecordFailure 记录一次投递失败
//
// 递增 retryCount；达到上限进入 failed 终态，否则回到 pending
// 等待下一轮处理器再次尝试。返回失败后的状态。
func (j *EmailJob) RecordFailure() JobStatus {
	j.RetryCount++
	if j.RetryCount >= MaxJobRetries {
		j.Status = JobStatusFailed
	} else {
		j.Status = JobStatusPending
	}
	return j.Status
}

// OlderThan 判断任务创建时间是否早于给定时刻
func (j *EmailJob) OlderThan(cutoff time.Time) bool {
	return j.Timestamp.Before(cutoff)
}
