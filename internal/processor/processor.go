// Package processor 实现邮件队列的批处理器。
//
// 处理器以"一轮"为单位工作：整读队列文档，按队列顺序逐个尝试
// 投递 pending 任务，轮末一次性写回。sending 状态只存在于内存中
// 的这一轮之内，永远不会落盘 —— 处理器中途被杀，磁盘上的任务
// 仍是 pending，下一轮会重新认领。
package processor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/mail"
	"neonbrush/fileserver/internal/storage/queue"
)

// Result 一轮处理的统计
type Result struct {
	Pending int // 本轮开始时的待投递任务数
	Sent    int // 投递成功数
	Retried int // 失败但回到 pending 等待重试的任务数
	Failed  int // 重试耗尽进入 failed 终态的任务数
}

// Processor 邮件队列批处理器
type Processor struct {
	queue   *queue.Queue
	sender  mail.Sender
	logger  *zap.Logger
	limiter *rate.Limiter
	dryRun  bool
}

// Option 处理器可选配置
type Option func(*Processor)

// WithSendDelay 设置相邻两次投递之间的最小间隔
func WithSendDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithDryRun 启用试运行模式：跳过投递间隔，不做真实发送
// （配合 mail.DryRunSender 使用）
func WithDryRun(dryRun bool) Option {
	return func(p *Processor) {
		p.dryRun = dryRun
	}
}

// New 创建处理器
func New(q *queue.Queue, sender mail.Sender, logger *zap.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		queue:  q,
		sender: sender,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run 执行一轮处理
//
// 没有待投递任务时不产生任何写入直接返回。有任务时逐个尝试，
// 成功进入 sent，失败按重试上限回到 pending 或进入 failed，
// 最后把整份队列一次性写回。上下文取消会中断本轮：当前任务
// 回到 pending，已完成的状态变更照常落盘。
func (p *Processor) Run(ctx context.Context) (Result, error) {
	jobs, err := p.queue.Load()
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i := range jobs {
		if jobs[i].Status == domain.JobStatusPending {
			result.Pending++
		}
	}
	if result.Pending == 0 {
		p.logger.Info("no pending jobs, nothing to do")
		return result, nil
	}

	p.logger.Info("processing email queue",
		zap.Int("pending", result.Pending),
		zap.Int("total", len(jobs)),
		zap.Bool("dry_run", p.dryRun),
	)

	var ctxErr error
	for i := range jobs {
		job := &jobs[i]
		if job.Status != domain.JobStatusPending {
			continue
		}
		if ctxErr != nil {
			break
		}

		if err := job.Transition(domain.JobStatusSending); err != nil {
			// 迁移表不允许时跳过，不影响本轮其余任务
			p.logger.Warn("skipping job with unexpected status",
				zap.String("job_id", job.ID),
				zap.String("status", string(job.Status)),
				zap.Error(err),
			)
			continue
		}

		if p.limiter != nil && !p.dryRun {
			if err := p.limiter.Wait(ctx); err != nil {
				// 上下文取消：当前任务未尝试，回到 pending
				job.Status = domain.JobStatusPending
				ctxErr = err
				break
			}
		}

		delivery := mail.Delivery{
			Email:        job.Email,
			Filename:     job.Filename,
			FilePath:     job.FilePath,
			OriginalName: job.OriginalName,
			RequestedBy:  job.RequestedBy,
			FileSize:     job.FileSize,
			Timestamp:    job.Timestamp,
		}

		if err := p.sender.Send(ctx, delivery); err != nil {
			status := job.RecordFailure()
			if status == domain.JobStatusFailed {
				result.Failed++
				p.logger.Error("job failed permanently",
					zap.String("job_id", job.ID),
					zap.String("email", job.Email),
					zap.Int("retry_count", job.RetryCount),
					zap.Error(err),
				)
			} else {
				result.Retried++
				p.logger.Warn("delivery failed, job requeued",
					zap.String("job_id", job.ID),
					zap.String("email", job.Email),
					zap.Int("retry_count", job.RetryCount),
					zap.Error(err),
				)
			}
			continue
		}

		job.Status = domain.JobStatusSent
		result.Sent++
		p.logger.Info("email sent",
			zap.String("job_id", job.ID),
			zap.String("email", job.Email),
			zap.String("filename", job.Filename),
		)
	}

	if err := p.queue.Save(jobs); err != nil {
		return result, err
	}

	p.logger.Info("queue pass complete",
		zap.Int("sent", result.Sent),
		zap.Int("retried", result.Retried),
		zap.Int("failed", result.Failed),
	)
	return result, ctxErr
}
