package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/service"
)

type sendEmailRequest struct {
	Email    string         `json:"email" binding:"required"`
	Filename string         `json:"filename" binding:"required"`
	Options  map[string]any `json:"options"`
}

type jobResponse struct {
	JobID      string    `json:"jobId"`
	Email      string    `json:"email"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retryCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// sendEmail 登记邮件投递任务
//
// 只入队不发送，真实投递由队列处理器异步完成。
func (h *Handler) sendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	job, err := h.emails.Enqueue(service.EnqueueInput{
		Email:       req.Email,
		Filename:    req.Filename,
		RequestedBy: c.ClientIP(),
		Options:     req.Options,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, domain.ErrInvalidEmail),
			errors.Is(err, domain.ErrEmailTooLong),
			errors.Is(err, domain.ErrEmptyFilename),
			errors.Is(err, domain.ErrUnsafeFilename):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgEmailQueueFailed)
		}
		return
	}

	Created(c, toJobResponse(job))
}

// emailStatus 查询投递任务状态
func (h *Handler) emailStatus(c *gin.Context) {
	job, err := h.emails.JobStatus(c.Param("jobID"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			NotFound(c, MsgJobNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, toJobResponse(job))
}

// queueStats 查询队列聚合状态
func (h *Handler) queueStats(c *gin.Context) {
	stats, err := h.emails.QueueStats()
	if err != nil {
		InternalError(c, MsgQueueStatsFailed)
		return
	}

	Success(c, stats)
}

// recentRecipients 查询最近收件人
func (h *Handler) recentRecipients(c *gin.Context) {
	recipients := h.emails.RecentRecipients()
	Success(c, gin.H{
		"recipients": recipients,
		"count":      len(recipients),
	})
}

// toJobResponse 转换任务实体为响应体。
func toJobResponse(job *domain.EmailJob) jobResponse {
	return jobResponse{
		JobID:      job.ID,
		Email:      job.Email,
		Filename:   job.Filename,
		Status:     string(job.Status),
		RetryCount: job.RetryCount,
		Timestamp:  job.Timestamp,
	}
}
