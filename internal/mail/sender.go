// Package mail 实现邮件投递协作方。
//
// 队列处理器通过 Sender 接口投递任务；SMTPSender 走真实中继，
// DryRunSender 用于演练模式，只记日志不做任何 I/O。
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/config"
)

// Delivery 一次投递所需的任务信息
type Delivery struct {
	Email        string
	Filename     string
	FilePath     string
	OriginalName string
	RequestedBy  string
	FileSize     int64
	Timestamp    time.Time
}

// Sender 邮件投递接口
//
// 实现必须自行限定单次投递耗时，失败通过 error 返回，
// 由调用方的状态机决定重试。
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// SMTPSender 通过 SMTP 中继投递邮件
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender 创建 SMTP 投递器
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send 投递一封带附件的邮件
//
// 一旦开始不支持中途取消：要么成功要么失败后返回，
// 超时由拨号与命令超时兜底。
func (s *SMTPSender) Send(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 附件内容必须仍在磁盘上
	content, err := os.ReadFile(d.FilePath)
	if err != nil {
		return fmt.Errorf("attachment unreadable: %w", err)
	}

	msg, err := buildMessage(s.cfg.User, d, content)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var client *smtp.Client
	if s.cfg.UseTLS {
		client, err = smtp.DialStartTLS(addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("failed to dial smtp relay %s: %w", addr, err)
	}
	defer client.Close()

	client.CommandTimeout = s.cfg.Timeout
	client.SubmissionTimeout = s.cfg.Timeout

	if err := client.Auth(sasl.NewPlainClient("", s.cfg.User, s.cfg.Password)); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}

	if err := client.SendMail(s.cfg.User, []string{d.Email}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Info("email sent",
		zap.String("email", d.Email),
		zap.String("filename", d.Filename),
	)
	return nil
}

// DryRunSender 演练模式投递器，不做任何 I/O
type DryRunSender struct {
	logger *zap.Logger
}

// NewDryRunSender 创建演练模式投递器
func NewDryRunSender(logger *zap.Logger) *DryRunSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunSender{logger: logger}
}

// Send 只记录本应发生的投递
func (s *DryRunSender) Send(_ context.Context, d Delivery) error {
	s.logger.Info("[dry run] would send email",
		zap.String("email", d.Email),
		zap.String("filename", d.Filename),
	)
	return nil
}
