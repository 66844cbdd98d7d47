package mail

import (
	"bytes"
	"fmt"

	"github.com/jhillyerd/enmime"
)

// buildMessage 构造带附件的 MIME 邮件
func buildMessage(from string, d Delivery, attachment []byte) ([]byte, error) {
	subject := fmt.Sprintf("Your NeonBrush File: %s", d.Filename)

	part, err := enmime.Builder().
		From("NeonBrush File Server", from).
		To("", d.Email).
		Subject(subject).
		HTML([]byte(buildHTML(d))).
		AddAttachment(attachment, "application/octet-stream", d.Filename).
		Build()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildHTML 生成邮件正文
func buildHTML(d Delivery) string {
	requestedBy := ""
	if d.RequestedBy != "" {
		requestedBy = fmt.Sprintf("<p><strong>Requested by:</strong> %s</p>", d.RequestedBy)
	}

	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 20px; text-align: center; color: white;">
    <h1 style="margin: 0;">NeonBrush File Server</h1>
    <p style="margin: 10px 0 0 0;">Your requested file is ready!</p>
  </div>
  <div style="padding: 30px; background: #f8f9fa;">
    <h2 style="color: #333; margin-top: 0;">File Details</h2>
    <div style="background: white; padding: 20px; border-radius: 8px; border-left: 4px solid #667eea;">
      <p><strong>Filename:</strong> %s</p>
      <p><strong>Size:</strong> %s</p>
      <p><strong>Requested:</strong> %s</p>
      %s
    </div>
    <p style="margin-top: 20px;">Your file is attached to this email. If you have any issues accessing the file, please contact support.</p>
  </div>
  <div style="background: #e9ecef; padding: 15px; text-align: center; font-size: 12px; color: #6c757d;">
    <p>This email was sent automatically from NeonBrush File Server.</p>
  </div>
</div>`,
		d.Filename,
		FormatFileSize(d.FileSize),
		d.Timestamp.Format("2006-01-02 15:04:05"),
		requestedBy,
	)
}

// FormatFileSize 将字节数格式化为人类可读形式
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "Unknown size"
	}

	value := float64(size)
	for _, unit := range []string{"Bytes", "KB", "MB", "GB"} {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f TB", value)
}
