package httptransport

import (
	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 文件错误
	service.ErrFileNotFound:    "文件不存在",
	service.ErrEmptyUpload:     "上传内容为空",
	domain.ErrEmptyFilename:    "文件名不能为空",
	domain.ErrUnsafeFilename:   "文件名包含非法路径字符",

	// 邮件错误
	service.ErrJobNotFound:  "投递任务不存在",
	domain.ErrInvalidEmail:  "邮箱地址格式无效",
	domain.ErrEmailTooLong:  "邮箱地址过长",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgFileTooLarge     = "文件超出大小限制"
	MsgMissingFile      = "请求中没有文件"

	// 文件相关
	MsgFileUploadFailed = "文件上传失败"
	MsgFileNotFound     = "文件不存在"
	MsgFileListFailed   = "获取文件列表失败"
	MsgFileDeleteFailed = "删除文件失败"
	MsgOriginsFailed    = "获取来源列表失败"

	// 邮件相关
	MsgEmailQueueFailed  = "邮件任务入队失败"
	MsgJobNotFound       = "投递任务不存在"
	MsgQueueStatsFailed  = "获取队列状态失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
