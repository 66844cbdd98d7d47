package domain

import (
	"errors"
	"time"
)

// 元数据字段校验错误定义
var (
	ErrMetadataMissingFilename = errors.New("metadata missing filename")
	ErrMetadataMissingOriginal = errors.New("metadata missing original name")
	ErrMetadataMissingDate     = errors.New("metadata missing upload date")
	ErrMetadataNegativeSize    = errors.New("metadata size must not be negative")
)

// FileMetadata 描述一个已存储的上传文件
//
// 每个上传文件对应一条元数据记录，以存储文件名为键持久化。
// 记录在文件写入时一并创建，随文件一起删除，创建后不再修改。
type FileMetadata struct {
	Filename     string    `json:"filename"`     // 存储文件名（唯一）
	OriginalName string    `json:"originalName"` // 客户端上传时的原始文件名
	Size         int64     `json:"size"`         // 文件大小（字节）
	UploadDate   time.Time `json:"uploadDate"`   // 上传时间（UTC）
	Origin       string    `json:"origin"`       // 来源标识（网络地址）
	OriginAlias  string    `json:"originAlias"`  // 来源别名（H1、H2 ...）
	ClientIP     string    `json:"clientIP"`     // 客户端 IP
}

// Validate 校验必填字段
//
// 缺失必填字段的记录视为持久化损坏，而不是字段恰好为空。
func (m *FileMetadata) Validate() error {
	if m.Filename == "" {
		return ErrMetadataMissingFilename
	}
	if m.OriginalName == "" {
		return ErrMetadataMissingOriginal
	}
	if m.UploadDate.IsZero() {
		return ErrMetadataMissingDate
	}
	if m.Size < 0 {
		return ErrMetadataNegativeSize
	}
	return nil
}
