package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/service"
)

type fileListResponse struct {
	Files            []domain.FileMetadata   `json:"files"`
	TotalFiles       int                     `json:"totalFiles"`
	AvailableOrigins []service.OriginSummary `json:"availableOrigins"`
}

type uploadResponse struct {
	Files []domain.FileMetadata `json:"files"`
	Count int                   `json:"count"`
}

// health 服务健康状态
//
// 同时带回当前的来源别名注册快照，客户端在服务重启后
// 据此重新学习自己的别名。
func (h *Handler) health(c *gin.Context) {
	Success(c, gin.H{
		"status":        "ok",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"registrations": h.files.Registrations(),
	})
}

// listFiles 获取文件列表
//
// origin 查询参数非空且不为 "all" 时只返回该来源别名的文件，
// totalFiles 随过滤结果重新计算。
func (h *Handler) listFiles(c *gin.Context) {
	files, err := h.files.ListAll()
	if err != nil {
		InternalError(c, MsgFileListFailed)
		return
	}
	origins, err := h.files.Origins()
	if err != nil {
		InternalError(c, MsgOriginsFailed)
		return
	}

	if origin := c.Query("origin"); origin != "" && origin != "all" {
		filtered := make([]domain.FileMetadata, 0, len(files))
		for _, f := range files {
			if f.OriginAlias == origin {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	Success(c, fileListResponse{
		Files:            files,
		TotalFiles:       len(files),
		AvailableOrigins: origins,
	})
}

// listOrigins 获取来源别名聚合统计及 IP/别名注册对
func (h *Handler) listOrigins(c *gin.Context) {
	origins, err := h.files.Origins()
	if err != nil {
		InternalError(c, MsgOriginsFailed)
		return
	}

	Success(c, gin.H{
		"origins":       origins,
		"count":         len(origins),
		"registeredIPs": h.files.Registrations(),
	})
}

// uploadFile 接收 multipart 上传
//
// 一个请求可以携带多个文件字段，逐个保存；任一文件失败则整个
// 请求报错，已保存的文件保留。
func (h *Handler) uploadFile(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if len(form.File) == 0 {
		BadRequest(c, MsgMissingFile)
		return
	}

	clientIP := c.ClientIP()
	uploaded := make([]domain.FileMetadata, 0)

	for field, headers := range form.File {
		for _, header := range headers {
			src, err := header.Open()
			if err != nil {
				InternalError(c, MsgFileUploadFailed)
				return
			}

			meta, err := h.files.Upload(service.UploadInput{
				OriginKey:    clientIP,
				FieldName:    field,
				OriginalName: header.Filename,
				ClientIP:     clientIP,
				Content:      src,
			})
			src.Close()
			if err != nil {
				if errors.Is(err, service.ErrEmptyUpload) {
					BadRequest(c, GetErrorMessage(err))
					return
				}
				h.logger.Error("upload failed",
					zap.String("original_name", header.Filename),
					zap.Error(err),
				)
				InternalError(c, MsgFileUploadFailed)
				return
			}
			uploaded = append(uploaded, *meta)
		}
	}

	// 推送最新文件列表给在线客户端
	if h.hub != nil {
		h.hub.NotifyFilesUpdated()
	}

	Created(c, uploadResponse{
		Files: uploaded,
		Count: len(uploaded),
	})
}

// downloadFile 下载存储文件
func (h *Handler) downloadFile(c *gin.Context) {
	filename := c.Param("filename")

	meta, err := h.files.Get(filename)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}
	path, err := h.files.Path(filename)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}

	// 下载不使用统一响应格式，直接返回文件流
	c.FileAttachment(path, meta.OriginalName)
}

// deleteFile 删除存储文件及其元数据
func (h *Handler) deleteFile(c *gin.Context) {
	filename := c.Param("filename")

	if err := h.files.Delete(filename); err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, domain.ErrUnsafeFilename), errors.Is(err, domain.ErrEmptyFilename):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgFileDeleteFailed)
		}
		return
	}

	if h.hub != nil {
		h.hub.NotifyFilesUpdated()
	}

	NoContent(c)
}
