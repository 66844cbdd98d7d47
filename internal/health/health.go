package health

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/storage/queue"
)

// Handler 健康检查器
type Handler struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHandler 创建健康检查器
//
// 存活检查只看进程本身；就绪检查探测存储目录可写性
// 和队列文档可读性。
func NewHandler(uploadsDir, metadataDir string, q *queue.Queue, logger *zap.Logger) *Handler {
	h := &Handler{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	h.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))

	h.health.AddReadinessCheck("uploads-dir", dirWritableCheck(uploadsDir))
	h.health.AddReadinessCheck("metadata-dir", dirWritableCheck(metadataDir))

	if q != nil {
		h.health.AddReadinessCheck("email-queue", func() error {
			_, err := q.Load()
			return err
		})
	}

	return h
}

// dirWritableCheck 检查目录存在且可写
func dirWritableCheck(dir string) healthcheck.Check {
	return func() error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("directory not writable: %w", err)
		}
		name := probe.Name()
		probe.Close()
		os.Remove(filepath.Clean(name))
		return nil
	}
}

// LiveEndpoint 存活检查端点
func (h *Handler) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查端点
func (h *Handler) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.health.ReadyEndpoint(w, r)
}
