// Package metadata 负责上传文件元数据的持久化。
//
// 每个上传文件对应一条独立的 JSON 记录（metadata/<存储文件名>.json），
// 上传目录中的文件本体才是存在性的最终依据：失去本体的记录是孤儿，
// 会在下一次全量列举时被清理。
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/storage"
)

var (
	// ErrFileNotFound 上传文件不存在
	ErrFileNotFound = errors.New("file not found")
)

// OrphanRecorder 接收孤儿记录清理事件
type OrphanRecorder interface {
	RecordOrphanReclaimed()
}

// Store 元数据存储
type Store struct {
	uploadsDir  string
	metadataDir string
	logger      *zap.Logger
	orphans     OrphanRecorder
}

// NewStore 创建元数据存储实例，确保相关目录存在
func NewStore(uploadsDir, metadataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{uploadsDir, metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Store{
		uploadsDir:  uploadsDir,
		metadataDir: metadataDir,
		logger:      logger,
	}, nil
}

// SetOrphanRecorder 设置孤儿清理事件的接收方，nil 表示不上报
func (s *Store) SetOrphanRecorder(rec OrphanRecorder) {
	s.orphans = rec
}

// UploadPath 返回存储文件名对应的上传文件路径
func (s *Store) UploadPath(filename string) string {
	return filepath.Join(s.uploadsDir, filename)
}

// metadataPath 返回存储文件名对应的元数据记录路径
func (s *Store) metadataPath(filename string) string {
	return filepath.Join(s.metadataDir, filename+".json")
}

// Put 写入一条元数据记录
//
// 文件名由服务端生成保证唯一，正常情况下不会覆盖；
// 万一重名，后写者覆盖。
func (s *Store) Put(meta *domain.FileMetadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := storage.WriteFileAtomic(s.metadataPath(meta.Filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Get 读取一条元数据记录
//
// 记录不存在、无法解析或缺失必填字段时一律按"不存在"处理
// （损坏记录降级为缺失，换取目录的整体可用性），解析失败会记录告警。
func (s *Store) Get(filename string) (*domain.FileMetadata, bool) {
	path := s.metadataPath(filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var meta domain.FileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("corrupt metadata record treated as absent",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, false
	}
	if err := meta.Validate(); err != nil {
		s.logger.Warn("metadata record missing required fields, treated as absent",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, false
	}
	return &meta, true
}

// ListAll 列举全部有效元数据
//
// 每次全量列举都会执行一次孤儿清理：没有上传文件本体的记录
// 被从磁盘删除并排除出结果。列举频率远低于上传，惰性清理足够。
func (s *Store) ListAll() ([]domain.FileMetadata, error) {
	entries, err := os.ReadDir(s.metadataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	records := make([]domain.FileMetadata, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		meta, ok := s.Get(strings.TrimSuffix(name, ".json"))
		if !ok {
			continue
		}
		records = append(records, *meta)
	}

	return s.Reconcile(records), nil
}

// Reconcile 孤儿清理
//
// 校验每条记录的上传文件本体是否存在，删除孤儿记录并返回存活部分。
// 独立成方法以便脱离列举逻辑单独测试。
func (s *Store) Reconcile(records []domain.FileMetadata) []domain.FileMetadata {
	live := make([]domain.FileMetadata, 0, len(records))
	for _, meta := range records {
		if _, err := os.Stat(s.UploadPath(meta.Filename)); err == nil {
			live = append(live, meta)
			continue
		}

		// 孤儿记录：删除失败不影响列举结果，下次列举还会再试
		if err := os.Remove(s.metadataPath(meta.Filename)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove orphan metadata",
				zap.String("filename", meta.Filename),
				zap.Error(err),
			)
		} else {
			s.logger.Info("orphan metadata removed", zap.String("filename", meta.Filename))
			if s.orphans != nil {
				s.orphans.RecordOrphanReclaimed()
			}
		}
	}
	return live
}

// Delete 删除上传文件及其元数据记录
//
// 先删文件本体再删记录：两步之间崩溃只会留下可被清理的孤儿记录，
// 而不是无元数据、无法发现的活文件。文件删除失败时不触碰记录。
func (s *Store) Delete(filename string) error {
	filePath := s.UploadPath(filename)

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	if err := os.Remove(s.metadataPath(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file removed but metadata removal failed: %w", err)
	}
	return nil
}
