package service

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"neonbrush/fileserver/internal/domain"
	"neonbrush/fileserver/internal/registry"
	"neonbrush/fileserver/internal/storage/metadata"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrEmptyUpload  = errors.New("empty upload")
)

// FileService 封装文件存储相关业务操作。
type FileService struct {
	store    *metadata.Store
	registry *registry.AliasRegistry
	logger   *zap.Logger

	mu     sync.Mutex
	random *rand.Rand
}

// NewFileService 创建文件业务服务。
func NewFileService(store *metadata.Store, reg *registry.AliasRegistry, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		store:    store,
		registry: reg,
		logger:   logger,
		random:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateFilename 为一次上传生成唯一的存储文件名
//
// 格式：<别名>_<表单字段名>-<毫秒时间戳>-<随机数><原始扩展名>。
// 毫秒时间戳加十亿以内随机数，同一来源的快速连续上传也不会碰撞。
func (s *FileService) GenerateFilename(originKey, fieldName, originalName string) string {
	alias := s.registry.Resolve(originKey)

	s.mu.Lock()
	n := s.random.Intn(1_000_000_000)
	s.mu.Unlock()

	ext := filepath.Ext(originalName)
	return fmt.Sprintf("%s_%s-%d-%d%s", alias, fieldName, time.Now().UnixMilli(), n, ext)
}

// UploadInput 一次文件上传的输入。
type UploadInput struct {
	OriginKey    string // 客户端来源标识（IP）
	FieldName    string // multipart 表单字段名
	OriginalName string // 客户端提交的原始文件名
	ClientIP     string
	Content      io.Reader
}

// Upload 保存上传文件并登记元数据。
//
// 先写文件再写元数据；元数据写入失败时回收已落盘的文件，
// 不留下孤儿。
func (s *FileService) Upload(input UploadInput) (*domain.FileMetadata, error) {
	if input.OriginalName == "" {
		return nil, ErrEmptyUpload
	}

	filename := s.GenerateFilename(input.OriginKey, input.FieldName, input.OriginalName)
	path := s.store.UploadPath(filename)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(dst, input.Content)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}

	meta := &domain.FileMetadata{
		Filename:     filename,
		OriginalName: input.OriginalName,
		Size:         size,
		UploadDate:   time.Now().UTC(),
		Origin:       input.OriginKey,
		OriginAlias:  s.registry.Resolve(input.OriginKey),
		ClientIP:     input.ClientIP,
	}
	if err := s.store.Put(meta); err != nil {
		os.Remove(path)
		return nil, err
	}

	s.logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("original_name", input.OriginalName),
		zap.Int64("size", size),
		zap.String("origin_alias", meta.OriginAlias),
	)
	return meta, nil
}

// Get 按存储文件名查询元数据。
func (s *FileService) Get(filename string) (*domain.FileMetadata, error) {
	if err := domain.ValidateStoredFilename(filename); err != nil {
		return nil, err
	}
	meta, ok := s.store.Get(filename)
	if !ok {
		return nil, ErrFileNotFound
	}
	return meta, nil
}

// Path 返回存储文件的磁盘路径（供下载使用）。
func (s *FileService) Path(filename string) (string, error) {
	if err := domain.ValidateStoredFilename(filename); err != nil {
		return "", err
	}
	path := s.store.UploadPath(filename)
	if _, err := os.Stat(path); err != nil {
		return "", ErrFileNotFound
	}
	return path, nil
}

// ListAll 返回全部文件元数据，按上传时间倒序。
//
// 读取过程顺带完成孤儿元数据清理。
func (s *FileService) ListAll() ([]domain.FileMetadata, error) {
	records, err := s.store.ListAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadDate.After(records[j].UploadDate)
	})
	return records, nil
}

// OriginSummary 按来源别名聚合的文件统计。
type OriginSummary struct {
	Alias      string    `json:"alias"`
	FileCount  int       `json:"fileCount"`
	TotalSize  int64     `json:"totalSize"`
	LastUpload time.Time `json:"lastUpload"`
}

// Origins 返回按来源别名聚合的统计，按别名序号排序。
func (s *FileService) Origins() ([]OriginSummary, error) {
	records, err := s.store.ListAll()
	if err != nil {
		return nil, err
	}

	byAlias := make(map[string]*OriginSummary)
	for _, rec := range records {
		alias := rec.OriginAlias
		if alias == "" {
			alias = "unknown"
		}
		sum, ok := byAlias[alias]
		if !ok {
			sum = &OriginSummary{Alias: alias}
			byAlias[alias] = sum
		}
		sum.FileCount++
		sum.TotalSize += rec.Size
		if rec.UploadDate.After(sum.LastUpload) {
			sum.LastUpload = rec.UploadDate
		}
	}

	summaries := make([]OriginSummary, 0, len(byAlias))
	for _, sum := range byAlias {
		summaries = append(summaries, *sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return aliasLess(summaries[i].Alias, summaries[j].Alias)
	})
	return summaries, nil
}

// aliasLess 按别名的数字序号比较（H2 < H10），非标准别名按字典序靠后
func aliasLess(a, b string) bool {
	an, aok := aliasIndex(a)
	bn, bok := aliasIndex(b)
	if aok && bok {
		return an < bn
	}
	if aok != bok {
		return aok
	}
	return a < b
}

func aliasIndex(alias string) (int, bool) {
	if !strings.HasPrefix(alias, "H") {
		return 0, false
	}
	n := 0
	for _, r := range alias[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if len(alias) == 1 {
		return 0, false
	}
	return n, true
}

// Delete 删除存储文件及其元数据。
func (s *FileService) Delete(filename string) error {
	if err := domain.ValidateStoredFilename(filename); err != nil {
		return err
	}
	if err := s.store.Delete(filename); err != nil {
		if errors.Is(err, metadata.ErrFileNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	s.logger.Info("file deleted", zap.String("filename", filename))
	return nil
}

// Registrations 返回来源别名登记快照。
func (s *FileService) Registrations() []registry.Registration {
	return s.registry.Snapshot()
}
