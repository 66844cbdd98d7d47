package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neonbrush/fileserver/internal/domain"
)

// 测试辅助函数：创建带临时目录的存储实例
func setupTestStore(t *testing.T) (*Store, string, string) {
	tempDir, err := os.MkdirTemp("", "metadata_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	uploadsDir := filepath.Join(tempDir, "uploads")
	metadataDir := filepath.Join(tempDir, "metadata")

	store, err := NewStore(uploadsDir, metadataDir, nil)
	require.NoError(t, err)

	return store, uploadsDir, metadataDir
}

// 测试辅助函数：写入一个上传文件及其元数据
func putFile(t *testing.T, store *Store, uploadsDir, filename string) domain.FileMetadata {
	content := []byte("test content for " + filename)
	require.NoError(t, os.WriteFile(filepath.Join(uploadsDir, filename), content, 0644))

	meta := domain.FileMetadata{
		Filename:     filename,
		OriginalName: "original-" + filename,
		Size:         int64(len(content)),
		UploadDate:   time.Now().UTC(),
		Origin:       "1.2.3.4",
		OriginAlias:  "H1",
		ClientIP:     "1.2.3.4",
	}
	require.NoError(t, store.Put(&meta))
	return meta
}

func TestNewStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "metadata_test_*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	uploadsDir := filepath.Join(tempDir, "nested", "uploads")
	metadataDir := filepath.Join(tempDir, "nested", "metadata")

	_, err = NewStore(uploadsDir, metadataDir, nil)
	require.NoError(t, err)

	// 验证目录已创建
	for _, dir := range []string{uploadsDir, metadataDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPutGet(t *testing.T) {
	store, uploadsDir, metadataDir := setupTestStore(t)

	t.Run("round trip", func(t *testing.T) {
		want := putFile(t, store, uploadsDir, "H1_file-1-1.png")

		got, ok := store.Get("H1_file-1-1.png")
		require.True(t, ok)
		assert.Equal(t, want.Filename, got.Filename)
		assert.Equal(t, want.OriginalName, got.OriginalName)
		assert.Equal(t, want.Size, got.Size)
		assert.Equal(t, want.OriginAlias, got.OriginAlias)
	})

	t.Run("absent record", func(t *testing.T) {
		_, ok := store.Get("missing.png")
		assert.False(t, ok)
	})

	t.Run("corrupt record treated as absent", func(t *testing.T) {
		path := filepath.Join(metadataDir, "broken.png.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, ok := store.Get("broken.png")
		assert.False(t, ok)
	})

	t.Run("missing required field treated as absent", func(t *testing.T) {
		path := filepath.Join(metadataDir, "partial.png.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"filename":"partial.png"}`), 0644))

		_, ok := store.Get("partial.png")
		assert.False(t, ok)
	})

	t.Run("put rejects invalid metadata", func(t *testing.T) {
		err := store.Put(&domain.FileMetadata{Filename: "x.png"})
		assert.Error(t, err)
	})
}

func TestListAll(t *testing.T) {
	store, uploadsDir, metadataDir := setupTestStore(t)

	putFile(t, store, uploadsDir, "H1_file-1-1.png")
	putFile(t, store, uploadsDir, "H1_file-2-2.pdf")

	t.Run("lists live records", func(t *testing.T) {
		records, err := store.ListAll()
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("orphan removed from result and disk", func(t *testing.T) {
		// 手动删除上传文件本体，留下孤儿记录
		require.NoError(t, os.Remove(filepath.Join(uploadsDir, "H1_file-2-2.pdf")))

		records, err := store.ListAll()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "H1_file-1-1.png", records[0].Filename)

		// 孤儿记录已从磁盘清除
		_, err = os.Stat(filepath.Join(metadataDir, "H1_file-2-2.pdf.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("corrupt record skipped without failing listing", func(t *testing.T) {
		path := filepath.Join(metadataDir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("???"), 0644))

		records, err := store.ListAll()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestReconcile(t *testing.T) {
	store, uploadsDir, metadataDir := setupTestStore(t)

	live := putFile(t, store, uploadsDir, "keep.png")
	orphan := putFile(t, store, uploadsDir, "gone.png")
	require.NoError(t, os.Remove(filepath.Join(uploadsDir, "gone.png")))

	result := store.Reconcile([]domain.FileMetadata{live, orphan})
	require.Len(t, result, 1)
	assert.Equal(t, "keep.png", result[0].Filename)

	_, err := os.Stat(filepath.Join(metadataDir, "gone.png.json"))
	assert.True(t, os.IsNotExist(err))
}

// countingOrphanRecorder 统计孤儿清理上报次数
type countingOrphanRecorder struct {
	reclaimed int
}

func (r *countingOrphanRecorder) RecordOrphanReclaimed() {
	r.reclaimed++
}

func TestReconcileReportsOrphans(t *testing.T) {
	store, uploadsDir, _ := setupTestStore(t)
	recorder := &countingOrphanRecorder{}
	store.SetOrphanRecorder(recorder)

	live := putFile(t, store, uploadsDir, "keep.png")
	orphan1 := putFile(t, store, uploadsDir, "gone-1.png")
	orphan2 := putFile(t, store, uploadsDir, "gone-2.png")
	require.NoError(t, os.Remove(filepath.Join(uploadsDir, "gone-1.png")))
	require.NoError(t, os.Remove(filepath.Join(uploadsDir, "gone-2.png")))

	result := store.Reconcile([]domain.FileMetadata{live, orphan1, orphan2})
	require.Len(t, result, 1)
	assert.Equal(t, 2, recorder.reclaimed)

	// 存活记录不触发上报
	result = store.Reconcile(result)
	require.Len(t, result, 1)
	assert.Equal(t, 2, recorder.reclaimed)
}

func TestDelete(t *testing.T) {
	store, uploadsDir, metadataDir := setupTestStore(t)

	t.Run("removes file and metadata together", func(t *testing.T) {
		putFile(t, store, uploadsDir, "victim.png")

		require.NoError(t, store.Delete("victim.png"))

		_, err := os.Stat(filepath.Join(uploadsDir, "victim.png"))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(metadataDir, "victim.png.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing file reports not found", func(t *testing.T) {
		err := store.Delete("never-existed.png")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}
