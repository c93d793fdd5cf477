package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/format-converter/pkg/logger"
	"github.com/feichai0017/format-converter/pkg/storage/local"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)

// Storage 临时文件存储接口
type Storage interface {
	// Store 以唯一文件名保存上传内容，返回绝对路径
	Store(ctx context.Context, reader io.Reader, filename string) (string, error)
	// Reserve 预留一个唯一的输出路径（创建空文件）
	Reserve(ctx context.Context, suffix string) (string, error)
	// Get 打开文件用于读取
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Size 返回文件大小
	Size(ctx context.Context, path string) (int64, error)
	// Delete 删除文件，文件不存在不视为错误
	Delete(ctx context.Context, path string) error
	// CleanupBefore 清理过期文件
	CleanupBefore(ctx context.Context, threshold time.Time) (int, error)
	// Root 返回存储根目录
	Root() string
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, root string, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeLocal:
		s, err := local.NewLocalStorage(root, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
