package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// UploadValidator 上传文件验证器
type UploadValidator struct {
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64 // 最大文件大小（字节）
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

func NewUploadValidator(config *ValidatorConfig) *UploadValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize: 100 * 1024 * 1024, // 100MB
		}
	}
	return &UploadValidator{config: config}
}

// ValidateHeader 在写盘之前检查客户端声明的文件信息
func (v *UploadValidator) ValidateHeader(filename string, size int64) error {
	if size > v.config.MaxFileSize {
		return &ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		}
	}
	if size < 0 {
		return &ValidationError{
			Code:    "INVALID_SIZE",
			Message: fmt.Sprintf("Invalid file size %d", size),
			Field:   "size",
		}
	}
	return nil
}

// Inspect 读取已保存的文件，返回大小、MIME类型和哈希
func (v *UploadValidator) Inspect(path, filename string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info := &FileInfo{
		Filename:  filename,
		Extension: strings.ToLower(filepath.Ext(filename)),
	}

	// 计算文件哈希
	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	info.Size = size
	info.Hash = hex.EncodeToString(hash.Sum(nil))

	if size > v.config.MaxFileSize {
		return info, &ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		}
	}

	// 重置文件指针
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	info.MimeType = mt.String()

	return info, nil
}
