package conversion

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/feichai0017/format-converter/config"
	"github.com/feichai0017/format-converter/internal/agent"
	"github.com/feichai0017/format-converter/internal/formats"
	"github.com/feichai0017/format-converter/internal/models"
	"github.com/feichai0017/format-converter/internal/utils/validator"
	"github.com/feichai0017/format-converter/pkg/logger"
	"github.com/feichai0017/format-converter/pkg/storage"
)

type ConversionService struct {
	converterFactory *agent.ConverterFactory
	registry         *formats.Registry
	storage          storage.Storage
	validator        *validator.UploadValidator
	slots            *semaphore.Weighted
	logger           logger.ContextLogger
	config           *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize    int64
	MaxConcurrent  int
	ConvertTimeout time.Duration
}

func NewService(
	factory *agent.ConverterFactory,
	registry *formats.Registry,
	store storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *ConversionService {
	if cfg == nil {
		cfg = &ServiceConfig{
			MaxFileSize:   100 * 1024 * 1024, // 100MB
			MaxConcurrent: 8,
		}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024
	}

	return &ConversionService{
		converterFactory: factory,
		registry:         registry,
		storage:          store,
		validator:        validator.NewUploadValidator(&validator.ValidatorConfig{MaxFileSize: cfg.MaxFileSize}),
		slots:            semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:           logger.NewContextLogger(log),
		config:           cfg,
	}
}

// GetService wires the service from the application config.
func GetService(cfg *config.AppConfig, log logger.Logger) (*ConversionService, error) {
	// 初始化存储(本地临时目录)
	store, err := storage.NewStorage(storage.StorageTypeLocal, cfg.Storage.UploadDir, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 初始化转换器工厂
	factory, err := agent.NewDefaultConverterFactory(cfg, log.Named("agent"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize converter factory: %w", err)
	}

	registry := formats.NewRegistry()
	log.Info("Format registry loaded", logger.Strings("formats", registry.Formats()))

	return NewService(factory, registry, store, log, &ServiceConfig{
		MaxFileSize:    cfg.Conversion.MaxFileSize,
		MaxConcurrent:  cfg.Conversion.MaxConcurrent,
		ConvertTimeout: cfg.Conversion.Timeout,
	}), nil
}

// Storage exposes the temp file store, used by the janitor.
func (s *ConversionService) Storage() storage.Storage {
	return s.storage
}

// ReceiveUpload 保存上传文件
func (s *ConversionService) ReceiveUpload(
	ctx context.Context,
	file io.Reader,
	header *multipart.FileHeader,
) (*models.StoredFile, error) {
	log := s.logger.FromContext(ctx)

	if file == nil || header == nil {
		return nil, ErrNoFileUploaded
	}
	if err := s.validator.ValidateHeader(header.Filename, header.Size); err != nil {
		return nil, ioFailure("invalid upload", err)
	}

	path, err := s.storage.Store(ctx, file, header.Filename)
	if err != nil {
		log.Error("Failed to store upload",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, ioFailure("failed to store upload", err)
	}

	info, err := s.validator.Inspect(path, header.Filename)
	if err != nil {
		s.Cleanup(context.WithoutCancel(ctx), path)
		return nil, ioFailure("invalid upload", err)
	}

	stored := &models.StoredFile{
		Path:             path,
		OriginalFilename: header.Filename,
		Size:             info.Size,
		DetectedMIME:     info.MimeType,
		SHA256:           info.Hash,
	}

	log.Info("Upload stored",
		logger.String("filename", header.Filename),
		logger.Int64("size", stored.Size),
		logger.String("sha256", stored.SHA256),
		logger.String("detectedMime", stored.DetectedMIME),
		logger.String("path", path),
	)
	return stored, nil
}

// Convert 校验目标格式，选择转换器并生成输出文件。输入文件由调用方清理。
func (s *ConversionService) Convert(ctx context.Context, req *models.ConversionRequest) (*models.ConversionResult, error) {
	log := s.logger.FromContext(ctx)

	desc, ok := s.registry.Lookup(req.TargetFormat)
	if !ok {
		log.Warn("Unsupported target format",
			logger.String("targetFormat", req.TargetFormat),
		)
		return nil, unsupportedFormat(req.TargetFormat)
	}

	converter, err := s.converterFactory.GetConverter(desc.Category)
	if err != nil {
		return nil, conversionFailure(err)
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, ioFailure("conversion cancelled while waiting for a slot", err)
	}
	defer s.slots.Release(1)

	outputPath, err := s.storage.Reserve(ctx, "converted"+desc.Extension())
	if err != nil {
		return nil, ioFailure("failed to reserve output file", err)
	}

	convCtx := ctx
	if s.config.ConvertTimeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, s.config.ConvertTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := converter.Convert(convCtx, req.SourcePath, outputPath, desc.Format); err != nil {
		log.Error("Conversion failed",
			logger.String("converter", converter.Name()),
			logger.String("targetFormat", desc.Format),
			logger.Error(err),
		)
		s.Cleanup(context.WithoutCancel(ctx), outputPath)
		return nil, conversionFailure(err)
	}

	log.Info("Conversion completed",
		logger.String("converter", converter.Name()),
		logger.String("filename", req.OriginalFilename),
		logger.String("targetFormat", desc.Format),
		logger.Duration("elapsed", time.Since(start)),
	)

	return &models.ConversionResult{
		OutputPath:        outputPath,
		MimeType:          desc.MimeType,
		SuggestedFilename: fmt.Sprintf("%d-converted.%s", time.Now().UnixMilli(), desc.Format),
	}, nil
}

// OpenResult 打开输出文件用于流式返回
func (s *ConversionService) OpenResult(ctx context.Context, result *models.ConversionResult) (io.ReadCloser, int64, error) {
	size, err := s.storage.Size(ctx, result.OutputPath)
	if err != nil {
		return nil, 0, ioFailure("failed to stat converted file", err)
	}
	reader, err := s.storage.Get(ctx, result.OutputPath)
	if err != nil {
		return nil, 0, ioFailure("failed to open converted file", err)
	}
	return reader, size, nil
}

// Cleanup removes every given path. Failures are logged, never returned.
func (s *ConversionService) Cleanup(ctx context.Context, paths ...string) {
	log := s.logger.FromContext(ctx)
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := s.storage.Delete(ctx, path); err != nil {
			log.Warn("Failed to remove temp file",
				logger.String("path", path),
				logger.Error(err),
			)
			continue
		}
		log.Debug("Removed temp file", logger.String("path", path))
	}
}
