package agent

import (
	"fmt"

	"github.com/feichai0017/format-converter/config"
	"github.com/feichai0017/format-converter/internal/agent/audio"
	"github.com/feichai0017/format-converter/internal/agent/document"
	"github.com/feichai0017/format-converter/internal/agent/image"
	"github.com/feichai0017/format-converter/internal/models"
	"github.com/feichai0017/format-converter/pkg/logger"
)

// ConverterFactory 按类别选择转换器
type ConverterFactory struct {
	converters map[models.Category]Converter
	logger     logger.Logger
}

// NewConverterFactory wires one converter per category. Every category must be covered.
func NewConverterFactory(log logger.Logger, audioConv, documentConv, imageConv Converter) (*ConverterFactory, error) {
	converters := map[models.Category]Converter{
		models.CategoryAudio:    audioConv,
		models.CategoryDocument: documentConv,
		models.CategoryImage:    imageConv,
	}
	for category, c := range converters {
		if c == nil {
			return nil, fmt.Errorf("no converter for category %s", category)
		}
	}

	return &ConverterFactory{
		converters: converters,
		logger:     log,
	}, nil
}

// NewDefaultConverterFactory builds the ffmpeg, LibreOffice and imaging
// backed converters from configuration.
func NewDefaultConverterFactory(cfg *config.AppConfig, log logger.Logger) (*ConverterFactory, error) {
	audioConv := audio.NewConverter(&audio.Config{
		FFmpegPath: cfg.Audio.FFmpegPath,
		Bitrate:    cfg.Audio.Bitrate,
		Codec:      cfg.Audio.Codec,
	}, log)
	documentConv := document.NewConverter(document.NewLibreOffice(cfg.Document.SofficePath, log), log)
	imageConv := image.NewConverter(cfg.Image.Quality, log)

	factory, err := NewConverterFactory(log, audioConv, documentConv, imageConv)
	if err != nil {
		return nil, err
	}
	factory.reportAvailability()
	return factory, nil
}

// GetConverter 获取类别对应的转换器
func (f *ConverterFactory) GetConverter(category models.Category) (Converter, error) {
	c, ok := f.converters[category]
	if !ok {
		f.logger.Error("No converter found",
			logger.String("category", string(category)),
		)
		return nil, fmt.Errorf("no converter found for category: %s", category)
	}
	return c, nil
}

// reportAvailability warns about converters whose external tool is missing;
// requests for those categories will fail at conversion time.
func (f *ConverterFactory) reportAvailability() {
	for category, c := range f.converters {
		a, ok := c.(Availability)
		if !ok {
			continue
		}
		if a.Available() {
			f.logger.Info("Converter ready",
				logger.String("category", string(category)),
				logger.String("converter", c.Name()),
			)
			continue
		}
		f.logger.Warn("Converter backend not found",
			logger.String("category", string(category)),
			logger.String("converter", c.Name()),
		)
	}
}
