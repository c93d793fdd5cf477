// internal/agent/image/encoder.go
package image

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// DefaultQuality 固定编码质量
const DefaultQuality = 90

// Converter 图像重新编码
type Converter struct {
	quality int
	logger  logger.Logger
}

func NewConverter(quality int, log logger.Logger) *Converter {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Converter{
		quality: quality,
		logger:  log.Named("image"),
	}
}

func (c *Converter) Name() string {
	return "imaging"
}

func (c *Converter) Convert(ctx context.Context, inputPath, outputPath, format string) error {
	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if err := c.encode(out, img, format); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	c.logger.Debug("Image encoded",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()),
		logger.Int("quality", c.quality),
	)
	return nil
}

// encode 按目标格式编码；png 同样接收质量参数，但编码器会忽略
func (c *Converter) encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch format {
	case "jpg", "jpeg":
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(c.quality))
	case "png":
		err = imaging.Encode(w, img, imaging.PNG, imaging.JPEGQuality(c.quality))
	case "webp":
		err = webp.Encode(w, img, &webp.Options{Quality: float32(c.quality)})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}
