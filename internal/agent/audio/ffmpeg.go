package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// Config ffmpeg 转码配置
type Config struct {
	FFmpegPath string
	Bitrate    string
	Codec      string
}

// Converter re-encodes audio through the ffmpeg binary. Every target uses the
// configured codec (MP3 by default) and lets ffmpeg pick the container from
// the output extension.
type Converter struct {
	cfg    Config
	logger logger.Logger
}

func NewConverter(cfg *Config, log logger.Logger) *Converter {
	c := Config{
		FFmpegPath: "ffmpeg",
		Bitrate:    "192k",
		Codec:      "libmp3lame",
	}
	if cfg != nil {
		if cfg.FFmpegPath != "" {
			c.FFmpegPath = cfg.FFmpegPath
		}
		if cfg.Bitrate != "" {
			c.Bitrate = cfg.Bitrate
		}
		if cfg.Codec != "" {
			c.Codec = cfg.Codec
		}
	}

	return &Converter{
		cfg:    c,
		logger: log.Named("audio"),
	}
}

func (c *Converter) Name() string {
	return "ffmpeg"
}

// Available reports whether the ffmpeg binary can be found.
func (c *Converter) Available() bool {
	_, err := exec.LookPath(c.cfg.FFmpegPath)
	return err == nil
}

// Args 构建 ffmpeg 参数
func (c *Converter) Args(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-b:a", c.cfg.Bitrate,
		"-c:a", c.cfg.Codec,
		outputPath,
	}
}

func (c *Converter) Convert(ctx context.Context, inputPath, outputPath, format string) error {
	args := c.Args(inputPath, outputPath)

	c.logger.Debug("Running ffmpeg",
		logger.String("format", format),
		logger.Strings("args", args),
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.cfg.FFmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 512))
	}

	return nil
}

// tail keeps the last n bytes of tool output.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
