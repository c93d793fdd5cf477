package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/format-converter/config"
	"github.com/feichai0017/format-converter/internal/models"
	"github.com/feichai0017/format-converter/pkg/logger"
)

type namedConverter string

func (n namedConverter) Name() string { return string(n) }

func (n namedConverter) Convert(ctx context.Context, inputPath, outputPath, format string) error {
	return nil
}

func TestGetConverterByCategory(t *testing.T) {
	f, err := NewConverterFactory(logger.NewTestLogger(), namedConverter("a"), namedConverter("d"), namedConverter("i"))
	require.NoError(t, err)

	for category, want := range map[models.Category]string{
		models.CategoryAudio:    "a",
		models.CategoryDocument: "d",
		models.CategoryImage:    "i",
	} {
		c, err := f.GetConverter(category)
		require.NoError(t, err)
		assert.Equal(t, want, c.Name())
	}

	_, err = f.GetConverter(models.Category("video"))
	assert.Error(t, err)
}

func TestNewConverterFactoryRequiresAllCategories(t *testing.T) {
	_, err := NewConverterFactory(logger.NewNop(), namedConverter("a"), nil, namedConverter("i"))
	assert.Error(t, err)
}

func TestNewDefaultConverterFactory(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.FFmpegPath = "/nonexistent/ffmpeg"
	cfg.Document.SofficePath = "/nonexistent/soffice"

	log := logger.NewTestLogger()
	f, err := NewDefaultConverterFactory(cfg, log)
	require.NoError(t, err)

	c, err := f.GetConverter(models.CategoryAudio)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", c.Name())

	c, err = f.GetConverter(models.CategoryImage)
	require.NoError(t, err)
	assert.Equal(t, "imaging", c.Name())

	assert.Len(t, log.Messages("WARN"), 2)
}
