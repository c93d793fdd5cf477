package document

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// Converter buffers the whole input, hands it to the office backend and writes
// the returned bytes verbatim. PDF to txt is extracted natively because the
// office backend cannot export PDFs as text.
type Converter struct {
	office Office
	logger logger.Logger
}

func NewConverter(office Office, log logger.Logger) *Converter {
	return &Converter{
		office: office,
		logger: log.Named("document"),
	}
}

func (c *Converter) Name() string {
	return "office"
}

// Available 委托给底层 office 实现
func (c *Converter) Available() bool {
	if a, ok := c.office.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

func (c *Converter) Convert(ctx context.Context, inputPath, outputPath, format string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	detected := mimetype.Detect(data)
	c.logger.Debug("Converting document",
		logger.String("detected", detected.String()),
		logger.String("format", format),
		logger.Int("bytes", len(data)),
	)

	var result []byte
	if format == "txt" && detected.Is("application/pdf") {
		result, err = ExtractPDFText(data)
	} else {
		result, err = c.office.Convert(ctx, data, "."+format)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, result, 0600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
