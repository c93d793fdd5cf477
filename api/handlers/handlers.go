package handlers

import (
	"github.com/feichai0017/format-converter/internal/service/conversion"
	"github.com/feichai0017/format-converter/pkg/logger"
)

type Handlers struct {
	Conversion *ConversionHandler
}

func NewHandlers(
	conversionService conversion.ConversionProcessor,
	maxBodySize int64,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Conversion: NewConversionHandler(conversionService, maxBodySize, logger),
	}
}
