package conversion

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/feichai0017/format-converter/internal/models"
)

type ConversionProcessor interface {
	ReceiveUpload(ctx context.Context, file io.Reader, header *multipart.FileHeader) (*models.StoredFile, error)
	Convert(ctx context.Context, req *models.ConversionRequest) (*models.ConversionResult, error)
	OpenResult(ctx context.Context, result *models.ConversionResult) (io.ReadCloser, int64, error)
	Cleanup(ctx context.Context, paths ...string)
}
