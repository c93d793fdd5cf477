package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/webp"

	"github.com/feichai0017/format-converter/api/handlers"
	"github.com/feichai0017/format-converter/api/middleware"
	"github.com/feichai0017/format-converter/api/routes"
	"github.com/feichai0017/format-converter/internal/agent"
	imageconv "github.com/feichai0017/format-converter/internal/agent/image"
	"github.com/feichai0017/format-converter/internal/formats"
	"github.com/feichai0017/format-converter/internal/service/conversion"
	"github.com/feichai0017/format-converter/pkg/logger"
	"github.com/feichai0017/format-converter/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// echoConverter writes "<format>:<input>" to the output path.
type echoConverter struct {
	err error
}

func (e *echoConverter) Name() string { return "echo" }

func (e *echoConverter) Convert(ctx context.Context, inputPath, outputPath, format string) error {
	if e.err != nil {
		return e.err
	}
	in, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte(format+":"), in...), 0600)
}

type testServer struct {
	engine *gin.Engine
	root   string
}

func newTestServer(t *testing.T, imageConv agent.Converter, maxFileSize int64) *testServer {
	t.Helper()
	log := logger.NewTestLogger()

	root := filepath.Join(t.TempDir(), "uploads")
	store, err := storage.NewStorage(storage.StorageTypeLocal, root, log)
	require.NoError(t, err)

	if imageConv == nil {
		imageConv = &echoConverter{}
	}
	factory, err := agent.NewConverterFactory(log, &echoConverter{}, &echoConverter{}, imageConv)
	require.NoError(t, err)

	svc := conversion.NewService(factory, formats.NewRegistry(), store, log, &conversion.ServiceConfig{
		MaxFileSize:   maxFileSize,
		MaxConcurrent: 4,
	})

	engine := gin.New()
	routes.SetupRoutes(engine, handlers.NewHandlers(svc, maxFileSize, log), log)
	return &testServer{engine: engine, root: store.Root()}
}

func (s *testServer) post(t *testing.T, filename string, content []byte, targetFormat string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, newUploadRequest(t, filename, content, targetFormat))
	return rec
}

func (s *testServer) assertEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp directory must be empty after the request")
}

func newUploadRequest(t *testing.T, filename string, content []byte, targetFormat string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("targetFormat", targetFormat))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestConvertWithoutFile(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := s.post(t, "", nil, "pdf")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
	s.assertEmpty(t)
}

func TestConvertNonMultipartBody(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewBufferString(`{"targetFormat":"pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
}

func TestConvertUnknownFormat(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := s.post(t, "doc.docx", []byte("docx bytes"), "xyz")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Conversion to xyz is not supported", resp.Error)
	assert.NotEmpty(t, resp.Details)
	s.assertEmpty(t)
}

func TestConvertSuccess(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := s.post(t, "doc.docx", []byte("docx bytes"), "pdf")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=\d+-converted\.pdf$`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "pdf:docx bytes", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	s.assertEmpty(t)
}

func TestConvertReusesRequestID(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := httptest.NewRecorder()
	req := newUploadRequest(t, "a.txt", []byte("x"), "pdf")
	req.Header.Set(middleware.HeaderRequestID, "req-123")
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(middleware.HeaderRequestID))
}

func TestConvertFailureCleansUp(t *testing.T) {
	log := logger.NewTestLogger()
	root := filepath.Join(t.TempDir(), "uploads")
	store, err := storage.NewStorage(storage.StorageTypeLocal, root, log)
	require.NoError(t, err)

	failing := &echoConverter{err: errors.New("conversion tool crashed")}
	factory, err := agent.NewConverterFactory(log, failing, failing, failing)
	require.NoError(t, err)
	svc := conversion.NewService(factory, formats.NewRegistry(), store, log, nil)

	engine := gin.New()
	routes.SetupRoutes(engine, handlers.NewHandlers(svc, 0, log), log)
	s := &testServer{engine: engine, root: store.Root()}

	rec := s.post(t, "sample.mp3", []byte("ID3"), "wav")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "conversion tool crashed", resp.Error)
	assert.Contains(t, resp.Details, "ConversionFailure")
	s.assertEmpty(t)
}

func TestConvertBodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil, 16)

	rec := s.post(t, "big.bin", bytes.Repeat([]byte("a"), 2<<20), "pdf")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	s.assertEmpty(t)
}

func TestResponseMimeMatchesRegistry(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)
	registry := formats.NewRegistry()

	for _, format := range registry.Formats() {
		t.Run(format, func(t *testing.T) {
			desc, ok := registry.Lookup(format)
			require.True(t, ok)

			rec := s.post(t, "input.bin", []byte("data"), format)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, desc.MimeType, rec.Header().Get("Content-Type"))
			assert.Regexp(t, fmt.Sprintf(`filename=\d+-converted\.%s$`, desc.Format), rec.Header().Get("Content-Disposition"))
		})
	}
	s.assertEmpty(t)
}

func TestConcurrentSameFilename(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	const n = 16
	reqs := make([]*http.Request, n)
	recs := make([]*httptest.ResponseRecorder, n)
	for i := range reqs {
		reqs[i] = newUploadRequest(t, "same.txt", []byte(fmt.Sprintf("payload-%d", i)), "pdf")
		recs[i] = httptest.NewRecorder()
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.engine.ServeHTTP(recs[i], reqs[i])
		}(i)
	}
	wg.Wait()

	for i, rec := range recs {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, fmt.Sprintf("pdf:payload-%d", i), rec.Body.String())
	}
	s.assertEmpty(t)
}

// brokenPipe fails every body write, like a client that went away.
type brokenPipe struct {
	*httptest.ResponseRecorder
}

func (b *brokenPipe) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestClientAbortStillCleansUp(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	w := &brokenPipe{httptest.NewRecorder()}
	s.engine.ServeHTTP(w, newUploadRequest(t, "doc.docx", []byte("docx"), "pdf"))

	s.assertEmpty(t)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/convert", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPNGWebPRoundTrip(t *testing.T) {
	s := newTestServer(t, imageconv.NewConverter(imageconv.DefaultQuality, logger.NewNop()), 1<<20)

	src := image.NewNRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 7), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	rec := s.post(t, "pic.png", buf.Bytes(), "webp")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	webpBytes := rec.Body.Bytes()

	cfg, name, err := image.DecodeConfig(bytes.NewReader(webpBytes))
	require.NoError(t, err)
	assert.Equal(t, "webp", name)
	assert.Equal(t, 48, cfg.Width)

	rec = s.post(t, "pic.webp", webpBytes, "png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	s.assertEmpty(t)
}

func TestConvertTruncatedBody(t *testing.T) {
	s := newTestServer(t, nil, 1<<20)

	full := newUploadRequest(t, "doc.docx", bytes.Repeat([]byte("d"), 4096), "pdf")
	body := &bytes.Buffer{}
	_, err := body.ReadFrom(full.Body)
	require.NoError(t, err)

	// cut inside the file part so the closing boundary never arrives
	truncated := body.Bytes()[:body.Len()/2]
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(truncated))
	req.Header.Set("Content-Type", full.Header.Get("Content-Type"))

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "failed to read upload")
	assert.Contains(t, resp.Details, string(conversion.KindIOFailure))
	s.assertEmpty(t)
}

func TestLargeUploadLeavesNoMultipartSpill(t *testing.T) {
	if testing.Short() {
		t.Skip("sends a 40 MiB upload")
	}

	s := newTestServer(t, nil, 64<<20)
	spillDir := t.TempDir()
	t.Setenv("TMPDIR", spillDir)

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	// larger than net/http's 32 MiB in-memory multipart limit
	content := bytes.Repeat([]byte("x"), 40<<20)
	req := newUploadRequest(t, "large.docx", content, "pdf")

	resp, err := http.Post(ts.URL+"/convert", req.Header.Get("Content-Type"), req.Body)
	require.NoError(t, err)
	n, err := io.Copy(io.Discard, resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(len(content)+len("pdf:")), n)

	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(spillDir)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond, "multipart spill files left in TMPDIR")
	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(s.root)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
