package document

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// Office converts office document bytes into the format named by ext (".pdf", ".docx", ".txt").
type Office interface {
	Convert(ctx context.Context, data []byte, ext string) ([]byte, error)
}

// sofficeCandidates 常见 LibreOffice 安装路径
var sofficeCandidates = []string{
	"/usr/bin/soffice",
	"/usr/bin/libreoffice",
	"/usr/local/bin/soffice",
	"/opt/homebrew/bin/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// LibreOffice runs a headless soffice per conversion with a private profile,
// so concurrent conversions don't fight over the user installation lock.
type LibreOffice struct {
	path   string
	logger logger.Logger
}

// NewLibreOffice uses path when set, otherwise the first installed candidate,
// otherwise "soffice" from PATH.
func NewLibreOffice(path string, log logger.Logger) *LibreOffice {
	if path == "" {
		path = "soffice"
		for _, p := range sofficeCandidates {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	return &LibreOffice{
		path:   path,
		logger: log.Named("libreoffice"),
	}
}

// Available reports whether the soffice binary can be found.
func (l *LibreOffice) Available() bool {
	_, err := exec.LookPath(l.path)
	return err == nil
}

func (l *LibreOffice) Convert(ctx context.Context, data []byte, ext string) ([]byte, error) {
	format := strings.TrimPrefix(ext, ".")
	if format == "" {
		return nil, fmt.Errorf("target extension is required")
	}

	workDir, err := os.MkdirTemp("", "soffice-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			l.logger.Warn("Failed to remove work dir",
				logger.String("dir", workDir),
				logger.Error(err),
			)
		}
	}()

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work dir: %w", err)
	}

	source := filepath.Join(absWorkDir, "source")
	if err := os.WriteFile(source, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write source: %w", err)
	}

	outDir := filepath.Join(absWorkDir, "out")
	profile := &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(absWorkDir, "profile"))}

	args := []string{
		"-env:UserInstallation=" + profile.String(),
		"--headless",
		"--norestore",
		"--convert-to", format,
		"--outdir", outDir,
		source,
	}

	l.logger.Debug("Running soffice",
		logger.String("path", l.path),
		logger.Strings("args", args),
	)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, l.path, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("libreoffice interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("libreoffice failed: %w: %s", err, strings.TrimSpace(output.String()))
	}

	result, err := os.ReadFile(filepath.Join(outDir, "source."+format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("libreoffice produced no %s output: %s", format, strings.TrimSpace(output.String()))
		}
		return nil, fmt.Errorf("failed to read converted output: %w", err)
	}

	return result, nil
}
