package formats

import (
	"sort"
	"strings"

	"github.com/feichai0017/format-converter/internal/models"
)

// 目标格式表，扩展时直接修改此表
var table = []models.FormatDescriptor{
	{Format: "mp3", Category: models.CategoryAudio, MimeType: "audio/mpeg"},
	{Format: "wav", Category: models.CategoryAudio, MimeType: "audio/wav"},
	{Format: "ogg", Category: models.CategoryAudio, MimeType: "audio/ogg"},
	{Format: "m4a", Category: models.CategoryAudio, MimeType: "audio/mp4"},

	{Format: "pdf", Category: models.CategoryDocument, MimeType: "application/pdf"},
	{Format: "docx", Category: models.CategoryDocument, MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{Format: "txt", Category: models.CategoryDocument, MimeType: "text/plain"},

	{Format: "jpg", Category: models.CategoryImage, MimeType: "image/jpeg"},
	{Format: "jpeg", Category: models.CategoryImage, MimeType: "image/jpeg"},
	{Format: "png", Category: models.CategoryImage, MimeType: "image/png"},
	{Format: "webp", Category: models.CategoryImage, MimeType: "image/webp"},
}

// Registry is an immutable lookup from target format to its descriptor.
type Registry struct {
	byFormat map[string]models.FormatDescriptor
}

// NewRegistry builds the registry from the built-in table.
func NewRegistry() *Registry {
	r := &Registry{byFormat: make(map[string]models.FormatDescriptor, len(table))}
	for _, d := range table {
		r.byFormat[d.Format] = d
	}
	return r
}

// Normalize trims and lower-cases a client supplied format.
func Normalize(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

// Lookup 查询目标格式
func (r *Registry) Lookup(format string) (models.FormatDescriptor, bool) {
	d, ok := r.byFormat[Normalize(format)]
	return d, ok
}

// Formats returns every supported format, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.byFormat))
	for f := range r.byFormat {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the sorted formats of one category.
func (r *Registry) ByCategory(c models.Category) []string {
	var out []string
	for f, d := range r.byFormat {
		if d.Category == c {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
