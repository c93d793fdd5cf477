package models

// Category 转换类别
type Category string

const (
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
)

// FormatDescriptor 目标格式描述
type FormatDescriptor struct {
	Format   string   `json:"format"`
	Category Category `json:"category"`
	MimeType string   `json:"mimeType"`
}

// Extension returns the dotted file extension for the format.
func (d FormatDescriptor) Extension() string {
	return "." + d.Format
}

// StoredFile 已落盘的上传文件
type StoredFile struct {
	Path             string `json:"path"`
	OriginalFilename string `json:"originalFilename"`
	Size             int64  `json:"size"`
	DetectedMIME     string `json:"detectedMime"`
	SHA256           string `json:"sha256"`
}

// ConversionRequest 单次转换请求
type ConversionRequest struct {
	SourcePath       string `json:"sourcePath"`
	OriginalFilename string `json:"originalFilename"`
	TargetFormat     string `json:"targetFormat"`
}

// ConversionResult 转换结果
type ConversionResult struct {
	OutputPath        string `json:"outputPath"`
	MimeType          string `json:"mimeType"`
	SuggestedFilename string `json:"suggestedFilename"`
}
