package agent

import (
	"context"
)

// Converter 转换能力接口，每个类别一个实现
type Converter interface {
	// Name 返回转换器名称，用于日志
	Name() string

	// Convert 读取 inputPath，按 format 写出到 outputPath
	Convert(ctx context.Context, inputPath, outputPath, format string) error
}

// Availability is implemented by converters backed by an external binary.
type Availability interface {
	Available() bool
}
