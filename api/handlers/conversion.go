package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/format-converter/internal/models"
	"github.com/feichai0017/format-converter/internal/service/conversion"
	"github.com/feichai0017/format-converter/pkg/logger"
)

// multipart framing and the targetFormat field on top of the file itself
const formOverhead = 1 << 20

type ConversionHandler struct {
	service     conversion.ConversionProcessor
	maxBodySize int64
	logger      logger.ContextLogger
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewConversionHandler(service conversion.ConversionProcessor, maxFileSize int64, log logger.Logger) *ConversionHandler {
	var maxBody int64
	if maxFileSize > 0 {
		maxBody = maxFileSize + formOverhead
	}
	return &ConversionHandler{
		service:     service,
		maxBodySize: maxBody,
		logger:      logger.NewContextLogger(log),
	}
}

// ConvertFile 接收上传文件，转换为 targetFormat 并流式返回结果
func (h *ConversionHandler) ConvertFile(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.FromContext(ctx)

	if h.maxBodySize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, uploadError(err))
		return
	}
	// 请求上下文被替换过，net/http 不会再清理这份表单的临时文件
	defer c.Request.MultipartForm.RemoveAll()
	defer file.Close()

	stored, err := h.service.ReceiveUpload(ctx, file, header)
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.service.Convert(ctx, &models.ConversionRequest{
		SourcePath:       stored.Path,
		OriginalFilename: stored.OriginalFilename,
		TargetFormat:     c.PostForm("targetFormat"),
	})
	if err != nil {
		h.service.Cleanup(context.WithoutCancel(ctx), stored.Path)
		h.handleError(c, err)
		return
	}
	// 流式返回结束(包括客户端中断)后删除输入和输出文件
	defer h.service.Cleanup(context.WithoutCancel(ctx), stored.Path, result.OutputPath)

	reader, size, err := h.service.OpenResult(ctx, result)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, size, result.MimeType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", result.SuggestedFilename),
	})

	if len(c.Errors) > 0 {
		log.Warn("Response stream interrupted",
			logger.String("filename", result.SuggestedFilename),
			logger.String("errors", c.Errors.String()),
		)
		return
	}
	log.Info("Converted file sent",
		logger.String("filename", result.SuggestedFilename),
		logger.String("mimeType", result.MimeType),
		logger.Int64("size", size),
	)
}

// uploadError maps a multipart parsing failure: only a missing file field or a
// non-multipart body count as "No file uploaded".
func uploadError(err error) error {
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return conversion.ErrNoFileUploaded
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &conversion.Error{
			Kind:    conversion.KindIOFailure,
			Message: fmt.Sprintf("request body exceeds maximum limit of %d bytes", tooLarge.Limit),
			Err:     err,
		}
	}
	return &conversion.Error{
		Kind:    conversion.KindIOFailure,
		Message: fmt.Sprintf("failed to read upload: %v", err),
		Err:     err,
	}
}

// handleError 统一错误处理
func (h *ConversionHandler) handleError(c *gin.Context, err error) {
	log := h.logger.FromContext(c.Request.Context())

	if conversion.KindOf(err) == conversion.KindNoFileUploaded {
		log.Warn("No file uploaded", logger.String("path", c.Request.URL.Path))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: conversion.MessageOf(err)})
		return
	}

	log.Error("Conversion request failed",
		logger.String("path", c.Request.URL.Path),
		logger.String("kind", string(conversion.KindOf(err))),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   conversion.MessageOf(err),
		Details: err.Error(),
	})
}
