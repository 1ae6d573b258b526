package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/service"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
)

type SessionHandler struct {
	cfg      *config.Config
	store    *service.SessionStore
	composer *service.Composer
}

func NewSessionHandler(cfg *config.Config, store *service.SessionStore, composer *service.Composer) *SessionHandler {
	return &SessionHandler{
		cfg:      cfg,
		store:    store,
		composer: composer,
	}
}

// Register 注册会话相关路由
func (h *SessionHandler) Register(api *gin.RouterGroup) {
	api.GET("/presets", h.Presets)
	api.POST("/compose", h.Compose)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.withSession(h.Get))
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/image", h.withSession(h.UploadImage))
		sessions.GET("/:id/image", h.withSession(h.GetImage))
		sessions.PUT("/:id/view", h.withSession(h.SetView))
		sessions.POST("/:id/view/auto", h.withSession(h.AutoFrame))
		sessions.PUT("/:id/filters", h.withSession(h.SetFilters))
		sessions.PUT("/:id/background", h.withSession(h.SetBackground))
		sessions.POST("/:id/background/replace", h.withSession(h.ReplaceBackground))
		sessions.POST("/:id/export", h.withSession(h.Export))
		sessions.POST("/:id/reset", h.withSession(h.Reset))
	}
}

type sessionFunc func(c *gin.Context, s *service.Session)

func (h *SessionHandler) withSession(fn sessionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := h.store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Success: false,
				Message: "session not found",
			})
			return
		}
		fn(c, s)
	}
}

// Presets 返回前端控件取值范围
func (h *SessionHandler) Presets(c *gin.Context) {
	width, height := h.composer.Size()
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Message: "ok",
		Data: model.Presets{
			Colors:       model.PresetColors,
			MinFilter:    model.MinFilterPercent,
			MaxFilter:    model.MaxFilterPercent,
			MinZoom:      service.MinZoom,
			MaxZoom:      service.MaxZoom,
			OutputWidth:  width,
			OutputHeight: height,
			AcceptTypes:  h.cfg.Upload.AllowedTypes,
		},
	})
}

// Create 新建会话，处于上传步骤
func (h *SessionHandler) Create(c *gin.Context) {
	s := h.store.Create()
	utils.Logger.Info("session created", zap.String("session", s.ID()))
	h.respond(c, http.StatusCreated, "session created", s)
}

func (h *SessionHandler) Get(c *gin.Context, s *service.Session) {
	h.respond(c, http.StatusOK, "ok", s)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if !h.store.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "session not found",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage 接收 multipart 文件字段 image，或 JSON {"data_url": "..."}
func (h *SessionHandler) UploadImage(c *gin.Context, s *service.Session) {
	data, mimeType, err := h.readImage(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := s.Load(data, mimeType); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, "image loaded", s)
}

// GetImage 返回当前工作图片，format=dataurl 时以 JSON 返回 data URL
func (h *SessionHandler) GetImage(c *gin.Context, s *service.Session) {
	img, err := s.WorkingImage()
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("format") == "dataurl" {
		c.JSON(http.StatusOK, model.DataResponse{
			Success: true,
			Message: "ok",
			Data:    gin.H{"data_url": img.DataURL()},
		})
		return
	}
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (h *SessionHandler) SetView(c *gin.Context, s *service.Session) {
	var req model.ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := s.SetView(req.Zoom, model.Pan{X: req.PanX, Y: req.PanY}); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, "view updated", s)
}

func (h *SessionHandler) AutoFrame(c *gin.Context, s *service.Session) {
	if err := s.AutoFrame(); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, "subject framed", s)
}

func (h *SessionHandler) SetFilters(c *gin.Context, s *service.Session) {
	var req model.FiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := s.SetFilters(model.FilterSettings{Brightness: req.Brightness, Contrast: req.Contrast}); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, "filters updated", s)
}

func (h *SessionHandler) SetBackground(c *gin.Context, s *service.Session) {
	var req model.BackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := s.SetBackgroundColor(req.Color); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, "background color updated", s)
}

// ReplaceBackground 调用背景替换服务，失败时返回统一的重试提示
func (h *SessionHandler) ReplaceBackground(c *gin.Context, s *service.Session) {
	if err := s.ReplaceBackground(context.WithoutCancel(c.Request.Context())); err != nil {
		h.operationFailed(c, err, service.ReplaceFailedMessage)
		return
	}
	h.respond(c, http.StatusOK, "background replaced", s)
}

// Export 生成证件照并以附件形式下载
func (h *SessionHandler) Export(c *gin.Context, s *service.Session) {
	data, err := s.Export(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.operationFailed(c, err, service.ExportFailedMessage)
		return
	}
	h.writePhoto(c, data)
}

func (h *SessionHandler) Reset(c *gin.Context, s *service.Session) {
	if err := s.Reset(); err != nil {
		h.fail(c, err)
		return
	}
	utils.Logger.Info("session reset", zap.String("session", s.ID()))
	h.respond(c, http.StatusOK, "session reset", s)
}

// Compose 无状态合成：上传图片并给出裁剪区域、背景色和滤镜参数
func (h *SessionHandler) Compose(c *gin.Context) {
	data, _, err := h.readImage(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	crop, err := formCrop(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	color, err := model.ParseBackgroundColor(c.DefaultPostForm("background_color", h.cfg.Photo.DefaultBackground))
	if err != nil {
		h.fail(c, err)
		return
	}

	filters := model.DefaultFilters()
	if filters.Brightness, err = formInt(c, "brightness", filters.Brightness); err != nil {
		h.badRequest(c, err)
		return
	}
	if filters.Contrast, err = formInt(c, "contrast", filters.Contrast); err != nil {
		h.badRequest(c, err)
		return
	}
	if !filters.Valid() {
		h.fail(c, service.ErrInvalidFilter)
		return
	}

	out, err := h.composer.ComposeBytes(data, crop, color, filters)
	if err != nil {
		h.operationFailed(c, err, service.ExportFailedMessage)
		return
	}
	h.writePhoto(c, out)
}

// writePhoto 触发客户端保存
func (h *SessionHandler) writePhoto(c *gin.Context, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.cfg.Photo.Filename))
	c.Data(http.StatusOK, service.MimeJPEG, data)
}

func (h *SessionHandler) readImage(c *gin.Context) ([]byte, string, error) {
	if c.ContentType() == gin.MIMEJSON {
		var req model.DataURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		mimeType, data, err := utils.ParseDataURL(req.DataURL)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if err := h.checkSize(int64(len(data))); err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	}

	file, err := c.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("%w: please upload an image file", errBadRequest)
	}

	if err := h.checkSize(file.Size); err != nil {
		return nil, "", err
	}

	data, err := readFile(file)
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		return nil, "", err
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", utils.BytesMD5(data)),
		zap.Int64("size", file.Size))

	return data, file.Header.Get("Content-Type"), nil
}

// checkSize upload.max_size 为 0 时不限制
func (h *SessionHandler) checkSize(size int64) error {
	if limit := h.cfg.Upload.MaxSize; limit > 0 && size > limit {
		return fmt.Errorf("%w: file exceeds %d bytes", errBadRequest, limit)
	}
	return nil
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formCrop(c *gin.Context) (model.CropRegion, error) {
	var crop model.CropRegion
	var err error
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"x", &crop.X},
		{"y", &crop.Y},
		{"width", &crop.Width},
		{"height", &crop.Height},
	} {
		raw, ok := c.GetPostForm(field.name)
		if !ok {
			return crop, fmt.Errorf("missing crop field %q", field.name)
		}
		if *field.dst, err = strconv.Atoi(raw); err != nil {
			return crop, fmt.Errorf("invalid crop field %q: %w", field.name, err)
		}
	}
	return crop, nil
}

func formInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetPostForm(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func (h *SessionHandler) respond(c *gin.Context, status int, message string, s *service.Session) {
	view := s.Snapshot()
	c.JSON(status, model.SessionResponse{
		Success: true,
		Message: message,
		Data:    &view,
	})
}

var errBadRequest = errors.New("bad request")

func (h *SessionHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: "invalid request",
		Error:   err.Error(),
	})
}

// operationFailed 导出或背景替换失败；忙碌时不算失败
func (h *SessionHandler) operationFailed(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrBusy) || errors.Is(err, service.ErrNoImage) {
		h.fail(c, err)
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrDecode), errors.Is(err, service.ErrCropOutOfBounds),
		errors.Is(err, service.ErrInvalidColor):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrService), errors.Is(err, service.ErrNoImageInResponse):
		status = http.StatusBadGateway
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

// fail 把领域错误映射为 HTTP 状态码
func (h *SessionHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "request failed"

	switch {
	case errors.Is(err, errBadRequest):
		status, message = http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrBusy):
		status, message = http.StatusConflict, "another operation is in progress"
	case errors.Is(err, service.ErrNoImage):
		status, message = http.StatusConflict, "upload an image first"
	case errors.Is(err, service.ErrImageLoaded):
		status, message = http.StatusConflict, "start over before uploading another image"
	case errors.Is(err, service.ErrUnsupportedType):
		status, message = http.StatusUnsupportedMediaType, "unsupported file type, use PNG, JPEG or WEBP"
	case errors.Is(err, service.ErrDecode):
		status, message = http.StatusUnprocessableEntity, "the image could not be read"
	case errors.Is(err, service.ErrImageTooSmall):
		status, message = http.StatusUnprocessableEntity, "the image is too small"
	case errors.Is(err, service.ErrInvalidColor), errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrInvalidZoom):
		status, message = http.StatusBadRequest, "invalid request"
	default:
		utils.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
