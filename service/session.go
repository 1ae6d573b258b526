package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
)

// ErrImageLoaded 编辑步骤中不能再次上传，需要先重新开始
var ErrImageLoaded = errors.New("session already has an image, start over first")

// Editor 会话共享的依赖
type Editor struct {
	Composer     *Composer
	Replacer     BackgroundReplacer
	Locator      SubjectLocator
	AllowedTypes []string
	DefaultColor model.BackgroundColor
}

// editorState 向导与编辑器的组合状态：
// upload、idle、processing(operation)、error(operation, message)
type editorState struct {
	phase     model.Phase
	operation model.Operation
	message   string
}

// Session 一次编辑会话，持有工作图片和全部编辑参数
type Session struct {
	id     string
	editor *Editor

	mu         sync.Mutex
	state      editorState
	working    *model.EmbeddedImage
	decoded    image.Image
	backdrop   model.BackgroundColor
	zoom       float64
	pan        model.Pan
	crop       model.CropRegion
	filters    model.FilterSettings
	color      model.BackgroundColor
	lastActive time.Time
}

func NewSession(id string, editor *Editor) *Session {
	s := &Session{id: id, editor: editor}
	s.resetLocked()
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) resetLocked() {
	s.state = editorState{phase: model.PhaseUpload}
	s.working = nil
	s.decoded = nil
	s.backdrop = ""
	s.zoom = MinZoom
	s.pan = model.Pan{}
	s.crop = model.CropRegion{}
	s.filters = model.DefaultFilters()
	s.color = s.editor.DefaultColor
	if s.color == "" {
		s.color = model.DefaultBackgroundColor
	}
	s.lastActive = time.Now()
}

// Snapshot 返回当前状态
func (s *Session) Snapshot() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := model.SessionView{
		ID:              s.id,
		Step:            model.StepEdit,
		Phase:           s.state.phase,
		Operation:       s.state.operation,
		Error:           s.state.message,
		Zoom:            s.zoom,
		Pan:             s.pan,
		Filters:         s.filters,
		BackgroundColor: s.color,
	}
	if s.state.phase == model.PhaseUpload {
		view.Step = model.StepUpload
		return view
	}

	crop := s.crop
	bounds := s.decoded.Bounds()
	view.Crop = &crop
	view.Image = &model.ImageInfo{
		MimeType: s.working.MimeType,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Size:     len(s.working.Data),
		Backdrop: s.backdrop,
	}
	return view
}

// Load 上传完成：解码图片并进入编辑步骤
func (s *Session) Load(data []byte, mimeType string) error {
	mimeType = DetectMimeType(mimeType, data)
	if !s.allowedType(mimeType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	s.mu.Lock()
	if s.state.phase != model.PhaseUpload {
		s.mu.Unlock()
		return ErrImageLoaded
	}
	s.mu.Unlock()

	img, err := DecodeImage(data)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	crop, err := DefaultCrop(bounds.Dx(), bounds.Dy())
	if err != nil {
		return err
	}
	backdrop := DominantBackdrop(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.phase != model.PhaseUpload {
		return ErrImageLoaded
	}

	s.working = &model.EmbeddedImage{MimeType: mimeType, Data: data}
	s.decoded = img
	s.backdrop = backdrop
	s.zoom = MinZoom
	s.pan = model.Pan{}
	s.crop = crop
	s.state = editorState{phase: model.PhaseIdle}
	s.lastActive = time.Now()

	utils.Logger.Info("image loaded",
		zap.String("session", s.id),
		zap.String("mime_type", mimeType),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.String("backdrop", backdrop.String()))
	return nil
}

func (s *Session) allowedType(mimeType string) bool {
	return slices.ContainsFunc(s.editor.AllowedTypes, func(allowed string) bool {
		return strings.EqualFold(allowed, mimeType)
	})
}

// editableLocked 检查是否可以接受新的编辑操作，错误状态在此被清除
func (s *Session) editableLocked() error {
	switch s.state.phase {
	case model.PhaseUpload:
		return ErrNoImage
	case model.PhaseProcessing:
		return ErrBusy
	}
	s.state = editorState{phase: model.PhaseIdle}
	s.lastActive = time.Now()
	return nil
}

// SetView 更新缩放和平移，并重新计算裁剪区域
func (s *Session) SetView(zoom float64, pan model.Pan) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}

	bounds := s.decoded.Bounds()
	crop, effective, err := DeriveCrop(bounds.Dx(), bounds.Dy(), zoom, pan)
	if err != nil {
		return err
	}
	s.zoom, s.pan, s.crop = zoom, effective, crop
	return nil
}

// AutoFrame 定位主体并把裁剪区域对准主体
func (s *Session) AutoFrame() error {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	working, img := s.working, s.decoded
	s.mu.Unlock()

	if s.editor.Locator == nil {
		return s.SetView(MinZoom, model.Pan{})
	}

	subject, err := s.editor.Locator.LocateSubject(img)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	zoom, pan, err := FrameSubject(bounds.Dx(), bounds.Dy(), subject)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if s.working != working {
		// 定位期间图片已被替换
		return ErrBusy
	}
	crop, effective, err := DeriveCrop(bounds.Dx(), bounds.Dy(), zoom, pan)
	if err != nil {
		return err
	}
	s.zoom, s.pan, s.crop = zoom, effective, crop

	utils.Logger.Debug("subject framed",
		zap.String("session", s.id),
		zap.Any("subject", subject),
		zap.Float64("zoom", zoom),
		zap.Any("crop", crop))
	return nil
}

func (s *Session) SetFilters(filters model.FilterSettings) error {
	if !filters.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidFilter, filters)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.filters = filters
	return nil
}

// SetBackgroundColor 修改背景色，不影响裁剪区域
func (s *Session) SetBackgroundColor(value string) error {
	color, err := model.ParseBackgroundColor(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.color = color
	return nil
}

// WorkingImage 返回当前工作图片
func (s *Session) WorkingImage() (model.EmbeddedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working == nil {
		return model.EmbeddedImage{}, ErrNoImage
	}
	return *s.working, nil
}

type exportInput struct {
	img     image.Image
	crop    model.CropRegion
	color   model.BackgroundColor
	filters model.FilterSettings
}

// Export 生成证件照 JPEG。处理期间再次触发直接返回 ErrBusy，不改变任何状态。
// 已开始的导出不可取消，总是运行到完成或失败。
func (s *Session) Export(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	in := exportInput{img: s.decoded, crop: s.crop, color: s.color, filters: s.filters}
	s.state = editorState{phase: model.PhaseProcessing, operation: model.OperationExport}
	s.mu.Unlock()

	start := time.Now()
	data, err := s.editor.Composer.Compose(in.img, in.crop, in.color, in.filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = editorState{phase: model.PhaseError, operation: model.OperationExport, message: ExportFailedMessage}
		utils.Logger.Error("failed to export photo", zap.String("session", s.id), zap.Error(err))
		return nil, err
	}
	s.state = editorState{phase: model.PhaseIdle}

	utils.Logger.Info("photo exported",
		zap.String("session", s.id),
		zap.Int("size", len(data)),
		zap.Duration("duration", time.Since(start)))
	return data, nil
}

// ReplaceBackground 调用背景替换服务，成功后整体替换工作图片；失败时工作图片保持不变。
// 调用方取消 ctx 不会中断已发出的请求。
func (s *Session) ReplaceBackground(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	current, color, zoom, pan := *s.working, s.color, s.zoom, s.pan
	s.state = editorState{phase: model.PhaseProcessing, operation: model.OperationReplace}
	s.mu.Unlock()

	result, img, crop, effective, err := s.replace(ctx, current, color, zoom, pan)
	var backdrop model.BackgroundColor
	if err == nil {
		backdrop = DominantBackdrop(img)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = editorState{phase: model.PhaseError, operation: model.OperationReplace, message: ReplaceFailedMessage}
		utils.Logger.Error("failed to replace background", zap.String("session", s.id), zap.Error(err))
		return err
	}

	s.working = &result
	s.decoded = img
	s.backdrop = backdrop
	s.crop = crop
	s.pan = effective
	s.state = editorState{phase: model.PhaseIdle}
	return nil
}

func (s *Session) replace(ctx context.Context, current model.EmbeddedImage, color model.BackgroundColor, zoom float64, pan model.Pan) (model.EmbeddedImage, image.Image, model.CropRegion, model.Pan, error) {
	result, err := s.editor.Replacer.ReplaceBackground(ctx, current, color)
	if err != nil {
		return model.EmbeddedImage{}, nil, model.CropRegion{}, model.Pan{}, err
	}

	img, err := DecodeImage(result.Data)
	if err != nil {
		return model.EmbeddedImage{}, nil, model.CropRegion{}, model.Pan{}, err
	}

	// 返回图片尺寸可能不同，按原缩放和平移重新计算裁剪区域
	bounds := img.Bounds()
	crop, effective, err := DeriveCrop(bounds.Dx(), bounds.Dy(), zoom, pan)
	if err != nil {
		return model.EmbeddedImage{}, nil, model.CropRegion{}, model.Pan{}, err
	}
	return result, img, crop, effective, nil
}

// Reset 重新开始：丢弃全部编辑状态回到上传步骤
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.phase == model.PhaseProcessing {
		return ErrBusy
	}
	s.resetLocked()
	return nil
}

// idle 返回空闲时长，处理中的会话视为活跃
func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.phase == model.PhaseProcessing {
		return 0
	}
	return now.Sub(s.lastActive)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}
