package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const backgroundPrompt = "Analyze the image and identify the main person. " +
	"Create a new image where this person is perfectly isolated and placed on a solid background with the hex color %s. " +
	"Ensure the person is fully opaque and the background is a single, solid color. " +
	"Nothing from the original background should be visible."

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiReplacer 调用 Gemini 图像模型替换背景
type GeminiReplacer struct {
	models contentGenerator
	model  string
}

func NewGeminiReplacer(ctx context.Context, cfg *config.GeminiConfig) (*GeminiReplacer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, config.ErrMissingCredential
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiReplacer{models: client.Models, model: cfg.Model}, nil
}

func (g *GeminiReplacer) ReplaceBackground(ctx context.Context, img model.EmbeddedImage, color model.BackgroundColor) (model.EmbeddedImage, error) {
	payload, err := jpegPayload(img)
	if err != nil {
		return model.EmbeddedImage{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(payload, MimeJPEG),
			genai.NewPartFromText(fmt.Sprintf(backgroundPrompt, color)),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		utils.Logger.Error("gemini request failed",
			zap.String("model", g.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return model.EmbeddedImage{}, fmt.Errorf("%w: %w", ErrService, err)
	}

	result, err := firstInlineImage(resp)
	if err != nil {
		utils.Logger.Warn("gemini response without image", zap.String("model", g.model))
		return model.EmbeddedImage{}, err
	}

	utils.Logger.Info("background replaced",
		zap.String("model", g.model),
		zap.String("color", color.String()),
		zap.String("mime_type", result.MimeType),
		zap.Int("size", len(result.Data)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// jpegPayload 请求统一使用 image/jpeg，其他格式先转码
func jpegPayload(img model.EmbeddedImage) ([]byte, error) {
	if DetectMimeType(img.MimeType, img.Data) == MimeJPEG {
		return img.Data, nil
	}
	decoded, err := DecodeImage(img.Data)
	if err != nil {
		return nil, err
	}
	data, err := encodeJPEG(decoded, 95)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// firstInlineImage 返回首个候选结果中第一个带内联图片数据的部分
func firstInlineImage(resp *genai.GenerateContentResponse) (model.EmbeddedImage, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return model.EmbeddedImage{}, ErrNoImageInResponse
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return model.EmbeddedImage{}, ErrNoImageInResponse
	}
	for _, part := range cand.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := DetectMimeType(part.InlineData.MIMEType, part.InlineData.Data)
		return model.EmbeddedImage{MimeType: mimeType, Data: part.InlineData.Data}, nil
	}
	return model.EmbeddedImage{}, ErrNoImageInResponse
}
