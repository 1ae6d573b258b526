package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func responseWith(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func jpegInput() model.EmbeddedImage {
	return model.EmbeddedImage{MimeType: MimeJPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}}
}

func TestGeminiReplacerReturnsFirstImage(t *testing.T) {
	gen := &fakeGenerator{resp: responseWith(
		&genai.Part{Text: "Here is your photo."},
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("first")}},
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte("second")}},
	)}
	r := &GeminiReplacer{models: gen, model: "gemini-2.5-flash-image-preview"}

	out, err := r.ReplaceBackground(context.Background(), jpegInput(), "#0073e6")
	require.NoError(t, err)
	assert.Equal(t, model.EmbeddedImage{MimeType: "image/png", Data: []byte("first")}, out)

	assert.Equal(t, "gemini-2.5-flash-image-preview", gen.model)
	assert.ElementsMatch(t, []string{"IMAGE", "TEXT"}, gen.config.ResponseModalities)
	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, MimeJPEG, parts[0].InlineData.MIMEType)
	assert.Equal(t, jpegInput().Data, parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "#0073e6")
}

func TestGeminiReplacerTextOnly(t *testing.T) {
	gen := &fakeGenerator{resp: responseWith(&genai.Part{Text: "I cannot do that."})}
	r := &GeminiReplacer{models: gen, model: "m"}

	_, err := r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	assert.ErrorIs(t, err, ErrNoImageInResponse)
}

func TestGeminiReplacerEmptyResponse(t *testing.T) {
	r := &GeminiReplacer{models: &fakeGenerator{resp: &genai.GenerateContentResponse{}}, model: "m"}
	_, err := r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	assert.ErrorIs(t, err, ErrNoImageInResponse)

	r = &GeminiReplacer{models: &fakeGenerator{}, model: "m"}
	_, err = r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	assert.ErrorIs(t, err, ErrNoImageInResponse)
}

func TestGeminiReplacerServiceError(t *testing.T) {
	quota := errors.New("429 resource exhausted")
	r := &GeminiReplacer{models: &fakeGenerator{err: quota}, model: "m"}

	_, err := r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	assert.ErrorIs(t, err, ErrService)
	assert.ErrorIs(t, err, quota)
}

func TestGeminiReplacerTranscodesToJPEG(t *testing.T) {
	gen := &fakeGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("x")}})}
	r := &GeminiReplacer{models: gen, model: "m"}
	in := model.EmbeddedImage{MimeType: MimePNG, Data: encodePNG(t, solidImage(70, 90, red))}

	_, err := r.ReplaceBackground(context.Background(), in, "#ffffff")
	require.NoError(t, err)

	payload := gen.contents[0].Parts[0].InlineData.Data
	require.Greater(t, len(payload), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, payload[:2])

	_, err = r.ReplaceBackground(context.Background(), model.EmbeddedImage{MimeType: MimePNG, Data: []byte("nope")}, "#ffffff")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNewGeminiReplacerRequiresKey(t *testing.T) {
	_, err := NewGeminiReplacer(context.Background(), &config.GeminiConfig{Model: "m"})
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestGeminiReplacerReadsFirstCandidateOnly(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "No image this time."}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("late")}}}}},
		},
	}}
	r := &GeminiReplacer{models: gen, model: "m"}

	_, err := r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	assert.ErrorIs(t, err, ErrNoImageInResponse)
}

func TestGeminiReplacerTranscodesMislabeledInput(t *testing.T) {
	gen := &fakeGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("x")}})}
	r := &GeminiReplacer{models: gen, model: "m"}
	// 声明为 JPEG，实际是 PNG
	in := model.EmbeddedImage{MimeType: MimeJPEG, Data: encodePNG(t, solidImage(70, 90, red))}

	_, err := r.ReplaceBackground(context.Background(), in, "#ffffff")
	require.NoError(t, err)

	payload := gen.contents[0].Parts[0].InlineData.Data
	assert.Equal(t, []byte{0xFF, 0xD8}, payload[:2])
}

func TestGeminiReplacerResultTypeFromContent(t *testing.T) {
	png := encodePNG(t, solidImage(7, 9, red))
	gen := &fakeGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: png}})}
	r := &GeminiReplacer{models: gen, model: "m"}

	out, err := r.ReplaceBackground(context.Background(), jpegInput(), "#ffffff")
	require.NoError(t, err)
	assert.Equal(t, MimePNG, out.MimeType)
}
