package model

import (
	"errors"
	"image/color"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var ErrInvalidColor = errors.New("background color must be a #rrggbb hex string")

const DefaultBackgroundColor BackgroundColor = "#ffffff"

// PresetColors 常用证件照底色
var PresetColors = []BackgroundColor{"#ffffff", "#0073e6", "#e60000", "#cccccc"}

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// BackgroundColor 六位十六进制颜色，如 #0073e6
type BackgroundColor string

// ParseBackgroundColor 校验格式并统一为小写
func ParseBackgroundColor(s string) (BackgroundColor, error) {
	s = strings.TrimSpace(s)
	if !hexColorPattern.MatchString(s) {
		return "", ErrInvalidColor
	}
	return BackgroundColor(strings.ToLower(s)), nil
}

func (c BackgroundColor) String() string {
	return string(c)
}

// NRGBA 转换为不透明像素颜色
func (c BackgroundColor) NRGBA() (color.NRGBA, error) {
	if !hexColorPattern.MatchString(string(c)) {
		return color.NRGBA{}, ErrInvalidColor
	}
	parsed, err := colorful.Hex(string(c))
	if err != nil {
		return color.NRGBA{}, errors.Join(ErrInvalidColor, err)
	}
	r, g, b := parsed.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
