package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent   = errors.New("qrcode: content cannot be empty")
	ErrInvalidSize    = errors.New("qrcode: size out of range")
	ErrFailedToRender = errors.New("qrcode: failed to render")
)

const (
	DefaultSize = 256
	MaxSize     = 2048
)

// Level is the error recovery level baked into the symbol.
type Level = skipqrcode.RecoveryLevel

const (
	Low     Level = skipqrcode.Low
	Medium  Level = skipqrcode.Medium
	High    Level = skipqrcode.High
	Highest Level = skipqrcode.Highest
)

// Renderer draws PNG QR codes.
type Renderer struct {
	level Level
}

func NewRenderer(level Level) *Renderer {
	return &Renderer{level: level}
}

// PNG renders content as a square PNG of size pixels. Zero size means DefaultSize.
func (r *Renderer) PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size == 0 {
		size = DefaultSize
	}
	if size < 21 || size > MaxSize {
		return nil, ErrInvalidSize
	}

	png, err := skipqrcode.Encode(content, r.level, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToRender, err)
	}
	return png, nil
}

// DataURI renders content and returns it as a data:image/png;base64 URI.
func (r *Renderer) DataURI(content string, size int) (string, error) {
	png, err := r.PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
