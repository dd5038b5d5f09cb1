package infra

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

type QRCodeGenerator struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRCodeGenerator() *QRCodeGenerator {
	return &QRCodeGenerator{size: 256, level: qrcode.Medium}
}

// DataURL renders content as a PNG QR code wrapped in a data URL.
func (q *QRCodeGenerator) DataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, q.level, q.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
