package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRCodeSize = 256
	minQRCodeSize     = 128
	maxQRCodeSize     = 1024
)

// RenderQRCode returns a PNG of the stored Pix copy-and-paste payload
func (s *PaymentService) RenderQRCode(ctx context.Context, id string, size int) ([]byte, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(payment.QRCode)
	if content == "" {
		return nil, ErrQRCodeUnavailable
	}
	png, err := qrcode.Encode(content, qrcode.Medium, clampQRCodeSize(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRCodeUnavailable, err)
	}
	return png, nil
}

func clampQRCodeSize(size int) int {
	switch {
	case size <= 0:
		return defaultQRCodeSize
	case size < minQRCodeSize:
		return minQRCodeSize
	case size > maxQRCodeSize:
		return maxQRCodeSize
	default:
		return size
	}
}
