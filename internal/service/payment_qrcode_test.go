package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pixgo-gateway/internal/constants"
)

func TestRenderQRCode(t *testing.T) {
	fx := newServiceFixture(t, nil)
	fx.seedPayment(t, "local-q", "pix_q", constants.PaymentStatusPending)

	png, err := fx.svc.RenderQRCode(context.Background(), "pix_q", 0)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected png bytes")
	}
}

func TestRenderQRCodeWithoutPayload(t *testing.T) {
	fx := newServiceFixture(t, nil)
	payment := fx.seedPayment(t, "local-q2", "pix_q2", constants.PaymentStatusPending)
	if err := fx.db.Model(payment).Update("qr_code", "").Error; err != nil {
		t.Fatalf("clear qr failed: %v", err)
	}

	if _, err := fx.svc.RenderQRCode(context.Background(), "local-q2", 256); !errors.Is(err, ErrQRCodeUnavailable) {
		t.Fatalf("want ErrQRCodeUnavailable got %v", err)
	}
	if _, err := fx.svc.RenderQRCode(context.Background(), "missing", 256); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("want ErrPaymentNotFound got %v", err)
	}
}

func TestClampQRCodeSize(t *testing.T) {
	cases := map[int]int{0: 256, -1: 256, 64: 128, 300: 300, 4096: 1024}
	for in, want := range cases {
		if got := clampQRCodeSize(in); got != want {
			t.Fatalf("clamp(%d) want %d got %d", in, want, got)
		}
	}
}
