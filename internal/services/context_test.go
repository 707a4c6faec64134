package services_test

import (
	"context"
	"testing"

	"tvrec/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDevice(ctx, "1010CAFE-0")
	ctx = services.WithRecordingID(ctx, "rec-7")
	ctx = services.WithStage(ctx, "frequency")
	ctx = services.WithRequestID(ctx, "req-123")

	if device, ok := services.DeviceFromContext(ctx); !ok || device != "1010CAFE-0" {
		t.Fatalf("unexpected device: %v %v", device, ok)
	}
	if id, ok := services.RecordingIDFromContext(ctx); !ok || id != "rec-7" {
		t.Fatalf("unexpected recording id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "frequency" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithDevice(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.DeviceFromContext(ctx); ok {
		t.Fatal("expected no device value")
	}
}
