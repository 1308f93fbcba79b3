package capture_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"adreact/internal/capture"
	"adreact/internal/media"
)

func fakeNode(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create node: %v", err)
	}
	return path
}

func TestAcquireVideoOnly(t *testing.T) {
	device := capture.NewDevice(capture.Config{VideoDevice: fakeNode(t, "video0")})

	stream, err := device.Acquire(context.Background(), media.AcquireOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if stream.HasAudio() {
		t.Fatal("video-only stream reports audio")
	}
	stream.Stop()
}

func TestAcquireWithAlsaAudioName(t *testing.T) {
	device := capture.NewDevice(capture.Config{
		VideoDevice: fakeNode(t, "video0"),
		AudioDevice: "hw:1,0",
	})

	stream, err := device.Acquire(context.Background(), media.AcquireOptions{Audio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !stream.HasAudio() {
		t.Fatal("expected audio track for ALSA device name")
	}
	stream.Stop()
}

func TestAcquireFailsWithoutVideoNode(t *testing.T) {
	device := capture.NewDevice(capture.Config{VideoDevice: "/nonexistent/video0"})

	if _, err := device.Acquire(context.Background(), media.AcquireOptions{}); err == nil {
		t.Fatal("expected error for missing video node")
	}
}

func TestAcquireFailsWhenAudioNodeMissing(t *testing.T) {
	device := capture.NewDevice(capture.Config{
		VideoDevice: fakeNode(t, "video0"),
		AudioDevice: "/nonexistent/audio0",
	})

	if _, err := device.Acquire(context.Background(), media.AcquireOptions{Audio: true}); err == nil {
		t.Fatal("expected error for missing audio node")
	}
}

func TestAcquireHonorsCancelledContext(t *testing.T) {
	device := capture.NewDevice(capture.Config{VideoDevice: fakeNode(t, "video0")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := device.Acquire(ctx, media.AcquireOptions{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
