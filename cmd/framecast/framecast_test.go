package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-gesture/pkg/gesture"
	"github.com/teslashibe/go-gesture/pkg/server"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

// startServer runs a gesture server backed by a mock that always answers "A".
func startServer(t *testing.T) string {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := gesture.NewAdapter(gesture.NewMock(), gesture.WithLogger(quiet))
	srv := server.New(server.Config{Env: "test", Logger: quiet}, adapter)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Listener(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600)
	}
	os.Mkdir(filepath.Join(dir, "nested.png"), 0o700)
	single := filepath.Join(t.TempDir(), "single.bin")
	os.WriteFile(single, []byte("x"), 0o600)

	files, err := collectImages([]string{single, dir})
	if err != nil {
		t.Fatalf("collectImages: %v", err)
	}
	want := []string{single, filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.png")}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}

	if _, err := collectImages([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:5000":    "ws://localhost:5000/ws",
		"http://localhost:5000/":   "ws://localhost:5000/ws",
		"https://gestures.example": "wss://gestures.example/ws",
		"localhost:5000":           "ws://localhost:5000/ws",
		"ws://10.0.0.2:5000":       "ws://10.0.0.2:5000/ws",
	}
	for in, want := range tests {
		if got := wsURL(in); got != want {
			t.Errorf("wsURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPredictFile(t *testing.T) {
	serverURL = startServer(t)
	path := filepath.Join(t.TempDir(), "hand.png")
	writePNG(t, path)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	for _, inline := range []bool{false, true} {
		predictInline = inline
		label, err := predictFile(cmd, path)
		if err != nil {
			t.Fatalf("predictFile(inline=%v): %v", inline, err)
		}
		if label != "A" {
			t.Errorf("label = %q, want A", label)
		}
	}
	predictInline = false
}

func TestPredictFileServerError(t *testing.T) {
	serverURL = startServer(t)
	path := filepath.Join(t.TempDir(), "broken.png")
	os.WriteFile(path, []byte("not an image"), 0o600)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	_, err := predictFile(cmd, path)
	if err == nil || !strings.Contains(err.Error(), "Unsupported or corrupt image") {
		t.Errorf("err = %v", err)
	}
}

func TestStreamFiles(t *testing.T) {
	serverURL = startServer(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "1.png"))
	writePNG(t, filepath.Join(dir, "2.png"))
	os.WriteFile(filepath.Join(dir, "3.png"), []byte("broken"), 0o600)

	files, err := collectImages([]string{dir})
	if err != nil {
		t.Fatal(err)
	}

	streamInterval = time.Millisecond
	streamWait = 2 * time.Second

	var out bytes.Buffer
	if err := streamFiles(context.Background(), &out, files); err != nil {
		t.Fatalf("streamFiles: %v", err)
	}
	got := out.String()
	if strings.Count(got, "prediction: A") != 2 {
		t.Errorf("output = %q, want two predictions", got)
	}
	if !strings.Contains(got, "error: Unsupported or corrupt image") {
		t.Errorf("output = %q, want an error line", got)
	}
}
