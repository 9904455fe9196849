package common

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageSourceDecode(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxSize      uint32
		wantW, wantH uint32
	}{
		{"native", 4, 2, 0, 4, 2},
		{"within limit", 4, 2, 8, 4, 2},
		{"downscaled wide", 16, 8, 4, 4, 2},
		{"downscaled tall", 8, 16, 4, 2, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			staged, err := ImageSource{Data: encodePNG(t, tc.w, tc.h), MaxSize: tc.maxSize}.Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if staged.Width != tc.wantW || staged.Height != tc.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", staged.Width, staged.Height, tc.wantW, tc.wantH)
			}
			if got, want := len(staged.Pixels), int(tc.wantW*tc.wantH*4); got != want {
				t.Fatalf("len(Pixels) = %d, want %d", got, want)
			}
			if staged.Pixels[0] < 250 || staged.Pixels[3] < 250 {
				t.Fatalf("first pixel = %v, want opaque red", staged.Pixels[:4])
			}
		})
	}
}

func TestImageSourceDecodeEmpty(t *testing.T) {
	if _, err := (ImageSource{}).Decode(); !errors.Is(err, ErrNoImageSource) {
		t.Fatalf("err = %v, want ErrNoImageSource", err)
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "b", "c"); got != "b" {
		t.Errorf("Coalesce = %q, want b", got)
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce = %d, want 0", got)
	}
}
