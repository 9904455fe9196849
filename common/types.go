// package common contains the plain data types, configuration and logging shared by the engine packages.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// ImageSource identifies encoded image bytes to decode into a TextureStagingData.
// Either Data or Path must be set; Data wins when both are.
type ImageSource struct {
	// Path is a PNG or JPEG file on disk.
	Path string

	// Data is an in-memory PNG or JPEG image.
	Data []byte

	// MaxSize, when non-zero, downscales the image so neither side exceeds it.
	MaxSize uint32
}

// ErrNoImageSource is returned by Decode when neither Data nor Path is set.
var ErrNoImageSource = errors.New("image source has neither data nor path")

// Decode decodes the image to RGBA pixel data, downscaling when MaxSize requires it.
// Supports PNG and JPEG formats.
//
// Returns:
//   - TextureStagingData: the decoded pixels and dimensions
//   - error: error if decoding fails
func (s ImageSource) Decode() (TextureStagingData, error) {
	var img image.Image
	var err error

	switch {
	case len(s.Data) > 0:
		img, _, err = image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	case s.Path != "":
		file, fileErr := os.Open(s.Path)
		if fileErr != nil {
			return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", s.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", s.Path, err)
		}
	default:
		return TextureStagingData{}, ErrNoImageSource
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), int(s.MaxSize))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(width),
		Height: uint32(height),
	}, nil
}

// fitWithin scales width and height down, preserving aspect ratio, so neither exceeds limit.
// A limit of 0 leaves the size unchanged.
func fitWithin(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		return limit, max(1, height*limit/width)
	}
	return max(1, width*limit/height), limit
}
