package imaging

import (
	"fmt"
	"image"
	"image/draw"
)

// Buffer is a raw RGBA pixel buffer decoupled from any capture or display
// framework. Pix holds 4 bytes per pixel (R, G, B, A) in row-major order.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// FromImage copies an image into a Buffer, converting to RGBA if needed.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &Buffer{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    rgba.Pix,
	}
}

// NewBuffer allocates a zeroed buffer of the given dimensions.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// ToImage returns the buffer as a standard RGBA image sharing the pixel data.
func (b *Buffer) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Validate reports whether the buffer dimensions match its pixel data.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("nil buffer")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", b.Width, b.Height)
	}
	if len(b.Pix) != b.Width*b.Height*4 {
		return fmt.Errorf("pixel data length %d does not match %dx%d", len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// gray returns the luma approximation of the pixel at (x, y).
func (b *Buffer) gray(x, y int) float64 {
	i := (y*b.Width + x) * 4
	return (float64(b.Pix[i]) + float64(b.Pix[i+1]) + float64(b.Pix[i+2])) / 3.0
}
