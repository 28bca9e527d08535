package images

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"
)

// Transcoder writes a JPEG rendition of src to dst.
type Transcoder interface {
	ToJPEG(ctx context.Context, src, dst string) error
}

// NewTranscoder returns the transcoder registered under name.
func NewTranscoder(name string) (Transcoder, error) {
	switch name {
	case "ffmpeg", "":
		return FFmpeg{Binary: "ffmpeg", Quality: 5}, nil
	case "native":
		return Native{Quality: 80}, nil
	default:
		return nil, fmt.Errorf("unsupported transcoder: %s", name)
	}
}

// FFmpeg shells out to ffmpeg with a fixed qscale.
type FFmpeg struct {
	Binary  string
	Quality int
}

func (f FFmpeg) ToJPEG(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, f.Binary, "-i", src, "-q:v", fmt.Sprint(f.Quality), dst, "-y")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", src, err, lastLine(out))
	}
	return nil
}

// Native transcodes in-process. Transparent pixels are flattened onto white.
type Native struct {
	Quality int
}

func (n Native) ToJPEG(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", src, err)
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if err := jpeg.Encode(out, flat, &jpeg.Options{Quality: n.Quality}); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode %s: %w", dst, err)
	}
	return out.Close()
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
