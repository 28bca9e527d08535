package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Materializer writes generated and original card images under
// <root>/<side>/<faction>/<kind>/.
type Materializer struct {
	OutDir       string
	OriginalsDir string
	Fetcher      *Fetcher
	Transcoder   Transcoder
}

// Generated is the front image of a card. JPGPath is empty when the JPEG
// rendition could not be produced.
type Generated struct {
	PNGPath string
	JPGPath string
}

// Front is the path recorded for the card front.
func (g Generated) Front() string {
	if g.JPGPath != "" {
		return g.JPGPath
	}
	return g.PNGPath
}

// Stem is the shared file stem that pairs front and back images.
func (g Generated) Stem() string {
	return Stem(filepath.Base(g.PNGPath))
}

// Original is the source art saved as the card back.
type Original struct {
	Path    string
	JPGPath string
}

// Back is the path recorded for the card back, or "" when nothing was saved.
func (o Original) Back() string {
	if o.JPGPath != "" {
		return o.JPGPath
	}
	return o.Path
}

// Saved reports whether an original image was written.
func (o Original) Saved() bool {
	return o.Path != ""
}

// SaveGenerated decodes the build tool's PNG data URI into
// <outdir>/<parts...>/<base>, then writes a JPEG next to it.
func (m *Materializer) SaveGenerated(ctx context.Context, parts []string, base, dataURI string) (Generated, error) {
	dir, err := ensureSubdir(m.OutDir, parts)
	if err != nil {
		return Generated{}, err
	}

	data, err := DecodeDataURI(dataURI)
	if err != nil {
		return Generated{}, err
	}

	pngPath := filepath.Join(dir, EnsurePNGExt(base))
	if err := os.WriteFile(pngPath, data, 0644); err != nil {
		return Generated{}, fmt.Errorf("failed to write generated image: %w", err)
	}
	slog.Info("Saved generated image", "path", pngPath, "size", humanize.Bytes(uint64(len(data))))

	g := Generated{PNGPath: pngPath}
	jpgPath := SwapExt(pngPath, ".jpg")
	if err := m.Transcoder.ToJPEG(ctx, pngPath, jpgPath); err != nil {
		slog.Warn("JPEG conversion failed, keeping PNG as front", "path", pngPath, "error", err)
		return g, nil
	}
	g.JPGPath = jpgPath
	slog.Info("Converted to JPG", "path", jpgPath)
	return g, nil
}

// SaveOriginal stores the card's source art as <originals>/<parts...>/<stem><ext>.
// The stem is always the generated image's stem so front and back pair by
// name. An empty imageURL saves nothing.
func (m *Materializer) SaveOriginal(ctx context.Context, parts []string, stem, imageURL string) (Original, error) {
	if imageURL == "" {
		return Original{}, nil
	}

	dir, err := ensureSubdir(m.OriginalsDir, parts)
	if err != nil {
		return Original{}, err
	}

	img, err := m.Fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return Original{}, err
	}

	p := filepath.Join(dir, Sanitize(stem, "original")+img.Ext)
	if err := os.WriteFile(p, img.Data, 0644); err != nil {
		return Original{}, fmt.Errorf("failed to write original image: %w", err)
	}
	slog.Info("Saved original image", "path", p, "size", humanize.Bytes(uint64(len(img.Data))))

	o := Original{Path: p}
	if strings.EqualFold(img.Ext, ".png") {
		jpgPath := SwapExt(p, ".jpg")
		if err := m.Transcoder.ToJPEG(ctx, p, jpgPath); err != nil {
			slog.Warn("JPEG conversion of original failed", "path", p, "error", err)
			return o, nil
		}
		o.JPGPath = jpgPath
		slog.Info("Converted original to JPG", "path", jpgPath)
	}
	return o, nil
}

func ensureSubdir(root string, parts []string) (string, error) {
	segments := []string{root}
	for _, p := range parts {
		segments = append(segments, Sanitize(p, "file"))
	}
	dir := filepath.Join(segments...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}
