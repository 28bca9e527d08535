package images

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
)

// Fetcher retrieves original card art, inline or over HTTP
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "image/*, */*;q=0.5")
	return &Fetcher{client: client}
}

// Image is a fetched payload plus the extension it should be saved with.
type Image struct {
	Data []byte
	Ext  string
}

// Fetch resolves imageURL. Data URIs are decoded in place; anything else is
// downloaded. The extension comes from the content type, then the URL's file
// name, then falls back to .bin.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	if IsDataURI(imageURL) {
		data, err := DecodeDataURI(imageURL)
		if err != nil {
			return nil, err
		}
		ext := ExtFromContentType(MediaType(imageURL))
		if ext == "" {
			ext = ".bin"
		}
		return &Image{Data: data, Ext: ext}, nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch %s -> %d", imageURL, resp.StatusCode())
	}

	data := resp.Body()
	ext := ExtFromContentType(resp.Header().Get("Content-Type"))
	if ext == "" {
		ext = ExtFromURL(imageURL)
	}
	if ext == "" {
		ext = ".bin"
	}

	slog.Debug("Fetched original image", "url", imageURL, "size", humanize.Bytes(uint64(len(data))), "ext", ext)
	return &Image{Data: data, Ext: ext}, nil
}
