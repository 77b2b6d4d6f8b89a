// Package media checks and encodes the images attached to requests and
// profiles.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const MaxImageBytes = 5 << 20

var (
	ErrNotImage = errors.New("apenas imagens são permitidas")
	ErrTooLarge = errors.New("Imagem muito grande! Máximo 5MB.")
)

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// Image is a decoded-header view of an image file.
type Image struct {
	Format string
	MIME   string
	Width  int
	Height int
	Data   []byte
}

// Inspect reads at most MaxImageBytes and checks that the content is an
// image in a known format.
func Inspect(r io.Reader) (Image, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return Image{}, err
	}
	if len(b) > MaxImageBytes {
		return Image{}, ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return Image{Format: format, MIME: mimeTypes[format], Width: cfg.Width, Height: cfg.Height, Data: b}, nil
}

func ReadFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, err
	}
	defer f.Close()
	return Inspect(f)
}

// DataURL inlines the image the way description images are stored.
func (img Image) DataURL() string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DataURLs reads each path into a data URL, stopping at the first failure.
func DataURLs(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		img, err := ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, img.DataURL())
	}
	return out, nil
}

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (api.UploadResult, error)
}

// UploadImage checks r and sends it to the upload endpoint, returning the
// public URL.
func UploadImage(ctx context.Context, u Uploader, filename string, r io.Reader) (string, error) {
	img, err := Inspect(r)
	if err != nil {
		return "", err
	}
	res, err := u.Upload(ctx, filename, bytes.NewReader(img.Data))
	if err != nil {
		return "", err
	}
	return res.URL, nil
}
