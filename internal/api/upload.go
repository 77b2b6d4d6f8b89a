package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

type UploadResult struct {
	URL string `json:"url"`
}

// Upload posts a single multipart "file" field. Only the bearer header is
// set; the multipart writer owns Content-Type.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	c.EnsureDefaults()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL("upload.php", nil), &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	tok, err := c.token(ctx)
	if err != nil {
		return UploadResult{}, err
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	var out UploadResult
	err = c.send(req, call{method: http.MethodPost, endpoint: "upload.php", fallback: UploadErrorMessage}, tok != "", &out)
	return out, err
}
