package command

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Photo is one image of the evidence set. Field is the form key the backend
// expects (e.g. "front", "interior"); several photos may share a field.
type Photo struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadPhotos sends the evidence set for a flow phase as multipart/form-data.
func (c *Client) UploadPhotos(ctx context.Context, flow Flow, phase Phase, photos []Photo) error {
	op := fmt.Sprintf("upload_%s_%s", flow, phase)
	path, err := uploadPath(flow, phase)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return fmt.Errorf("%s: no photos to upload", op)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range photos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Field, p.Filename))
		ct := p.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("%s: failed to create form part: %w", op, err)
		}
		if _, err := part.Write(p.Data); err != nil {
			return fmt.Errorf("%s: failed to write form part: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: failed to finish form: %w", op, err)
	}

	return c.do(ctx, op, http.MethodPost, path, &buf, w.FormDataContentType(), nil)
}
