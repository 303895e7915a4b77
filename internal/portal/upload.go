package portal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/pkg/gcs"
)

const uploadPrefix = "uploads"

// UploadRequest is a photo or video submitted by a patient.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload validates the media type and size and stores the file in GCS.
// A missing or generic content type is sniffed from the first bytes.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*gcs.Object, error) {
	if s.uploader == nil {
		return nil, eris.Wrap(ErrUnavailable, "portal: upload storage")
	}
	if req.Body == nil {
		return nil, invalid("portal: file is required")
	}
	if s.cfg.MaxUploadBytes > 0 && req.Size > s.cfg.MaxUploadBytes {
		return nil, invalid("portal: file exceeds %d MB", s.cfg.MaxUploadBytes>>20)
	}

	br := bufio.NewReaderSize(req.Body, 512)
	contentType := mediaType(req.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := br.Peek(512)
		contentType = mediaType(http.DetectContentType(head))
	}
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return nil, invalid("portal: unsupported content type %q", contentType)
	}

	var body io.Reader = br
	if s.cfg.MaxUploadBytes > 0 {
		body = &limitedReader{r: br, remaining: s.cfg.MaxUploadBytes}
	}

	name := gcs.ObjectName(uploadPrefix, req.Filename, s.now())
	obj, err := s.uploader.Upload(ctx, name, contentType, body)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, invalid("portal: file exceeds %d MB", s.cfg.MaxUploadBytes>>20)
		}
		return nil, eris.Wrap(err, "portal: upload")
	}

	zap.L().Info("portal: media uploaded",
		zap.String("object", obj.Name),
		zap.String("content_type", contentType),
		zap.Int64("size", obj.Size),
	)
	return obj, nil
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

var errTooLarge = eris.New("upload too large")

// limitedReader fails, rather than truncating, once more than remaining
// bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
