package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/observability"
)

// DefaultMaxDocumentMB bounds justification attachments.
const DefaultMaxDocumentMB = 10

// DocumentStorage persists validated attachments and returns a reference to them.
type DocumentStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// justificationDocument is an attachment that passed boundary validation but is not stored yet.
type justificationDocument struct {
	name    string
	mime    string
	payload []byte
}

func (d justificationDocument) describe(ref string) dto.JustificationDocument {
	return dto.JustificationDocument{
		MimeType:   d.mime,
		SizeBytes:  int64(len(d.payload)),
		StorageRef: ref,
	}
}

// readDocument enforces the size limit and sniffs the content; only images are accepted.
func readDocument(file *multipart.FileHeader, maxBytes int64) (*justificationDocument, error) {
	if file == nil {
		return nil, nil
	}
	if file.Size > maxBytes {
		observability.DocumentRejected().WithLabelValues("size").Inc()
		return nil, invalidField("document", fmt.Sprintf("must not exceed %d MB", maxBytes/(1024*1024)))
	}

	handle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxBytes+1)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(buf.Len()) > maxBytes {
		observability.DocumentRejected().WithLabelValues("size").Inc()
		return nil, invalidField("document", fmt.Sprintf("must not exceed %d MB", maxBytes/(1024*1024)))
	}
	if buf.Len() == 0 {
		observability.DocumentRejected().WithLabelValues("empty").Inc()
		return nil, invalidField("document", "is empty")
	}

	detected := mimetype.Detect(buf.Bytes())
	mime := strings.ToLower(detected.String())
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if !strings.HasPrefix(mime, "image/") {
		observability.DocumentRejected().WithLabelValues("type").Inc()
		return nil, invalidField("document", "must be an image")
	}

	return &justificationDocument{
		name:    documentName(file.Filename, detected.Extension()),
		mime:    mime,
		payload: buf.Bytes(),
	}, nil
}

func documentName(name, detectedExt string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("justification-%d", time.Now().Unix())
	}
	if detectedExt == "" {
		detectedExt = ".img"
	}
	return base + detectedExt
}
