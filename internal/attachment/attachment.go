package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults is the fallback name and media type applied when a reference does
// not carry its own.
type Defaults struct {
	FileName string
	MimeType string
}

// SignatureDefaults is the policy for consent-term signature photos.
func SignatureDefaults() Defaults {
	return Defaults{FileName: "signature.png", MimeType: "image/png"}
}

// LesionDefaults is the policy for the i-th lesion photo of a submission.
func LesionDefaults(i int) Defaults {
	return Defaults{FileName: "lesion_image_" + strconv.Itoa(i) + ".jpg", MimeType: "image/jpeg"}
}

func (d Defaults) withFallback() Defaults {
	if strings.TrimSpace(d.FileName) == "" {
		d.FileName = "attachment"
	}
	if strings.TrimSpace(d.MimeType) == "" {
		d.MimeType = "application/octet-stream"
	}
	return d
}

// Attachment is a normalized file reference ready for a multipart file part.
type Attachment struct {
	URI      string
	FileName string
	MimeType string

	// Temporary is set when the file behind URI was written by the
	// normalizer and should be removed once the upload is done.
	Temporary bool
}

// Open returns the attachment content. Inline data URLs are decoded, file
// paths and file:// URIs are opened from disk.
func (a Attachment) Open() (io.ReadCloser, error) {
	if strings.HasPrefix(a.URI, "data:") {
		_, payload, ok := strings.Cut(a.URI, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data url without payload", ErrInvalidImageFormat)
		}
		raw, err := decodeBase64(payload)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	path, err := localPath(a.URI)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Readable reports whether Open can succeed without reading the content:
// data URLs must decode and local files must exist as regular files.
// Failures wrap ErrInvalidImageFormat.
func (a Attachment) Readable() error {
	if strings.HasPrefix(a.URI, "data:") {
		_, payload, ok := strings.Cut(a.URI, ",")
		if !ok {
			return fmt.Errorf("%w: data url without payload", ErrInvalidImageFormat)
		}
		_, err := decodeBase64(payload)
		return err
	}

	path, err := localPath(a.URI)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageFormat, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", ErrInvalidImageFormat, a.URI, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidImageFormat, a.URI)
	}
	return nil
}

// Cleanup removes files the normalizer wrote. It is a no-op for everything
// else.
func (a Attachment) Cleanup() error {
	if !a.Temporary || a.URI == "" {
		return nil
	}
	return os.RemoveAll(filepath.Dir(a.URI))
}

func localPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return uri, nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse file uri: %w", err)
	}
	return parsed.Path, nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		if rawNoPad, errNoPad := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); errNoPad == nil {
			return rawNoPad, nil
		}
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidImageFormat, err)
	}
	return raw, nil
}
