// Package attachment turns the photo references produced by capture and
// gallery flows into attachments that can be sent as multipart file parts.
package attachment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidImageFormat is returned for references that cannot be
	// turned into an attachment.
	ErrInvalidImageFormat = errors.New("invalid image format")

	// ErrEmptyImage is returned for nil or blank references. It matches
	// ErrInvalidImageFormat under errors.Is.
	ErrEmptyImage = fmt.Errorf("%w: image is empty", ErrInvalidImageFormat)
)

const dataURLImagePrefix = "data:image"

// Ref is a photo reference. The concrete types are Base64Image, FileURI and
// DescribedFile.
type Ref interface {
	isRef()
}

// Base64Image is a data URL split on its first comma.
type Base64Image struct {
	MimePrefix string // e.g. "data:image/png;base64"
	Data       string
}

// FileURI is a local path or file:// URI.
type FileURI struct {
	Path string
}

// DescribedFile is a picker/camera asset carrying its own metadata. Empty
// MimeType or FileName fall back to the caller's Defaults.
type DescribedFile struct {
	URI      string
	MimeType string
	FileName string
}

func (Base64Image) isRef()   {}
func (FileURI) isRef()       {}
func (DescribedFile) isRef() {}

// DataURL reassembles the original data URL.
func (b Base64Image) DataURL() string {
	return b.MimePrefix + "," + b.Data
}

// ParseRef classifies a string coming from the capture layer: data URLs with
// an image media type become Base64Image, anything else is a FileURI.
func ParseRef(value string) (Ref, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyImage
	}
	if !strings.HasPrefix(value, dataURLImagePrefix) {
		return FileURI{Path: value}, nil
	}

	prefix, data, ok := strings.Cut(value, ",")
	if !ok || strings.TrimSpace(data) == "" {
		return nil, fmt.Errorf("%w: data url without payload", ErrInvalidImageFormat)
	}
	return Base64Image{MimePrefix: prefix, Data: data}, nil
}
