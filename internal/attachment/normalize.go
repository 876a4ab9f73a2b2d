package attachment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Mode selects how base64 images are handed to the transport.
type Mode int

const (
	// ModeCacheFile decodes base64 images into a file under the cache
	// directory and references that file.
	ModeCacheFile Mode = iota
	// ModeInline keeps the data URL as the attachment URI.
	ModeInline
)

// ParseMode maps the configuration strings "cache-file" and "inline".
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "cache-file":
		return ModeCacheFile, nil
	case "inline":
		return ModeInline, nil
	default:
		return 0, fmt.Errorf("unknown image mode %q", value)
	}
}

const defaultConcurrency = 4

// Normalizer resolves Refs into Attachments. The zero value writes cache
// files under os.TempDir().
type Normalizer struct {
	Mode        Mode
	CacheDir    string
	Concurrency int
}

// Outcome is the per-item result of NormalizeAll. Err non-nil means the item
// was skipped.
type Outcome struct {
	Index      int
	Attachment Attachment
	Err        error
}

// Normalize resolves a single reference. Any cache file is fully written
// before it returns.
func (n *Normalizer) Normalize(ctx context.Context, ref Ref, defaults Defaults) (Attachment, error) {
	if err := ctx.Err(); err != nil {
		return Attachment{}, err
	}
	defaults = defaults.withFallback()

	switch r := ref.(type) {
	case nil:
		return Attachment{}, ErrEmptyImage
	case Base64Image:
		return n.normalizeBase64(r, defaults)
	case FileURI:
		if strings.TrimSpace(r.Path) == "" {
			return Attachment{}, ErrEmptyImage
		}
		return Attachment{URI: r.Path, FileName: defaults.FileName, MimeType: defaults.MimeType}, nil
	case DescribedFile:
		if strings.TrimSpace(r.URI) == "" {
			return Attachment{}, fmt.Errorf("%w: described file without uri", ErrInvalidImageFormat)
		}
		att := Attachment{URI: r.URI, FileName: defaults.FileName, MimeType: defaults.MimeType}
		if r.FileName != "" {
			att.FileName = r.FileName
		}
		if r.MimeType != "" {
			att.MimeType = r.MimeType
		}
		return att, nil
	default:
		return Attachment{}, fmt.Errorf("%w: unsupported reference %T", ErrInvalidImageFormat, ref)
	}
}

// NormalizeAll resolves every ref independently. A failing item never stops
// the others; the returned outcomes follow input order.
func (n *Normalizer) NormalizeAll(ctx context.Context, refs []Ref, defaultsFor func(i int) Defaults) []Outcome {
	outcomes := make([]Outcome, len(refs))

	var g errgroup.Group
	g.SetLimit(n.concurrency())
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			att, err := n.Normalize(ctx, ref, defaultsFor(i))
			outcomes[i] = Outcome{Index: i, Attachment: att, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Attached returns the attachments of the successful outcomes.
func Attached(outcomes []Outcome) []Attachment {
	out := make([]Attachment, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Attachment)
		}
	}
	return out
}

// Skipped returns the failed outcomes.
func Skipped(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

func (n *Normalizer) normalizeBase64(img Base64Image, defaults Defaults) (Attachment, error) {
	if strings.TrimSpace(img.Data) == "" {
		return Attachment{}, ErrEmptyImage
	}
	if !strings.HasPrefix(img.MimePrefix, "data:") {
		return Attachment{}, fmt.Errorf("%w: media prefix %q is not a data url", ErrInvalidImageFormat, img.MimePrefix)
	}
	raw, err := decodeBase64(img.Data)
	if err != nil {
		return Attachment{}, err
	}

	if n.Mode == ModeInline {
		return Attachment{URI: img.DataURL(), FileName: defaults.FileName, MimeType: defaults.MimeType}, nil
	}

	path, err := n.writeCacheFile(raw, defaults.FileName)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{URI: path, FileName: defaults.FileName, MimeType: defaults.MimeType, Temporary: true}, nil
}

// writeCacheFile stores raw under a fresh directory so concurrent
// submissions using the same default name never overwrite each other.
func (n *Normalizer) writeCacheFile(raw []byte, fileName string) (string, error) {
	base := n.CacheDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "atendimento-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	name := filepath.Base(fileName)
	if name == "." || name == string(filepath.Separator) {
		name = "attachment"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write cache file: %w", err)
	}
	return path, nil
}

func (n *Normalizer) concurrency() int {
	if n.Concurrency > 0 {
		return n.Concurrency
	}
	return defaultConcurrency
}
