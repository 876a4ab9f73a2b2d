package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/example/atendimento/internal/attachment"
)

// BodyKind selects how Request.Fields or Request.JSON are encoded.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyMultipart
)

// Request describes one submission to the backend.
type Request struct {
	Operation string
	// Fallback is the failure message used when an error body parses but
	// carries no message of its own.
	Fallback string

	Method    string
	Endpoint  string
	Query     url.Values
	AuthToken string

	Body   BodyKind
	JSON   any
	Fields []Field
}

// Field is one multipart form field.
type Field struct {
	Name  string
	Value FieldValue
}

// FieldValue is Text, File or Files.
type FieldValue interface {
	isFieldValue()
}

// Text is a plain form value.
type Text string

// File is a single file part.
type File struct {
	attachment.Attachment
}

// Files are repeated file parts sharing the field name.
type Files []attachment.Attachment

func (Text) isFieldValue()  {}
func (File) isFieldValue()  {}
func (Files) isFieldValue() {}

func TextField(name, value string) Field {
	return Field{Name: name, Value: Text(value)}
}

func FileField(name string, att attachment.Attachment) Field {
	return Field{Name: name, Value: File{Attachment: att}}
}

func FilesField(name string, atts []attachment.Attachment) Field {
	return Field{Name: name, Value: Files(atts)}
}

func (r Request) build(ctx context.Context, baseURL, requestID string) (*http.Request, error) {
	target := baseURL + r.Endpoint
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch r.Body {
	case BodyNone:
	case BodyJSON:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case BodyMultipart:
		buf := &bytes.Buffer{}
		ct, err := writeMultipart(buf, r.Fields)
		if err != nil {
			return nil, err
		}
		body = buf
		contentType = ct
	default:
		return nil, fmt.Errorf("unknown body kind %d", r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.AuthToken)
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func writeMultipart(buf *bytes.Buffer, fields []Field) (string, error) {
	writer := multipart.NewWriter(buf)

	for _, field := range fields {
		switch v := field.Value.(type) {
		case Text:
			if err := writer.WriteField(field.Name, string(v)); err != nil {
				return "", fmt.Errorf("write field %s: %w", field.Name, err)
			}
		case File:
			if err := writeFilePart(writer, field.Name, v.Attachment); err != nil {
				return "", err
			}
		case Files:
			for _, att := range v {
				if err := writeFilePart(writer, field.Name, att); err != nil {
					return "", err
				}
			}
		default:
			return "", fmt.Errorf("field %s: unsupported value %T", field.Name, field.Value)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}
	return writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(writer *multipart.Writer, name string, att attachment.Attachment) error {
	src, err := att.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", att.FileName, err)
	}
	defer src.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(att.FileName)))
	header.Set("Content-Type", att.MimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create part %s: %w", name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", att.FileName, err)
	}
	return nil
}
