package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/attendance"
)

var signatureBytes = []byte("\x89PNG\r\n\x1a\nsignature")

type receivedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

func readFiles(t *testing.T, headers []*multipart.FileHeader) []receivedFile {
	t.Helper()
	out := make([]receivedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			t.Errorf("open part: %v", err)
			continue
		}
		data, _ := io.ReadAll(f)
		f.Close()
		out = append(out, receivedFile{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Content: data})
	}
	return out
}

func TestUploadConsentTermFromBase64(t *testing.T) {
	var got []receivedFile
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cadastrar-termo-consentimento" || r.URL.Query().Get("atendimento_id") != "5" {
			t.Errorf("unexpected target: %s", r.URL)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			t.Errorf("unexpected content type: %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		got = readFiles(t, r.MultipartForm.File["file"])
		respond(http.StatusOK, `{"id":5,"termo":"ok"}`)(w, r)
	})
	cacheDir := client.normalizer.CacheDir

	ref, err := attachment.ParseRef("data:image/png;base64," + base64.StdEncoding.EncodeToString(signatureBytes))
	if err != nil {
		t.Fatalf("parse ref: %v", err)
	}
	if _, err := client.UploadConsentTerm(context.Background(), testToken, 5, ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected one file part, got %d", len(got))
	}
	if got[0].Filename != "signature.png" || got[0].ContentType != "image/png" {
		t.Fatalf("unexpected part metadata: %+v", got[0])
	}
	if !bytes.Equal(got[0].Content, signatureBytes) {
		t.Fatalf("content mismatch: %q", got[0].Content)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected cache files to be cleaned up, found %d entries", len(entries))
	}
}

func TestUploadConsentTermInlineMode(t *testing.T) {
	var got []receivedFile
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		got = readFiles(t, r.MultipartForm.File["file"])
		respond(http.StatusOK, `{}`)(w, r)
	})
	client.normalizer = &attachment.Normalizer{Mode: attachment.ModeInline}

	ref := attachment.Base64Image{MimePrefix: "data:image/png;base64", Data: base64.StdEncoding.EncodeToString(signatureBytes)}
	if _, err := client.UploadConsentTerm(context.Background(), testToken, 1, ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0].Content, signatureBytes) {
		t.Fatalf("unexpected upload: %+v", got)
	}
}

func TestUploadConsentTermRejectsMissingPhoto(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := client.UploadConsentTerm(context.Background(), testToken, 1, nil)
	if !errors.Is(err, attachment.ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	_, err = client.UploadConsentTerm(context.Background(), testToken, 1, attachment.DescribedFile{FileName: "x.png"})
	if !errors.Is(err, attachment.ErrInvalidImageFormat) {
		t.Fatalf("expected ErrInvalidImageFormat, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("nothing should be sent for an invalid photo")
	}
}

func TestRegisterLesionSkipsInvalidImages(t *testing.T) {
	dir := t.TempDir()
	photoPath := filepath.Join(dir, "camera.jpg")
	if err := os.WriteFile(photoPath, []byte("jpeg-from-disk"), 0o600); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	var (
		gotFiles  []receivedFile
		gotFields map[string][]string
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cadastrar-lesao" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFields = r.MultipartForm.Value
		gotFiles = readFiles(t, r.MultipartForm.File["files"])
		respond(http.StatusCreated, `{"id":77}`)(w, r)
	})

	photos := []attachment.Ref{
		attachment.FileURI{Path: photoPath},
		attachment.DescribedFile{MimeType: "image/png"},
		attachment.Base64Image{MimePrefix: "data:image/jpeg;base64", Data: base64.StdEncoding.EncodeToString([]byte("jpeg-from-base64"))},
		attachment.DescribedFile{URI: "file://" + photoPath, MimeType: "image/webp", FileName: "picked.webp"},
	}
	lesion := attendance.Lesion{LocationID: 12, Description: "mancha irregular"}

	result, outcomes, err := client.RegisterLesion(context.Background(), testToken, 3, lesion, photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Data) != `{"id":77}` {
		t.Fatalf("unexpected result: %s", result.Data)
	}

	skipped := attachment.Skipped(outcomes)
	if len(skipped) != 1 || skipped[0].Index != 1 || !errors.Is(skipped[0].Err, attachment.ErrInvalidImageFormat) {
		t.Fatalf("unexpected skipped outcomes: %+v", skipped)
	}

	if gotFields["atendimento_id"][0] != "3" || gotFields["local_lesao_id"][0] != "12" || gotFields["descricao_lesao"][0] != "mancha irregular" {
		t.Fatalf("unexpected fields: %v", gotFields)
	}
	if len(gotFiles) != 3 {
		t.Fatalf("expected 3 file parts, got %d", len(gotFiles))
	}

	byName := make(map[string]receivedFile)
	for _, f := range gotFiles {
		byName[f.Filename] = f
	}
	if f := byName["lesion_image_0.jpg"]; string(f.Content) != "jpeg-from-disk" || f.ContentType != "image/jpeg" {
		t.Fatalf("unexpected first image: %+v", f)
	}
	if f := byName["lesion_image_2.jpg"]; string(f.Content) != "jpeg-from-base64" {
		t.Fatalf("unexpected base64 image: %+v", f)
	}
	if f := byName["picked.webp"]; f.ContentType != "image/webp" || string(f.Content) != "jpeg-from-disk" {
		t.Fatalf("unexpected described image: %+v", f)
	}
}

func TestRegisterLesionSkipsUnreadableFiles(t *testing.T) {
	photoPath := filepath.Join(t.TempDir(), "ok.jpg")
	if err := os.WriteFile(photoPath, []byte("jpeg-from-disk"), 0o600); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	var (
		hits     int32
		gotFiles []receivedFile
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFiles = readFiles(t, r.MultipartForm.File["files"])
		respond(http.StatusOK, `{"id":8}`)(w, r)
	})

	photos := []attachment.Ref{
		attachment.FileURI{Path: photoPath},
		attachment.DescribedFile{URI: "content://media/external/images/42", MimeType: "image/jpeg"},
		attachment.FileURI{Path: t.TempDir()},
	}
	_, outcomes, err := client.RegisterLesion(context.Background(), testToken, 2, attendance.Lesion{LocationID: 1, Description: "d"}, photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one request, got %d", hits)
	}

	skipped := attachment.Skipped(outcomes)
	if len(skipped) != 2 || skipped[0].Index != 1 || skipped[1].Index != 2 {
		t.Fatalf("unexpected skipped outcomes: %+v", skipped)
	}
	for _, s := range skipped {
		if !errors.Is(s.Err, attachment.ErrInvalidImageFormat) {
			t.Fatalf("expected ErrInvalidImageFormat, got %v", s.Err)
		}
	}
	if len(gotFiles) != 1 || string(gotFiles[0].Content) != "jpeg-from-disk" {
		t.Fatalf("expected only the readable image, got %+v", gotFiles)
	}
}

func TestRegisterLesionInlineSkipsBadPrefix(t *testing.T) {
	var gotFiles []receivedFile
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFiles = readFiles(t, r.MultipartForm.File["files"])
		respond(http.StatusOK, `{"id":9}`)(w, r)
	})
	client.normalizer = &attachment.Normalizer{Mode: attachment.ModeInline}

	payload := base64.StdEncoding.EncodeToString([]byte("jpeg"))
	photos := []attachment.Ref{
		attachment.Base64Image{MimePrefix: "", Data: payload},
		attachment.Base64Image{MimePrefix: "data:image/jpeg;base64", Data: payload},
	}
	_, outcomes, err := client.RegisterLesion(context.Background(), testToken, 2, attendance.Lesion{LocationID: 1, Description: "d"}, photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	skipped := attachment.Skipped(outcomes)
	if len(skipped) != 1 || skipped[0].Index != 0 || !errors.Is(skipped[0].Err, attachment.ErrInvalidImageFormat) {
		t.Fatalf("unexpected skipped outcomes: %+v", skipped)
	}
	if len(gotFiles) != 1 || gotFiles[0].Filename != "lesion_image_1.jpg" {
		t.Fatalf("unexpected file parts: %+v", gotFiles)
	}
}

func TestUploadConsentTermRejectsMissingFile(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	missing := attachment.FileURI{Path: filepath.Join(t.TempDir(), "gone.png")}
	_, err := client.UploadConsentTerm(context.Background(), testToken, 1, missing)
	if !errors.Is(err, attachment.ErrInvalidImageFormat) {
		t.Fatalf("expected ErrInvalidImageFormat, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("nothing should be sent for a missing file")
	}
}

func TestRegisterLesionWithoutImages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if n := len(r.MultipartForm.File["files"]); n != 0 {
			t.Errorf("expected no files, got %d", n)
		}
		respond(http.StatusOK, `{"id":1}`)(w, r)
	})

	_, outcomes, err := client.RegisterLesion(context.Background(), testToken, 1, attendance.Lesion{LocationID: 1, Description: "d"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestRegisterHealthUnitPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		want := `{"nome_unidade_saude":"UBS Centro","nome_localizacao":"Rua A","codigo_unidade_saude":"001","cidade_unidade_saude":"Brasília","fl_ativo":true}`
		if string(body) != want {
			t.Errorf("unexpected body: %s", body)
		}
		respond(http.StatusOK, `{"id":2}`)(w, r)
	})

	unit := attendance.HealthUnit{Name: "UBS Centro", Location: "Rua A", Code: "001", City: "Brasília", Active: true}
	if _, err := client.RegisterHealthUnit(context.Background(), testToken, unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
