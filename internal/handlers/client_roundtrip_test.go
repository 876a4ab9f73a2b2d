package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/example/atendimento/internal/apiclient"
	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/attendance"
)

const pngHeaderBase64 = "iVBORw0KGgo="

func newRoundTripClient(t *testing.T, mode attachment.Mode) (*apiclient.Client, *fakeService) {
	t.Helper()

	svc := newFakeService()
	server := httptest.NewServer(newTestRouter(svc))
	t.Cleanup(server.Close)

	client, err := apiclient.New(apiclient.Options{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Normalizer: &attachment.Normalizer{Mode: mode, CacheDir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client, svc
}

func TestClientRoundTrip(t *testing.T) {
	for _, mode := range []attachment.Mode{attachment.ModeCacheFile, attachment.ModeInline} {
		client, svc := newRoundTripClient(t, mode)
		ctx := context.Background()
		token := buildTestToken(t, "user-123")

		result, err := client.RegisterAttendance(ctx, token, 1)
		if err != nil {
			t.Fatalf("register attendance: %v", err)
		}
		var created attendance.Attendance
		if err := result.Decode(&created); err != nil {
			t.Fatalf("decode attendance: %v", err)
		}
		if created.ID != 1 || created.PatientName != "Maria Silva" {
			t.Fatalf("unexpected attendance %+v", created)
		}

		photo := attachment.Base64Image{MimePrefix: "data:image/png;base64", Data: pngHeaderBase64}
		if _, err := client.UploadConsentTerm(ctx, token, created.ID, photo); err != nil {
			t.Fatalf("upload consent term: %v", err)
		}
		if len(svc.consents) != 1 || svc.consents[0].MimeType != "image/png" {
			t.Fatalf("unexpected consent uploads %+v", svc.consents)
		}
		if string(svc.consents[0].Data) != "\x89PNG\r\n\x1a\n" {
			t.Fatalf("unexpected consent bytes %q", svc.consents[0].Data)
		}

		if _, err := client.SubmitAnamnesis(ctx, token, created.ID, map[string]any{"fuma": false}); err != nil {
			t.Fatalf("submit anamnesis: %v", err)
		}
		if len(svc.anamneses) != 1 || string(svc.anamneses[0]) != `{"fuma":false}` {
			t.Fatalf("unexpected anamnesis %q", svc.anamneses)
		}

		photos := []attachment.Ref{photo, attachment.Base64Image{MimePrefix: "data:image/png;base64", Data: "!!"}}
		_, outcomes, err := client.RegisterLesion(ctx, token, created.ID, attendance.Lesion{LocationID: 2, Description: "nevo"}, photos)
		if err != nil {
			t.Fatalf("register lesion: %v", err)
		}
		if len(attachment.Skipped(outcomes)) != 1 {
			t.Fatalf("expected one skipped image, got %+v", outcomes)
		}
		if len(svc.lesionFiles) != 1 || len(svc.lesionFiles[0]) != 1 {
			t.Fatalf("expected one stored lesion image, got %+v", svc.lesionFiles)
		}

		list, err := client.ListAttendances(ctx, token)
		if err != nil {
			t.Fatalf("list attendances: %v", err)
		}
		if len(list) != 1 || attendance.FormatCPF(list[0].PatientCPF) != "123.456.789-01" {
			t.Fatalf("unexpected listing %+v", list)
		}
	}
}

func TestClientSurfacesBackendDetail(t *testing.T) {
	client, _ := newRoundTripClient(t, attachment.ModeCacheFile)

	_, err := client.RegisterAttendance(context.Background(), buildTestToken(t, "user-123"), 42)
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", httpErr.StatusCode)
	}
	if msg := apiclient.Message(err); msg != "Paciente não encontrado" {
		t.Fatalf("unexpected message %q", msg)
	}
	if !errors.Is(err, apiclient.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestClientRejectedTokenIsHTTPError(t *testing.T) {
	client, _ := newRoundTripClient(t, attachment.ModeCacheFile)

	_, err := client.ListAttendances(context.Background(), "not-a-jwt")
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 401 {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}
