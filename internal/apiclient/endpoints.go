package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/attendance"
	"github.com/example/atendimento/internal/logging"
)

const (
	pathRegisterAttendance = "/cadastrar-atendimento"
	pathConsentTerm        = "/cadastrar-termo-consentimento"
	pathAnamnesis          = "/cadastrar-informacoes-completas"
	pathLesion             = "/cadastrar-lesao"
	pathHealthUnit         = "/cadastrar-unidade-saude"
	pathListAttendances    = "/listar-atendimentos-usuario-logado"
)

// RegisterAttendance opens a new attendance for a patient.
func (c *Client) RegisterAttendance(ctx context.Context, token string, patientID int64) (Result, error) {
	return c.Do(ctx, Request{
		Operation: "apiclient.register_attendance",
		Fallback:  "Failed to register attendance",
		Method:    http.MethodPost,
		Endpoint:  pathRegisterAttendance,
		Query:     url.Values{"paciente_id": {strconv.FormatInt(patientID, 10)}},
		AuthToken: token,
	})
}

// UploadConsentTerm sends the signed consent term photo. Nothing is sent
// when the photo cannot be normalized or read.
func (c *Client) UploadConsentTerm(ctx context.Context, token string, attendanceID int64, photo attachment.Ref) (Result, error) {
	const operation = "apiclient.upload_consent_term"

	att, err := c.normalizer.Normalize(ctx, photo, attachment.SignatureDefaults())
	if err == nil {
		if err = att.Readable(); err != nil {
			c.cleanup(att)
		}
	}
	if err != nil {
		c.logger.Warn("invalid signature photo", zap.String("operation", operation), zap.Error(err))
		return Result{}, logging.NewOperationError(operation, "", err)
	}
	defer c.cleanup(att)

	return c.Do(ctx, Request{
		Operation: operation,
		Fallback:  "Failed to upload consent term",
		Method:    http.MethodPost,
		Endpoint:  pathConsentTerm,
		Query:     url.Values{"atendimento_id": {strconv.FormatInt(attendanceID, 10)}},
		AuthToken: token,
		Body:      BodyMultipart,
		Fields:    []Field{FileField("file", att)},
	})
}

// SubmitAnamnesis sends the anamnesis form as a JSON object.
func (c *Client) SubmitAnamnesis(ctx context.Context, token string, attendanceID int64, data any) (Result, error) {
	return c.Do(ctx, Request{
		Operation: "apiclient.submit_anamnesis",
		Fallback:  "Failed to submit anamnesis data",
		Method:    http.MethodPost,
		Endpoint:  pathAnamnesis,
		Query:     url.Values{"atendimento_id": {strconv.FormatInt(attendanceID, 10)}},
		AuthToken: token,
		Body:      BodyJSON,
		JSON:      data,
	})
}

// RegisterLesion sends a lesion with zero or more photos. Photos that fail
// to normalize or cannot be read are skipped and reported in the returned
// outcomes; the lesion is still submitted with the rest.
func (c *Client) RegisterLesion(ctx context.Context, token string, attendanceID int64, lesion attendance.Lesion, photos []attachment.Ref) (Result, []attachment.Outcome, error) {
	const operation = "apiclient.register_lesion"

	outcomes := c.normalizer.NormalizeAll(ctx, photos, attachment.LesionDefaults)
	// unreadable files are skipped here so the multipart build cannot fail on them
	for i, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if err := o.Attachment.Readable(); err != nil {
			c.cleanup(o.Attachment)
			outcomes[i] = attachment.Outcome{Index: o.Index, Err: err}
		}
	}
	for _, skipped := range attachment.Skipped(outcomes) {
		c.logger.Warn("skipping lesion image",
			zap.String("operation", operation),
			zap.Int("index", skipped.Index),
			zap.Error(skipped.Err))
	}
	attached := attachment.Attached(outcomes)
	defer func() {
		for _, att := range attached {
			c.cleanup(att)
		}
	}()

	result, err := c.Do(ctx, Request{
		Operation: operation,
		Fallback:  "Failed to register lesion",
		Method:    http.MethodPost,
		Endpoint:  pathLesion,
		AuthToken: token,
		Body:      BodyMultipart,
		Fields: []Field{
			TextField("atendimento_id", strconv.FormatInt(attendanceID, 10)),
			TextField("local_lesao_id", strconv.FormatInt(lesion.LocationID, 10)),
			TextField("descricao_lesao", lesion.Description),
			FilesField("files", attached),
		},
	})
	return result, outcomes, err
}

// RegisterHealthUnit creates a health unit.
func (c *Client) RegisterHealthUnit(ctx context.Context, token string, unit attendance.HealthUnit) (Result, error) {
	return c.Do(ctx, Request{
		Operation: "apiclient.register_health_unit",
		Fallback:  "Erro ao cadastrar unidade de saúde",
		Method:    http.MethodPost,
		Endpoint:  pathHealthUnit,
		AuthToken: token,
		Body:      BodyJSON,
		JSON:      unit,
	})
}

// ListAttendances returns the attendances of the token's user.
func (c *Client) ListAttendances(ctx context.Context, token string) ([]attendance.Attendance, error) {
	const operation = "apiclient.list_attendances"

	result, err := c.Do(ctx, Request{
		Operation: operation,
		Fallback:  "Erro na requisição",
		Method:    http.MethodGet,
		Endpoint:  pathListAttendances,
		AuthToken: token,
	})
	if err != nil {
		return nil, err
	}

	var list []attendance.Attendance
	if err := result.Decode(&list); err != nil {
		return nil, logging.NewOperationError(operation, "", err)
	}
	return list, nil
}

func (c *Client) cleanup(att attachment.Attachment) {
	if err := att.Cleanup(); err != nil {
		c.logger.Warn("failed to remove cached image", zap.String("path", att.URI), zap.Error(err))
	}
}
