package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/atendimento/internal/attendance"
	"github.com/example/atendimento/internal/auth"
	"github.com/example/atendimento/internal/repository"
	"github.com/example/atendimento/internal/usecase"
)

const (
	// MaxUploadSize caps a single uploaded image.
	MaxUploadSize = 10 << 20
	// maxRequestSize caps a whole multipart request.
	maxRequestSize = 8 * MaxUploadSize
)

// Service is the sandbox behaviour the routes delegate to.
type Service interface {
	RegisterAttendance(ctx context.Context, userID string, patientID int64) (attendance.Attendance, error)
	SaveConsentTerm(ctx context.Context, userID string, attendanceID int64, upload usecase.Upload) (*repository.ConsentTerm, error)
	SaveAnamnesis(ctx context.Context, userID string, attendanceID int64, payload json.RawMessage) (*repository.Anamnesis, error)
	RegisterLesion(ctx context.Context, userID string, attendanceID int64, lesion attendance.Lesion, uploads []usecase.Upload) (*repository.Lesion, error)
	RegisterHealthUnit(ctx context.Context, unit attendance.HealthUnit) (*repository.HealthUnit, error)
	ListAttendances(ctx context.Context, userID string) ([]attendance.Attendance, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handler{svc: svc}
	api := router.Group("/", authMiddleware)
	api.POST("/cadastrar-atendimento", h.registerAttendance)
	api.POST("/cadastrar-termo-consentimento", h.uploadConsentTerm)
	api.POST("/cadastrar-informacoes-completas", h.submitAnamnesis)
	api.POST("/cadastrar-lesao", h.registerLesion)
	api.POST("/cadastrar-unidade-saude", h.registerHealthUnit)
	api.GET("/listar-atendimentos-usuario-logado", h.listAttendances)
}

type handler struct {
	svc Service
}

func (h *handler) registerAttendance(c *gin.Context) {
	patientID, ok := int64Param(c, c.Query("paciente_id"), "paciente_id")
	if !ok {
		return
	}

	created, err := h.svc.RegisterAttendance(c.Request.Context(), userID(c), patientID)
	if err != nil {
		fail(c, err, "Paciente não encontrado")
		return
	}
	c.JSON(http.StatusOK, created)
}

func (h *handler) uploadConsentTerm(c *gin.Context) {
	attendanceID, ok := int64Param(c, c.Query("atendimento_id"), "atendimento_id")
	if !ok {
		return
	}
	if !parseMultipart(c) {
		return
	}

	files := c.Request.MultipartForm.File["file"]
	if len(files) == 0 {
		detail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}
	upload, status, err := readUpload(files[0])
	if err != nil {
		detail(c, status, err.Error())
		return
	}

	term, err := h.svc.SaveConsentTerm(c.Request.Context(), userID(c), attendanceID, upload)
	if err != nil {
		fail(c, err, "Atendimento não encontrado")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             term.ID,
		"atendimento_id": term.AttendanceID,
		"file_name":      term.FileName,
		"size_bytes":     term.SizeBytes,
		"sha1_hash":      term.SHA1Hash,
	})
}

func (h *handler) submitAnamnesis(c *gin.Context) {
	attendanceID, ok := int64Param(c, c.Query("atendimento_id"), "atendimento_id")
	if !ok {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxUploadSize))
	if err != nil {
		detail(c, http.StatusBadRequest, "unable to read body")
		return
	}

	record, err := h.svc.SaveAnamnesis(c.Request.Context(), userID(c), attendanceID, payload)
	if err != nil {
		fail(c, err, "Atendimento não encontrado")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": record.ID, "atendimento_id": record.AttendanceID})
}

func (h *handler) registerLesion(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}

	attendanceID, ok := int64Param(c, c.PostForm("atendimento_id"), "atendimento_id")
	if !ok {
		return
	}
	locationID, ok := int64Param(c, c.PostForm("local_lesao_id"), "local_lesao_id")
	if !ok {
		return
	}

	var uploads []usecase.Upload
	for _, fh := range c.Request.MultipartForm.File["files"] {
		upload, status, err := readUpload(fh)
		if err != nil {
			detail(c, status, err.Error())
			return
		}
		uploads = append(uploads, upload)
	}

	lesion := attendance.Lesion{LocationID: locationID, Description: c.PostForm("descricao_lesao")}
	record, err := h.svc.RegisterLesion(c.Request.Context(), userID(c), attendanceID, lesion, uploads)
	if err != nil {
		fail(c, err, "Atendimento não encontrado")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             record.ID,
		"atendimento_id": record.AttendanceID,
		"imagens":        len(record.Images),
	})
}

func (h *handler) registerHealthUnit(c *gin.Context) {
	var unit attendance.HealthUnit
	if err := c.ShouldBindJSON(&unit); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	record, err := h.svc.RegisterHealthUnit(c.Request.Context(), unit)
	if err != nil {
		fail(c, err, "Unidade de saúde não encontrada")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                   record.ID,
		"nome_unidade_saude":   record.Name,
		"nome_localizacao":     record.Location,
		"codigo_unidade_saude": record.Code,
		"cidade_unidade_saude": record.City,
		"fl_ativo":             record.Active,
	})
}

func (h *handler) listAttendances(c *gin.Context) {
	list, err := h.svc.ListAttendances(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, list)
}

func userID(c *gin.Context) string {
	id, _ := auth.GetUserID(c.Request.Context())
	return id
}

func int64Param(c *gin.Context, raw, name string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		detail(c, http.StatusUnprocessableEntity, name+" must be a positive integer")
		return 0, false
	}
	return value, true
}

func parseMultipart(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
	if err := c.Request.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(c, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		detail(c, http.StatusBadRequest, "multipart form expected")
		return false
	}
	return true
}

func readUpload(fh *multipart.FileHeader) (usecase.Upload, int, error) {
	if fh.Size > MaxUploadSize {
		return usecase.Upload{}, http.StatusRequestEntityTooLarge, errors.New("image exceeds upload limit")
	}

	src, err := fh.Open()
	if err != nil {
		return usecase.Upload{}, http.StatusBadRequest, errors.New("unable to open image")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return usecase.Upload{}, http.StatusInternalServerError, errors.New("failed to read image")
	}

	mimeType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return usecase.Upload{}, http.StatusUnsupportedMediaType, errors.New("only image uploads are accepted")
	}
	return usecase.Upload{FileName: fh.Filename, MimeType: mimeType, Data: data}, 0, nil
}

// fail maps service errors onto FastAPI style responses.
func fail(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		detail(c, http.StatusNotFound, notFound)
	case errors.Is(err, repository.ErrDuplicate):
		detail(c, http.StatusConflict, "registro já existe")
	case errors.Is(err, usecase.ErrInvalidInput):
		detail(c, http.StatusUnprocessableEntity, invalidInputMessage(err))
	default:
		detail(c, http.StatusInternalServerError, "internal error")
	}
}

func invalidInputMessage(err error) string {
	for _, known := range []error{
		attendance.ErrUnitNameRequired,
		attendance.ErrUnitLocationRequired,
		attendance.ErrUnitCodeRequired,
		attendance.ErrUnitCityRequired,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, usecase.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(usecase.ErrInvalidInput.Error())+2:]
	}
	return msg
}

func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}
