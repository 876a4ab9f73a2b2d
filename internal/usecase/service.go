// Package usecase implements the sandbox backend behind the attendance
// endpoints: persistence through the repository and a cache-aside listing.
package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/example/atendimento/internal/attendance"
	"github.com/example/atendimento/internal/logging"
	"github.com/example/atendimento/internal/repository"
)

// ErrInvalidInput marks requests rejected before touching storage.
var ErrInvalidInput = errors.New("invalid input")

// Repository defines the persistence operations needed by the service.
type Repository interface {
	CreateAttendance(ctx context.Context, userID string, patientID int64) (*repository.Attendance, error)
	FindAttendance(ctx context.Context, userID string, attendanceID int64) (*repository.Attendance, error)
	ListAttendances(ctx context.Context, userID string) ([]repository.Attendance, error)
	SaveConsentTerm(ctx context.Context, term *repository.ConsentTerm) error
	SaveAnamnesis(ctx context.Context, record *repository.Anamnesis) error
	SaveLesion(ctx context.Context, lesion *repository.Lesion) error
	CreateHealthUnit(ctx context.Context, unit *repository.HealthUnit) error
}

// Upload is a received file part.
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
}

type Service struct {
	repo    Repository
	cache   Cache
	logger  *zap.Logger
	listTTL time.Duration
}

func NewService(repo Repository, cache Cache, logger *zap.Logger, listTTL time.Duration) *Service {
	if listTTL <= 0 {
		listTTL = time.Minute
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		logger:  logger.Named("sandbox_service"),
		listTTL: listTTL,
	}
}

// RegisterAttendance opens an attendance and returns it in listing shape.
func (s *Service) RegisterAttendance(ctx context.Context, userID string, patientID int64) (attendance.Attendance, error) {
	created, err := s.repo.CreateAttendance(ctx, userID, patientID)
	if err != nil {
		return attendance.Attendance{}, err
	}
	s.invalidateList(ctx, userID)
	return toAttendance(*created), nil
}

// SaveConsentTerm records the consent term of one of the user's attendances.
func (s *Service) SaveConsentTerm(ctx context.Context, userID string, attendanceID int64, upload Upload) (*repository.ConsentTerm, error) {
	if _, err := s.repo.FindAttendance(ctx, userID, attendanceID); err != nil {
		return nil, err
	}

	term := &repository.ConsentTerm{
		AttendanceID: attendanceID,
		FileName:     upload.FileName,
		MimeType:     upload.MimeType,
		SizeBytes:    int64(len(upload.Data)),
		SHA1Hash:     sha1Hex(upload.Data),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.SaveConsentTerm(ctx, term); err != nil {
		return nil, err
	}
	return term, nil
}

// SaveAnamnesis stores the anamnesis form. payload must be a JSON object.
func (s *Service) SaveAnamnesis(ctx context.Context, userID string, attendanceID int64, payload json.RawMessage) (*repository.Anamnesis, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil || probe == nil {
		return nil, fmt.Errorf("%w: anamnesis must be a JSON object", ErrInvalidInput)
	}
	if _, err := s.repo.FindAttendance(ctx, userID, attendanceID); err != nil {
		return nil, err
	}

	record := &repository.Anamnesis{
		AttendanceID: attendanceID,
		Payload:      datatypes.JSON(append([]byte(nil), payload...)),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.SaveAnamnesis(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RegisterLesion stores a lesion with zero or more images.
func (s *Service) RegisterLesion(ctx context.Context, userID string, attendanceID int64, lesion attendance.Lesion, uploads []Upload) (*repository.Lesion, error) {
	if lesion.Description == "" {
		return nil, fmt.Errorf("%w: descricao_lesao is required", ErrInvalidInput)
	}
	if _, err := s.repo.FindAttendance(ctx, userID, attendanceID); err != nil {
		return nil, err
	}

	record := &repository.Lesion{
		AttendanceID: attendanceID,
		LocationID:   lesion.LocationID,
		Description:  lesion.Description,
		CreatedAt:    time.Now().UTC(),
	}
	for _, u := range uploads {
		record.Images = append(record.Images, repository.LesionImage{
			FileName:  u.FileName,
			MimeType:  u.MimeType,
			SizeBytes: int64(len(u.Data)),
			SHA1Hash:  sha1Hex(u.Data),
		})
	}
	if err := s.repo.SaveLesion(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RegisterHealthUnit validates and stores a health unit.
func (s *Service) RegisterHealthUnit(ctx context.Context, unit attendance.HealthUnit) (*repository.HealthUnit, error) {
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	record := &repository.HealthUnit{
		Name:      unit.Name,
		Location:  unit.Location,
		Code:      unit.Code,
		City:      unit.City,
		Active:    unit.Active,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateHealthUnit(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListAttendances serves the user's listing from cache, falling back to the
// repository on a miss or a cache failure.
func (s *Service) ListAttendances(ctx context.Context, userID string) ([]attendance.Attendance, error) {
	opLogger := logging.WithOperation(s.logger, "usecase.list_attendances", "")
	key := listCacheKey(userID)

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var list []attendance.Attendance
		decodeErr := json.Unmarshal([]byte(cached), &list)
		if decodeErr == nil {
			return list, nil
		}
		opLogger.Warn("failed to decode cached listing", zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	rows, err := s.repo.ListAttendances(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		list = append(list, toAttendance(row))
	}

	if serialized, err := json.Marshal(list); err == nil {
		if err := s.cache.Set(ctx, key, string(serialized), s.listTTL); err != nil {
			opLogger.Warn("failed to cache listing", zap.Error(err))
		}
	}
	return list, nil
}

func (s *Service) invalidateList(ctx context.Context, userID string) {
	if err := s.cache.Del(ctx, listCacheKey(userID)); err != nil {
		logging.WithOperation(s.logger, "usecase.invalidate_list", "").Warn("failed to invalidate listing", zap.Error(err))
	}
}

func listCacheKey(userID string) string {
	return fmt.Sprintf("attendances:%s", userID)
}

func toAttendance(row repository.Attendance) attendance.Attendance {
	return attendance.Attendance{
		ID:          row.ID,
		PatientName: row.Patient.Name,
		PatientCPF:  row.Patient.CPF,
		Date:        row.CreatedAt.UTC().Format("2006-01-02T15:04:05"),
		Extra: map[string]json.RawMessage{
			"paciente_id": json.RawMessage(fmt.Sprintf("%d", row.PatientID)),
		},
	}
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
