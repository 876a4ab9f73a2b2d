package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/atendimento/internal/logging"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repository provides persistence for the sandbox backend. The gorm handle
// should be opened with TranslateError so unique violations map to
// ErrDuplicate.
type Repository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func New(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:             db,
		logger:         logger.Named("repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&Patient{},
		&Attendance{},
		&ConsentTerm{},
		&Anamnesis{},
		&Lesion{},
		&LesionImage{},
		&HealthUnit{},
	)
}

// UpsertPatient creates the patient or refreshes its name, keyed by CPF.
func (r *Repository) UpsertPatient(ctx context.Context, p *Patient) error {
	return r.executeWithRetry(ctx, "repository.upsert_patient", "", func() error {
		var existing Patient
		err := r.db.WithContext(ctx).Where("cpf = ?", p.CPF).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return r.db.WithContext(ctx).Create(p).Error
		case err != nil:
			return err
		}
		p.ID = existing.ID
		return r.db.WithContext(ctx).Model(&existing).Update("nome", p.Name).Error
	})
}

// CreateAttendance opens an attendance for an existing patient. The patient
// is loaded into the returned record.
func (r *Repository) CreateAttendance(ctx context.Context, userID string, patientID int64) (*Attendance, error) {
	var created *Attendance
	err := r.executeWithRetry(ctx, "repository.create_attendance", "", func() error {
		var patient Patient
		if err := r.db.WithContext(ctx).First(&patient, patientID).Error; err != nil {
			return err
		}
		a := &Attendance{PatientID: patient.ID, UserID: userID, CreatedAt: time.Now().UTC()}
		if err := r.db.WithContext(ctx).Omit("Patient").Create(a).Error; err != nil {
			return err
		}
		a.Patient = patient
		created = a
		return nil
	})
	return created, err
}

// FindAttendance returns the attendance if it belongs to userID.
func (r *Repository) FindAttendance(ctx context.Context, userID string, attendanceID int64) (*Attendance, error) {
	var a Attendance
	err := r.executeWithRetry(ctx, "repository.find_attendance", "", func() error {
		return r.db.WithContext(ctx).Preload("Patient").
			First(&a, "id = ? AND user_id = ?", attendanceID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttendances returns the user's attendances, newest first.
func (r *Repository) ListAttendances(ctx context.Context, userID string) ([]Attendance, error) {
	var list []Attendance
	err := r.executeWithRetry(ctx, "repository.list_attendances", "", func() error {
		return r.db.WithContext(ctx).Preload("Patient").
			Where("user_id = ?", userID).
			Order("data_atendimento DESC").
			Find(&list).Error
	})
	return list, err
}

func (r *Repository) SaveConsentTerm(ctx context.Context, term *ConsentTerm) error {
	return r.executeWithRetry(ctx, "repository.save_consent_term", "", func() error {
		return r.db.WithContext(ctx).Create(term).Error
	})
}

func (r *Repository) SaveAnamnesis(ctx context.Context, record *Anamnesis) error {
	return r.executeWithRetry(ctx, "repository.save_anamnesis", "", func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// SaveLesion stores the lesion and its images in one transaction.
func (r *Repository) SaveLesion(ctx context.Context, lesion *Lesion) error {
	return r.executeWithRetry(ctx, "repository.save_lesion", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(lesion).Error
		})
	})
}

func (r *Repository) CreateHealthUnit(ctx context.Context, unit *HealthUnit) error {
	return r.executeWithRetry(ctx, "repository.create_health_unit", "", func() error {
		return r.db.WithContext(ctx).Create(unit).Error
	})
}

// executeWithRetry runs fn, retrying transient failures with exponential
// backoff. gorm sentinel errors are mapped to ErrNotFound and ErrDuplicate.
func (r *Repository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == attempts-1 {
			break
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}

	err = translate(err)
	if !errors.Is(err, ErrNotFound) {
		opLogger.Error("database operation failed", zap.Error(err))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// transientPgCodes are postgres SQLSTATEs worth retrying: serialization
// failures, deadlocks and connection or admin shutdowns.
var transientPgCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"53300": {},
	"57P01": {},
	"57P03": {},
	"08000": {},
	"08003": {},
	"08006": {},
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientPgCodes[pgErr.Code]
		return ok
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}
