package repository

import (
	"time"

	"gorm.io/datatypes"
)

// Patient is a person attendances are opened for.
type Patient struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:nome;size:200"`
	CPF       string    `gorm:"column:cpf;size:11;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Patient) TableName() string { return "pacientes" }

// Attendance is one care session opened by a professional (UserID).
type Attendance struct {
	ID        int64     `gorm:"primaryKey"`
	PatientID int64     `gorm:"column:paciente_id;index"`
	Patient   Patient   `gorm:"foreignKey:PatientID"`
	UserID    string    `gorm:"column:user_id;size:64;index"`
	CreatedAt time.Time `gorm:"column:data_atendimento"`
}

func (Attendance) TableName() string { return "atendimentos" }

// ConsentTerm records the metadata of an uploaded signed consent term.
type ConsentTerm struct {
	ID           int64     `gorm:"primaryKey"`
	AttendanceID int64     `gorm:"column:atendimento_id;index"`
	FileName     string    `gorm:"column:file_name;size:255"`
	MimeType     string    `gorm:"column:mime_type;size:100"`
	SizeBytes    int64     `gorm:"column:size_bytes"`
	SHA1Hash     string    `gorm:"column:sha1_hash;size:40"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (ConsentTerm) TableName() string { return "termos_consentimento" }

// Anamnesis keeps the anamnesis form exactly as submitted.
type Anamnesis struct {
	ID           int64          `gorm:"primaryKey"`
	AttendanceID int64          `gorm:"column:atendimento_id;index"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (Anamnesis) TableName() string { return "informacoes_completas" }

// Lesion is a clinical finding with its photos.
type Lesion struct {
	ID           int64         `gorm:"primaryKey"`
	AttendanceID int64         `gorm:"column:atendimento_id;index"`
	LocationID   int64         `gorm:"column:local_lesao_id"`
	Description  string        `gorm:"column:descricao_lesao;type:text"`
	Images       []LesionImage `gorm:"foreignKey:LesionID"`
	CreatedAt    time.Time     `gorm:"column:created_at"`
}

func (Lesion) TableName() string { return "lesoes" }

// LesionImage is the metadata of one lesion photo.
type LesionImage struct {
	ID        int64  `gorm:"primaryKey"`
	LesionID  int64  `gorm:"column:lesao_id;index"`
	FileName  string `gorm:"column:file_name;size:255"`
	MimeType  string `gorm:"column:mime_type;size:100"`
	SizeBytes int64  `gorm:"column:size_bytes"`
	SHA1Hash  string `gorm:"column:sha1_hash;size:40"`
}

func (LesionImage) TableName() string { return "imagens_lesao" }

// HealthUnit is a registered health unit; Code is unique.
type HealthUnit struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:nome_unidade_saude;size:200"`
	Location  string    `gorm:"column:nome_localizacao;size:255"`
	Code      string    `gorm:"column:codigo_unidade_saude;size:50;uniqueIndex"`
	City      string    `gorm:"column:cidade_unidade_saude;size:100"`
	Active    bool      `gorm:"column:fl_ativo"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (HealthUnit) TableName() string { return "unidades_saude" }
