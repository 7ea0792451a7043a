package repository

import (
	"context"
	"strings"

	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
)

type PatientRepository struct {
	db *database.DB
}

func NewPatientRepository(db *database.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) FindByName(ctx context.Context, userID int64, name string) (*models.Patient, error) {
	patient := &models.Patient{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT patient_id, user_id, name, created_at FROM patients
		 WHERE user_id = $1 AND LOWER(name) = LOWER($2)`,
		userID, strings.TrimSpace(name),
	).Scan(&patient.PatientID, &patient.UserID, &patient.Name, &patient.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return patient, nil
}

func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO patients (user_id, name) VALUES ($1, $2)
		 RETURNING patient_id, created_at`,
		patient.UserID, patient.Name,
	).Scan(&patient.PatientID, &patient.CreatedAt)
	return mapError(err)
}

func (r *PatientRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Patient, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT patient_id, user_id, name, created_at FROM patients WHERE user_id = $1 ORDER BY patient_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		patient := &models.Patient{}
		if err := rows.Scan(&patient.PatientID, &patient.UserID, &patient.Name, &patient.CreatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}
