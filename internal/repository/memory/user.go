package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[userID]
	if !ok {
		user = &models.User{UserID: userID, Plan: models.PlanFree, CreatedAt: time.Now()}
		r.db.users[userID] = user
	}
	if userName != "" {
		user.UserName = userName
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(user), nil
}

// PlanTier reports the effective plan at now; unknown users are on the free
// plan.
func (r *UserRepository) PlanTier(ctx context.Context, userID int64, now time.Time) (models.PlanTier, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[userID]
	if !ok {
		return models.PlanFree, nil
	}
	return user.Tier(now), nil
}

func (r *UserRepository) SetPlan(ctx context.Context, userID int64, plan models.PlanTier, until *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[userID]
	if !ok {
		user = &models.User{UserID: userID, CreatedAt: time.Now()}
		r.db.users[userID] = user
	}
	user.Plan = plan
	user.ProUntil = until
	return nil
}

type PatientRepository struct {
	db *DB
}

func NewPatientRepository(db *DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) FindByName(ctx context.Context, userID int64, name string) (*models.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	name = strings.TrimSpace(name)
	for _, patient := range r.db.patients {
		if patient.UserID == userID && strings.EqualFold(patient.Name, name) {
			p := *patient
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.patients {
		if existing.UserID == patient.UserID && strings.EqualFold(existing.Name, patient.Name) {
			return repository.ErrConflict
		}
	}
	r.db.nextPatientID++
	patient.PatientID = r.db.nextPatientID
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = time.Now()
	}
	p := *patient
	r.db.patients[patient.PatientID] = &p
	return nil
}

func (r *PatientRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var patients []*models.Patient
	for _, patient := range r.db.patients {
		if patient.UserID == userID {
			p := *patient
			patients = append(patients, &p)
		}
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].PatientID < patients[j].PatientID })
	return patients, nil
}
