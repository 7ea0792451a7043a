package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
)

// PatientRef points at the person a reminder is for. A nil ID means the
// user themself.
type PatientRef struct {
	ID   *int64
	Name string
}

// PatientResolver turns the free-text patient name of an intent into a
// patient reference.
type PatientResolver struct {
	*core
}

// Resolve maps name to a patient of the user. A blank name, or the user's
// own name, is the user. Unknown names are created when create is set and
// fail with ErrPatientUnresolved otherwise.
func (p *PatientResolver) Resolve(ctx context.Context, user *models.User, name string, create bool) (PatientRef, error) {
	name = strings.TrimSpace(name)
	if name == "" || (user.UserName != "" && strings.EqualFold(name, user.UserName)) {
		return PatientRef{Name: user.DisplayName()}, nil
	}

	patient, err := p.stores.Patients.FindByName(ctx, user.UserID, name)
	if err == nil {
		return PatientRef{ID: &patient.PatientID, Name: patient.Name}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return PatientRef{}, fmt.Errorf("failed to look up patient: %w", err)
	}
	if !create {
		return PatientRef{}, fmt.Errorf("%w: %q", ErrPatientUnresolved, name)
	}

	patient = &models.Patient{UserID: user.UserID, Name: name, CreatedAt: p.now()}
	if err := p.stores.Patients.Create(ctx, patient); err != nil {
		return PatientRef{}, fmt.Errorf("failed to create patient: %w", err)
	}
	return PatientRef{ID: &patient.PatientID, Name: patient.Name}, nil
}
