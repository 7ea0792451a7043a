// Package app wires configuration, storage and services together for the
// binaries under cmd/.
package app

import (
	"github.com/hray3182/MedLine/internal/config"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/repository"
	"github.com/hray3182/MedLine/internal/repository/memory"
	"github.com/hray3182/MedLine/internal/service"
)

func PostgresStores(db *database.DB) service.Stores {
	users := repository.NewUserRepository(db)
	return service.Stores{
		Reminders: repository.NewReminderRepository(db),
		Events:    repository.NewEventRepository(db),
		History:   repository.NewHistoryRepository(db),
		Users:     users,
		Patients:  repository.NewPatientRepository(db),
		Plans:     users,
	}
}

// MemoryStores keeps everything in process. Data is lost on exit.
func MemoryStores() service.Stores {
	db := memory.New()
	users := memory.NewUserRepository(db)
	return service.Stores{
		Reminders: memory.NewReminderRepository(db),
		Events:    memory.NewEventRepository(db),
		History:   memory.NewHistoryRepository(db),
		Users:     users,
		Patients:  memory.NewPatientRepository(db),
		Plans:     users,
	}
}

func Settings(cfg *config.Config) service.Settings {
	return service.Settings{
		Location:          cfg.Location,
		FreeReminderLimit: cfg.FreeReminderLimit,
		SnoozeDuration:    cfg.SnoozeDuration,
		MaxSnoozes:        cfg.MaxSnoozes,
		DispatchWorkers:   cfg.DispatchWorkers,
	}
}
