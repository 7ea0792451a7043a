package models

import "time"

type Patient struct {
	PatientID int64     `json:"patient_id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
