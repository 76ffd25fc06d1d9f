package dto

type CheckinRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	AcademiaID string `json:"academia_id" validate:"required,uuid"`
}
