package dto

// SlotRequest is one candidate appointment in a commit payload.
type SlotRequest struct {
	Date           string `json:"date" validate:"required"`
	Time           string `json:"time" validate:"required"`
	TechnicianID   string `json:"technician_id" validate:"required"`
	TechnicianName string `json:"technician_name"`
}

// RankTechniciansRequest payload.
type RankTechniciansRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// CommitSlotsRequest payload.
type CommitSlotsRequest struct {
	Slots  []SlotRequest `json:"slots" validate:"required,min=1,max=3,dive"`
	Direct bool          `json:"direct"`
}

// ConfirmSlotRequest payload.
type ConfirmSlotRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}
