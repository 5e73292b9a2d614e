package dto

// RequestMaterialRequest payload.
type RequestMaterialRequest struct {
	Description  string `json:"description" validate:"required"`
	Deposit      string `json:"deposit" validate:"required"`
	SignatureRef string `json:"signature_ref"`
	Priority     string `json:"priority" validate:"omitempty,oneof=normal urgent"`
}

// MarkOrderedRequest payload.
type MarkOrderedRequest struct {
	SupplierName string `json:"supplier_name" validate:"required"`
}

// StartDigitalPaymentRequest payload.
type StartDigitalPaymentRequest struct {
	FinalPrice string `json:"final_price" validate:"required"`
}

// FinalizeManualRequest payload.
type FinalizeManualRequest struct {
	Method       string `json:"method" validate:"required,oneof=cash transfer card"`
	FinalPrice   string `json:"final_price" validate:"required"`
	ProofRef     string `json:"proof_ref"`
	SignatureRef string `json:"signature_ref"`
}

// FinalizeWarrantyRequest payload.
type FinalizeWarrantyRequest struct {
	FinalizeManualRequest
	LaborMonths int `json:"labor_months" validate:"min=0"`
	PartsMonths int `json:"parts_months" validate:"min=0"`
}

// StartBroadcastRequest payload.
type StartBroadcastRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
}

// PositionSampleRequest payload.
type PositionSampleRequest struct {
	Latitude  float64 `json:"latitude" validate:"required"`
	Longitude float64 `json:"longitude" validate:"required"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
