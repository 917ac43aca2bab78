package domain

// Urgency levels accepted on service requests.
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// ServiceRequest is a structured inquiry for inspection, repair or transport.
type ServiceRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Company     string `json:"company,omitempty" validate:"max=120"`
	Phone       string `json:"phone" validate:"required,min=7,max=20"`
	Email       string `json:"email" validate:"required,email"`
	ServiceType string `json:"serviceType" validate:"required,max=64"`
	MachineType string `json:"machineType,omitempty" validate:"max=64"`
	Location    string `json:"location,omitempty" validate:"max=255"`
	Urgency     string `json:"urgency,omitempty" validate:"omitempty,oneof=low normal high critical"`
	Details     string `json:"details,omitempty" validate:"max=4000"`
}

// Consultation is a free-text request to be called back.
type Consultation struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,min=7,max=20"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Message string `json:"message" validate:"required,max=4000"`
}

// ConsultantPrompt is forwarded to the AI consultant.
type ConsultantPrompt struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

// ConsultantAdvice is the AI consultant's reply.
type ConsultantAdvice struct {
	Advice string `json:"advice"`
}

// Acknowledgement is returned by the backend for accepted inquiries.
type Acknowledgement struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}
