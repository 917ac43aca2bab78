package http

import (
	"log/slog"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/service"
	"github.com/yardline/marketclient/pkg/httputil"
)

// InquiryHandler forwards service requests, consultations and consultant
// prompts.
type InquiryHandler struct {
	inquiries *service.InquiryService
	logger    *slog.Logger
}

// NewInquiryHandler creates a new inquiry HTTP handler.
func NewInquiryHandler(inquiries *service.InquiryService, logger *slog.Logger) *InquiryHandler {
	return &InquiryHandler{inquiries: inquiries, logger: logger}
}

// SubmitServiceRequest handles POST /api/v1/inquiries/service-requests
func (h *InquiryHandler) SubmitServiceRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	ack, err := h.inquiries.SubmitServiceRequest(r.Context(), req)
	h.write(w, r, http.StatusCreated, ack, err)
}

// SubmitConsultation handles POST /api/v1/inquiries/consultations
func (h *InquiryHandler) SubmitConsultation(w http.ResponseWriter, r *http.Request) {
	var req domain.Consultation
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	ack, err := h.inquiries.SubmitConsultation(r.Context(), req)
	h.write(w, r, http.StatusCreated, ack, err)
}

// AskConsultant handles POST /api/v1/inquiries/consultant
func (h *InquiryHandler) AskConsultant(w http.ResponseWriter, r *http.Request) {
	var req domain.ConsultantPrompt
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	advice, err := h.inquiries.AskConsultant(r.Context(), req.Prompt)
	h.write(w, r, http.StatusOK, advice, err)
}

func (h *InquiryHandler) write(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, status, v)
}
