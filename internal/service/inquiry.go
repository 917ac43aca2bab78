package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/pkg/validator"
)

// InquiryService forwards service requests, consultations and consultant
// prompts. Errors are returned as the backend reported them; there is no
// offline fallback.
type InquiryService struct {
	backend  InquiryBackend
	sessions SessionSource
	logger   *slog.Logger
}

// NewInquiryService creates an InquiryService.
func NewInquiryService(backend InquiryBackend, sessions SessionSource, logger *slog.Logger) *InquiryService {
	return &InquiryService{backend: backend, sessions: sessions, logger: logger}
}

func (s *InquiryService) SubmitServiceRequest(ctx context.Context, req domain.ServiceRequest) (*domain.Acknowledgement, error) {
	if req.Urgency == "" {
		req.Urgency = domain.UrgencyNormal
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	ack, err := s.backend.SubmitServiceRequest(ctx, remoteToken(s.sessions.Current()), req)
	if err != nil {
		s.logger.WarnContext(ctx, "service request failed",
			slog.String("service_type", req.ServiceType),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return ack, nil
}

func (s *InquiryService) SubmitConsultation(ctx context.Context, req domain.Consultation) (*domain.Acknowledgement, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	ack, err := s.backend.SubmitConsultation(ctx, remoteToken(s.sessions.Current()), req)
	if err != nil {
		s.logger.WarnContext(ctx, "consultation request failed", slog.String("error", err.Error()))
		return nil, err
	}
	return ack, nil
}

// AskConsultant forwards prompt to the AI consultant.
func (s *InquiryService) AskConsultant(ctx context.Context, prompt string) (*domain.ConsultantAdvice, error) {
	p := domain.ConsultantPrompt{Prompt: strings.TrimSpace(prompt)}
	if err := validator.Validate(p); err != nil {
		return nil, err
	}
	advice, err := s.backend.AskConsultant(ctx, remoteToken(s.sessions.Current()), p.Prompt)
	if err != nil {
		s.logger.WarnContext(ctx, "consultant request failed", slog.String("error", err.Error()))
		return nil, err
	}
	return advice, nil
}
