package backend

import (
	"context"
	"net/http"

	"github.com/yardline/marketclient/internal/domain"
)

// SubmitServiceRequest posts a structured service inquiry. token may be empty.
func (c *Client) SubmitServiceRequest(ctx context.Context, token string, req domain.ServiceRequest) (*domain.Acknowledgement, error) {
	var ack domain.Acknowledgement
	if err := c.call(ctx, http.MethodPost, "/api/service-request", token, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SubmitConsultation posts a free-text consultation request.
func (c *Client) SubmitConsultation(ctx context.Context, token string, req domain.Consultation) (*domain.Acknowledgement, error) {
	var ack domain.Acknowledgement
	if err := c.call(ctx, http.MethodPost, "/api/consultation", token, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// AskConsultant forwards a prompt to the AI consultant.
func (c *Client) AskConsultant(ctx context.Context, token, prompt string) (*domain.ConsultantAdvice, error) {
	var advice domain.ConsultantAdvice
	if err := c.call(ctx, http.MethodPost, "/api/ai-consultant", token, domain.ConsultantPrompt{Prompt: prompt}, &advice); err != nil {
		return nil, err
	}
	return &advice, nil
}
