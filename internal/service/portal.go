package service

import (
	"context"

	"github.com/yardline/marketclient/internal/event"
	apperrors "github.com/yardline/marketclient/pkg/errors"
)

// Portals publishes requests to open the operator and seller overlays.
type Portals struct {
	sessions SessionSource
	bus      event.Publisher
}

// NewPortals creates a Portals.
func NewPortals(sessions SessionSource, bus event.Publisher) *Portals {
	return &Portals{sessions: sessions, bus: bus}
}

// OpenOperator asks the UI to show the operator portal. The portal has its
// own login, so anyone may open it.
func (p *Portals) OpenOperator(ctx context.Context) {
	var userID string
	if s := p.sessions.Current(); s.IsAuthenticated() {
		userID = s.User.ID
	}
	p.bus.Publish(ctx, event.Event{
		Topic:   event.TopicOperatorPortalOpen,
		Subject: userID,
		Data:    event.PortalOpen{UserID: userID},
	})
}

// OpenSeller asks the UI to show the seller portal. Access follows the
// user's role.
func (p *Portals) OpenSeller(ctx context.Context) error {
	s := p.sessions.Current()
	if !s.IsAuthenticated() {
		return apperrors.Unauthorized("sign in to open the seller portal")
	}
	if !s.CanSell() {
		return apperrors.Forbidden("the seller portal requires a seller account")
	}
	p.bus.Publish(ctx, event.Event{
		Topic:   event.TopicSellerPortalOpen,
		Subject: s.User.ID,
		Data:    event.PortalOpen{UserID: s.User.ID},
	})
	return nil
}
