package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/repository"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/logger"
	"github.com/yardline/marketclient/pkg/pagination"
	"github.com/yardline/marketclient/pkg/validator"
)

// OperatorState describes the operator portal login.
type OperatorState struct {
	SignedIn   bool         `json:"signedIn"`
	Operator   *domain.User `json:"operator,omitempty"`
	Offline    bool         `json:"offline"`
	Submitting bool         `json:"submitting"`
}

// OperatorLogbook is the operator portal: its own login, kept in memory
// only, and the list of submitted shift logs.
type OperatorLogbook struct {
	backend         OperatorBackend
	logs            repository.LogRepository
	offlineFallback bool
	logger          *slog.Logger
	offlineLog      *slog.Logger
	now             func() time.Time

	mu         sync.Mutex
	token      string
	operator   *domain.User
	submitting bool
}

// NewOperatorLogbook creates a signed-out logbook.
func NewOperatorLogbook(backend OperatorBackend, logs repository.LogRepository, offlineFallback bool, log *slog.Logger) *OperatorLogbook {
	return &OperatorLogbook{
		backend:         backend,
		logs:            logs,
		offlineFallback: offlineFallback,
		logger:          log,
		offlineLog:      logger.WithChannel(log, logger.ChannelOfflineFallback),
		now:             time.Now,
	}
}

// State returns the portal login state.
func (b *OperatorLogbook) State() OperatorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := OperatorState{
		SignedIn:   b.token != "",
		Offline:    strings.HasPrefix(b.token, domain.OfflineTokenPrefix),
		Submitting: b.submitting,
	}
	if b.operator != nil {
		u := *b.operator
		st.Operator = &u
	}
	return st
}

// Login signs an operator into the portal.
func (b *OperatorLogbook) Login(ctx context.Context, username, password string) (OperatorState, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return b.State(), apperrors.InvalidInput("username and password are required")
	}

	b.mu.Lock()
	if b.submitting {
		b.mu.Unlock()
		return b.State(), errBusy()
	}
	b.submitting = true
	b.mu.Unlock()

	var (
		token string
		user  domain.User
	)
	resp, err := b.backend.OperatorLogin(ctx, username, password)
	switch {
	case err == nil:
		token, user = resp.BearerToken(), resp.User
	case b.offlineFallback && apperrors.IsTransport(err):
		token, user = OfflineIdentity(username, username, domain.RoleOperator)
		offlineFallbacks.WithLabelValues("operator").Inc()
		b.offlineLog.WarnContext(ctx, "operator portal could not reach the backend; signing in offline",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		err = nil
	}

	b.mu.Lock()
	b.submitting = false
	if err == nil {
		b.token = token
		b.operator = &user
	}
	b.mu.Unlock()

	if err != nil {
		return b.State(), err
	}
	b.logger.InfoContext(ctx, "operator signed in", slog.String("user_id", user.ID))
	return b.State(), nil
}

// Logout signs the operator out of the portal. Stored logs are kept.
func (b *OperatorLogbook) Logout() OperatorState {
	b.mu.Lock()
	b.token = ""
	b.operator = nil
	b.mu.Unlock()
	return b.State()
}

// Submit validates draft, posts it and records it locally. Nothing is
// recorded when the backend does not accept the log.
func (b *OperatorLogbook) Submit(ctx context.Context, draft domain.OperatorLogDraft) (*domain.OperatorLog, error) {
	if err := validator.Validate(draft); err != nil {
		return nil, err
	}
	if draft.StartTime == draft.EndTime {
		return nil, apperrors.InvalidInput("end time must differ from start time")
	}

	b.mu.Lock()
	token := b.token
	switch {
	case token == "":
		b.mu.Unlock()
		return nil, apperrors.Unauthorized("sign in to the operator portal first")
	case strings.HasPrefix(token, domain.OfflineTokenPrefix):
		b.mu.Unlock()
		return nil, errOfflineMode("submitting operator logs")
	case b.submitting:
		b.mu.Unlock()
		return nil, errBusy()
	}
	b.submitting = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.submitting = false
		b.mu.Unlock()
	}()

	entry, err := domain.NewOperatorLog(draft, b.now().UTC())
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if !entry.ChecklistComplete {
		b.logger.WarnContext(ctx, "operator log submitted with an incomplete checklist",
			slog.String("machine_id", draft.MachineID),
			slog.String("log_id", entry.ID),
		)
	}

	if err := b.backend.SubmitOperatorLog(ctx, token, entry); err != nil {
		operatorLogsSubmitted.WithLabelValues("error").Inc()
		b.logger.WarnContext(ctx, "operator log submission failed",
			slog.String("machine_id", draft.MachineID),
			slog.Bool("retryable", apperrors.IsTransport(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	operatorLogsSubmitted.WithLabelValues("ok").Inc()

	if err := b.logs.Prepend(ctx, entry); err != nil {
		b.logger.ErrorContext(ctx, "failed to record operator log locally",
			slog.String("log_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}
	return entry, nil
}

// Logs returns one page of submitted logs, newest first.
func (b *OperatorLogbook) Logs(ctx context.Context, params pagination.Params) (pagination.Result[domain.OperatorLog], error) {
	total, err := b.logs.Count(ctx)
	if err != nil {
		return pagination.Result[domain.OperatorLog]{}, apperrors.Wrap(err, "count operator logs")
	}
	logs, err := b.logs.List(ctx, params.Offset, params.PerPage)
	if err != nil {
		return pagination.Result[domain.OperatorLog]{}, apperrors.Wrap(err, "list operator logs")
	}
	return pagination.NewResult(logs, total, params), nil
}
