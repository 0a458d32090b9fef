// Package report sends a completed assessment's PDF link by email and keeps
// the audit records of what was sent.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/observability"
)

// ErrInvalidRequest is returned for requests that fail validation.
var ErrInvalidRequest = errors.New("invalid report request")

// SessionLoader reads stored assessment sessions.
type SessionLoader interface {
	LoadSession(ctx context.Context, id string) (*schemas.Session, error)
}

// BankLoader yields the active question bank.
type BankLoader interface {
	Load(ctx context.Context) (*schemas.QuestionBank, error)
}

// LinkGranter mints download links.
type LinkGranter interface {
	Grant(ctx context.Context, firstName, email, archetype string) (string, error)
}

// Options carries the report settings.
type Options struct {
	From          string
	Subject       string
	PublicBaseURL string
	LinkLifetime  time.Duration
}

// Service handles POST /api/send-report.
type Service struct {
	sessions SessionLoader
	bank     BankLoader
	links    LinkGranter
	mailer   schemas.EmailSender
	store    schemas.KeyValueStore
	opts     Options
	metrics  *observability.Metrics
	now      func() time.Time
	log      *zap.Logger
}

func NewService(sessions SessionLoader, bank BankLoader, links LinkGranter, mailer schemas.EmailSender, store schemas.KeyValueStore, opts Options, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		bank:     bank,
		links:    links,
		mailer:   mailer,
		store:    store,
		opts:     opts,
		metrics:  metrics,
		now:      time.Now,
		log:      logger.Named("report"),
	}
}

// Send validates the request, mints a download link, emails it and records
// the submission. Only the email is required to succeed; record writes that
// fail are logged.
func (s *Service) Send(ctx context.Context, req schemas.ReportRequest) (*schemas.ReportResponse, error) {
	resp, err := s.send(ctx, req)
	switch {
	case err == nil:
		s.metrics.ObserveReport("sent")
	case errors.Is(err, ErrInvalidRequest):
		s.metrics.ObserveReport("invalid")
	default:
		s.metrics.ObserveReport("failed")
	}
	return resp, err
}

func (s *Service) send(ctx context.Context, req schemas.ReportRequest) (*schemas.ReportResponse, error) {
	log := observability.FromContext(ctx, s.log)

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.Email = strings.TrimSpace(req.Email)
	req.Archetype = strings.TrimSpace(req.Archetype)
	if req.FirstName == "" || req.Email == "" || req.Archetype == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidRequest)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email address: %v", ErrInvalidRequest, err)
	}
	req.Email = email

	qb, err := s.bank.Load(ctx)
	if err != nil {
		return nil, err
	}
	adopted := s.applySession(ctx, log, &req)
	if !adopted {
		req.SessionID = ""
	}
	if !qb.HasArchetype(req.Archetype) {
		return nil, fmt.Errorf("%w: unknown archetype %q", ErrInvalidRequest, req.Archetype)
	}

	token, err := s.links.Grant(ctx, req.FirstName, req.Email, req.Archetype)
	if err != nil {
		return nil, fmt.Errorf("failed to create download link: %w", err)
	}

	name := qb.ArchetypeName(req.Archetype)
	html, err := renderEmail(emailData{
		FirstName:     req.FirstName,
		ArchetypeName: name,
		Quote:         qb.Profiles[req.Archetype].Quote,
		DownloadURL:   s.downloadURL(token),
		ExpiresIn:     humanDuration(s.opts.LinkLifetime),
	})
	if err != nil {
		return nil, err
	}
	emailID, err := s.mailer.Send(ctx, schemas.EmailMessage{
		From:    s.opts.From,
		To:      req.Email,
		Subject: s.opts.Subject,
		HTML:    html,
	})
	if err != nil {
		log.Error("Report email failed", zap.String("archetype", req.Archetype), zap.Error(err))
		return nil, fmt.Errorf("failed to send report email: %w", err)
	}

	// Only a completed session may name its own records.
	id := req.SessionID
	if id == "" {
		id = "sub_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	completed := s.now().UTC()
	s.record(ctx, log, schemas.SubmissionKeyPrefix+id, schemas.Submission{
		ID:              id,
		SessionID:       req.SessionID,
		FirstName:       req.FirstName,
		Email:           req.Email,
		Archetype:       req.Archetype,
		ArchetypeName:   name,
		PrimaryDomain:   req.PrimaryDomain,
		SecondaryDomain: req.SecondaryDomain,
		Scores:          req.Scores,
		ArchetypeScores: req.ArchetypeScores,
		EmailID:         emailID,
		CompletedAt:     completed,
	})
	s.record(ctx, log, schemas.SummaryKeyPrefix+id, schemas.Summary{
		ID:              id,
		Archetype:       req.Archetype,
		PrimaryDomain:   req.PrimaryDomain,
		SecondaryDomain: req.SecondaryDomain,
		CompletedAt:     completed,
	})

	log.Info("Report sent", zap.String("submission_id", id), zap.String("email_id", emailID), zap.String("archetype", req.Archetype))
	return &schemas.ReportResponse{
		Status:       "success",
		Message:      "Your report is on its way. Check your inbox.",
		SubmissionID: id,
		EmailID:      emailID,
	}, nil
}

// applySession replaces the client supplied results with those of the stored
// session when it is complete, and reports whether it did.
func (s *Service) applySession(ctx context.Context, log *zap.Logger, req *schemas.ReportRequest) bool {
	if req.SessionID == "" || s.sessions == nil {
		return false
	}
	sess, err := s.sessions.LoadSession(ctx, req.SessionID)
	if err != nil {
		log.Debug("Report session not usable, keeping request values", zap.String("session_id", req.SessionID), zap.Error(err))
		return false
	}
	if sess.Phase != schemas.PhaseComplete {
		log.Debug("Report session is not complete", zap.String("session_id", req.SessionID), zap.Stringer("phase", sess.Phase))
		return false
	}
	if req.Archetype != sess.FinalArchetype() {
		log.Warn("Report archetype differs from session result",
			zap.String("requested", req.Archetype), zap.String("session", sess.FinalArchetype()))
	}
	req.Archetype = sess.FinalArchetype()
	req.PrimaryDomain = sess.PrimaryDomain()
	req.SecondaryDomain = sess.SecondaryDomain()
	req.Scores = maps.Clone(sess.Scores)
	req.ArchetypeScores = maps.Clone(sess.ArchetypeScores())
	req.SessionID = sess.ID
	return true
}

func (s *Service) record(ctx context.Context, log *zap.Logger, key string, v any) {
	raw, err := json.Marshal(v)
	if err == nil {
		err = s.store.Set(ctx, key, raw, 0)
	}
	if err != nil {
		log.Warn("Failed to write report record", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) downloadURL(token string) string {
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/api/download?token=" + url.QueryEscape(token)
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "24 hours"
	case d%(24*time.Hour) == 0 && d > 24*time.Hour:
		return fmt.Sprintf("%d days", d/(24*time.Hour))
	case d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return d.String()
	}
}
