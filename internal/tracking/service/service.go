// Package service mints tracked short links and records their first click.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/internal/tracking/domain"
	"leadflow_backend/internal/tracking/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	mintAttempts  = 5
	DefaultQRSize = 256
	maxQRSize     = 1024
	minQRSize     = 64
)

// Service manages tracked links.
type Service struct {
	tx      db.TxRunner
	q       db.DBTX
	repo    repository.Repository
	bus     events.Bus
	baseURL string
	landing string
	log     *logger.Logger
}

// New creates the tracking service. baseURL prefixes short codes; landing is
// the target used when a mint request names none.
func New(tx db.TxRunner, q db.DBTX, repo repository.Repository, bus events.Bus, baseURL, landing string, log *logger.Logger) *Service {
	return &Service{
		tx:      tx,
		q:       q,
		repo:    repo,
		bus:     bus,
		baseURL: strings.TrimRight(baseURL, "/"),
		landing: landing,
		log:     log,
	}
}

// ShortURL is the public URL of a code.
func (s *Service) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

// MintInTx creates a link for leadID inside the caller's transaction and
// returns its code.
func (s *Service) MintInTx(ctx context.Context, q db.DBTX, leadID, salesID uuid.UUID, targetURL string) (string, error) {
	link, err := s.mint(ctx, q, leadID, salesID, targetURL)
	if err != nil {
		return "", err
	}
	return link.Code, nil
}

// Mint creates a link on behalf of a user.
func (s *Service) Mint(ctx context.Context, leadID uuid.UUID, targetURL string, act actor.Actor) (domain.Link, error) {
	owner, err := s.repo.GetLeadOwner(ctx, s.q, leadID)
	if err != nil {
		return domain.Link{}, err
	}
	if !act.CanManage(owner) {
		return domain.Link{}, apperr.Forbidden("lead is owned by another sales")
	}
	if targetURL == "" {
		targetURL = s.landing
	}

	var link domain.Link
	err = s.tx.WithinTx(ctx, func(q db.DBTX) error {
		var err error
		link, err = s.mint(ctx, q, leadID, owner, targetURL)
		return err
	})
	return link, err
}

func (s *Service) mint(ctx context.Context, q db.DBTX, leadID, salesID uuid.UUID, targetURL string) (domain.Link, error) {
	for i := 0; i < mintAttempts; i++ {
		code, err := domain.NewCode()
		if err != nil {
			return domain.Link{}, fmt.Errorf("generate link code: %w", err)
		}
		link, ok, err := s.repo.InsertLink(ctx, q, domain.Link{
			Code:      code,
			LeadID:    leadID,
			SalesID:   salesID,
			TargetURL: targetURL,
		})
		if err != nil {
			return domain.Link{}, err
		}
		if ok {
			return link, nil
		}
	}
	return domain.Link{}, apperr.Conflict("could not allocate a unique link code")
}

// RecordClick resolves code to its target and stores the first click of the
// lead. Recording failures are logged and never block the redirect. When the
// lookup itself fails for anything but an unknown code, the landing page is
// returned instead.
func (s *Service) RecordClick(ctx context.Context, code string, meta domain.ClickMeta) (string, error) {
	link, err := s.repo.GetByCode(ctx, s.q, code)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) || s.landing == "" {
			return "", err
		}
		s.log.Error("failed to resolve link, redirecting to landing",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return s.landing, nil
	}

	preview := domain.IsPreview(meta)
	inserted, err := s.repo.InsertClick(ctx, s.q, link, meta, preview)
	if err != nil {
		s.log.Error("failed to record link click",
			slog.String("code", code),
			slog.String("lead_id", link.LeadID.String()),
			slog.String("error", err.Error()),
		)
		return link.TargetURL, nil
	}

	if inserted {
		s.bus.Publish(ctx, events.LinkClicked{
			BaseEvent: events.NewBaseEvent(),
			LinkID:    link.ID,
			LeadID:    link.LeadID,
			SalesID:   link.SalesID,
			Code:      link.Code,
			IsPreview: preview,
		})
	}
	return link.TargetURL, nil
}

// QR renders the short URL of code as a PNG of size pixels.
func (s *Service) QR(ctx context.Context, code string, size int, act actor.Actor) ([]byte, error) {
	link, err := s.repo.GetByCode(ctx, s.q, code)
	if err != nil {
		return nil, err
	}
	if !act.CanManage(link.SalesID) {
		return nil, apperr.Forbidden("link belongs to another sales")
	}
	if size < minQRSize || size > maxQRSize {
		size = DefaultQRSize
	}

	png, err := qrcode.Encode(s.ShortURL(link.Code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
