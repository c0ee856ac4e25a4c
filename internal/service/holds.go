package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/cart"
	"hhmart/billing/internal/domain"
)

const holdListLimit = 100

// Hold parks the session and starts a fresh one on the same terminal.
func (s *Service) Hold(ctx context.Context, terminalID string) (domain.HoldResponse, error) {
	var holdID string
	_, err := s.mutate(terminalID, func(sess *cart.Session) error {
		if sess.Cart.Len() == 0 {
			return billing.Invalid("items", "cart is empty")
		}
		created, err := s.holds.CreateHold(ctx, sess.Snapshot())
		if err != nil {
			return billing.Persistence("hold bill", err)
		}
		holdID = created.ID
		sess.Reset()
		return nil
	})
	if err != nil {
		return domain.HoldResponse{}, err
	}

	s.log.Info("hold created",
		zap.String("hold_id", holdID),
		zap.String("terminal_id", strings.TrimSpace(terminalID)),
		zap.String("actor", actorName(ctx)),
	)
	return domain.HoldResponse{HoldID: holdID}, nil
}

// ListHolds returns active holds, newest first. An empty terminal lists
// holds from every terminal.
func (s *Service) ListHolds(ctx context.Context, terminalID string) (domain.HoldListResponse, error) {
	holds, err := s.holds.ListHolds(ctx, strings.TrimSpace(terminalID), holdListLimit)
	if err != nil {
		return domain.HoldListResponse{}, billing.Persistence("list holds", err)
	}
	if holds == nil {
		holds = []domain.HoldBill{}
	}
	return domain.HoldListResponse{Holds: holds}, nil
}

// ResumeHold restores a hold into the terminal's session. found is false when
// the hold was already resumed, deleted or never existed. The target session
// must be empty so no open cart is overwritten.
func (s *Service) ResumeHold(ctx context.Context, terminalID string, holdID string) (domain.SessionView, bool, error) {
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.SessionView{}, false, billing.Invalid("hold_id", "hold id is required")
	}

	found := true
	view, err := s.mutate(terminalID, func(sess *cart.Session) error {
		if sess.Cart.Len() > 0 {
			return billing.Invalid("items", "current cart is not empty; hold or clear it first")
		}
		hold, err := s.holds.PopHold(ctx, holdID)
		if errors.Is(err, billing.ErrNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return billing.Persistence("resume hold", err)
		}
		sess.Restore(*hold)
		return nil
	})
	if err != nil {
		return view, false, err
	}
	if !found {
		return view, false, nil
	}

	s.log.Info("hold resumed",
		zap.String("hold_id", holdID),
		zap.String("terminal_id", view.TerminalID),
		zap.String("actor", actorName(ctx)),
	)
	return view, true, nil
}

func (s *Service) DeleteHold(ctx context.Context, holdID string) error {
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return billing.Invalid("hold_id", "hold id is required")
	}
	if err := s.holds.DeleteHold(ctx, holdID); err != nil {
		return billing.Persistence("delete hold", err)
	}
	s.log.Info("hold deleted", zap.String("hold_id", holdID), zap.String("actor", actorName(ctx)))
	return nil
}
