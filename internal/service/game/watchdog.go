package game

import (
	"context"
	"sync"
	"time"

	"holdem-service/internal/model"
	"holdem-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TickNoop      = "noop"
	TickCleared   = "cleared"
	TickSkipped   = "skipped"
	TickAutoCheck = ActionAutoCheck
	TickAutoFold  = ActionAutoFold
)

type TickResult struct {
	HandID      int64       `json:"handId"`
	Outcome     string      `json:"outcome"`
	Seat        *int        `json:"seat,omitempty"`
	Stage       model.Stage `json:"stage"`
	CurrentTurn *int        `json:"currentTurn"`
	HandEnded   bool        `json:"handEnded"`
}

// Tick reconciles one hand against its turn deadline. An expired seat
// that owes nothing is checked for, one that owes chips is folded.
func (s *Service) Tick(ctx context.Context, handID int64) (*TickResult, error) {
	unlock := s.locks.Lock(handKey(handID))
	defer unlock()

	var out *TickResult
	var tableID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.openHand(tx, handID)
		if err != nil {
			return err
		}
		hand := book.hand
		tableID = hand.TableID
		out = &TickResult{HandID: hand.ID, Outcome: TickNoop}

		defer func() {
			out.Stage = hand.Stage
			out.CurrentTurn = hand.CurrentTurn
			out.HandEnded = hand.Ended()
		}()

		if hand.Ended() || hand.CurrentTurn == nil || hand.TurnDeadline == nil {
			return nil
		}
		if book.now.Before(*hand.TurnDeadline) {
			return nil
		}
		if len(book.live()) <= 1 {
			return nil
		}

		seat := *hand.CurrentTurn
		out.Seat = &seat

		if book.roundSettled() {
			book.clearTurn()
			out.Outcome = TickCleared
			return book.save()
		}

		p := book.player(seat)
		if p == nil || !book.canAct(p) {
			if next, ok := book.nextActor(seat); ok {
				book.setTurn(next)
			} else {
				book.clearTurn()
			}
			out.Outcome = TickSkipped
			return book.save()
		}

		kind := ActionAutoFold
		if book.toCall(p) == 0 {
			kind = ActionAutoCheck
		}
		logger.Log.Warn("turn deadline elapsed, forcing action",
			zap.Int64("handID", hand.ID),
			zap.Int("seat", seat),
			zap.String("action", kind),
			zap.String("stage", string(hand.Stage)),
		)
		if err := applyMove(book, p, kind, 0); err != nil {
			return err
		}
		if _, err := book.logAction(seat, kind, 0, ""); err != nil {
			return err
		}
		if _, err := s.resolveLocked(book, seat); err != nil {
			return err
		}
		out.Outcome = kind
		return book.save()
	})
	if err != nil {
		return nil, err
	}

	if out.Outcome != TickNoop {
		s.publish(ctx, Event{HandID: handID, TableID: tableID, Kind: EventTick, Stage: out.Stage})
	}
	return out, nil
}

// DueHands lists running hands whose turn deadline has passed.
func (s *Service) DueHands(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.Hand{}).
		Where("stage <> ? AND current_turn IS NOT NULL AND turn_deadline IS NOT NULL AND turn_deadline <= ?", model.StageHandEnd, now).
		Order("turn_deadline ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// Watchdog polls for expired turns and ticks each hand.
type Watchdog struct {
	svc      *Service
	interval time.Duration
	batch    int

	startOnce sync.Once
}

func NewWatchdog(svc *Service, interval time.Duration, batch int) *Watchdog {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Watchdog{svc: svc, interval: interval, batch: batch}
}

func (w *Watchdog) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.Run(ctx)
	})
}

func (w *Watchdog) Run(ctx context.Context) {
	logger.Log.Info("watchdog started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("watchdog stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep ticks every due hand once and reports how many it changed.
// Failures are logged and skipped.
func (w *Watchdog) Sweep(ctx context.Context) int {
	ids, err := w.svc.DueHands(ctx, w.svc.now(), w.batch)
	if err != nil {
		logger.Log.Warn("watchdog scan error", zap.Error(err))
		return 0
	}
	forced := 0
	for _, id := range ids {
		res, err := w.svc.Tick(ctx, id)
		if err != nil {
			logger.Log.Warn("watchdog tick error", zap.Int64("handID", id), zap.Error(err))
			continue
		}
		if res.Outcome != TickNoop {
			forced++
		}
	}
	return forced
}
