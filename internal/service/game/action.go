package game

import (
	"context"
	"fmt"
	"strings"

	"holdem-service/internal/model"
	appErr "holdem-service/pkg/errors"

	"gorm.io/gorm"
)

// ActionRequest.Amount is the number of chips a bet or raise moves from
// the stack. DedupToken identifies one user action across retries.
type ActionRequest struct {
	HandID     int64
	SeatIndex  int
	Action     string
	Amount     int64
	DedupToken string
}

// ActionOutcome.RoundSettled means the turn was cleared and the street
// is waiting for AdvanceStreet.
type ActionOutcome struct {
	HandID       int64        `json:"handId"`
	SeatIndex    int          `json:"seatIndex"`
	Action       string       `json:"action"`
	Amount       int64        `json:"amount"`
	Stage        model.Stage  `json:"stage"`
	PotTotal     int64        `json:"potTotal"`
	CurrentTurn  *int         `json:"currentTurn"`
	RoundSettled bool         `json:"roundSettled"`
	HandEnded    bool         `json:"handEnded"`
	Winners      []WinnerView `json:"winners,omitempty"`
	Duplicate    bool         `json:"duplicate"`
}

// ApplyAction validates and applies one seat's action on its turn.
func (s *Service) ApplyAction(ctx context.Context, req ActionRequest) (*ActionOutcome, error) {
	unlock := s.locks.Lock(handKey(req.HandID))
	defer unlock()

	var out *ActionOutcome
	var tableID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.openHand(tx, req.HandID)
		if err != nil {
			return err
		}
		tableID = book.hand.TableID

		if req.DedupToken != "" {
			prior, err := findByToken(tx, req.HandID, req.SeatIndex, req.DedupToken)
			if err != nil {
				return err
			}
			if prior != nil {
				out = outcomeFor(book, prior)
				out.Duplicate = true
				return nil
			}
		}

		if book.hand.Ended() {
			return fmt.Errorf("%w: %w", appErr.ErrNotYourTurn, appErr.ErrHandEnded)
		}
		if book.hand.CurrentTurn == nil || *book.hand.CurrentTurn != req.SeatIndex {
			return appErr.ErrNotYourTurn
		}
		p := book.player(req.SeatIndex)
		if p == nil {
			return appErr.ErrNotYourTurn
		}

		kind, amount, err := normalize(book, p, req.Action, req.Amount)
		if err != nil {
			return err
		}
		if err := applyMove(book, p, kind, amount); err != nil {
			return err
		}
		action, err := book.logAction(p.SeatIndex, kind, amount, req.DedupToken)
		if err != nil {
			return err
		}

		info, err := s.resolveLocked(book, p.SeatIndex)
		if err != nil {
			return err
		}
		if err := book.save(); err != nil {
			return err
		}
		out = outcomeFor(book, action)
		if info != nil {
			out.Winners = info.Winners
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.Duplicate {
		s.publish(ctx, Event{HandID: req.HandID, TableID: tableID, Kind: EventAction, Stage: out.Stage})
	}
	return out, nil
}

// normalize maps a requested action onto the one actually applied and
// the chips it moves. bet facing a bet is a raise, call with nothing to
// call is a check, and any move of the whole stack is an all-in.
func normalize(book *handBook, p *model.HandPlayer, action string, amount int64) (string, int64, error) {
	max := book.maxBet()
	owed := book.toCall(p)
	stack := book.stack(p.SeatIndex)

	switch kind := strings.ToLower(strings.TrimSpace(action)); kind {
	case ActionFold:
		return ActionFold, 0, nil
	case ActionCheck:
		if owed > 0 {
			return "", 0, appErr.ErrCannotCheckFacingBet
		}
		return ActionCheck, 0, nil
	case ActionCall:
		if owed == 0 {
			return ActionCheck, 0, nil
		}
		if owed >= stack {
			return ActionAllIn, stack, nil
		}
		return ActionCall, owed, nil
	case ActionBet, ActionRaise:
		if kind == ActionBet && max > 0 {
			kind = ActionRaise
		} else if kind == ActionRaise && max == 0 {
			kind = ActionBet
		}
		if amount <= 0 {
			return "", 0, fmt.Errorf("%w: amount must be positive", appErr.ErrInvalidAmount)
		}
		if amount > stack {
			return "", 0, fmt.Errorf("%w: seat %d has %d", appErr.ErrInsufficientStack, p.SeatIndex, stack)
		}
		if amount == stack {
			return ActionAllIn, stack, nil
		}
		to := p.BetStreet + amount
		if kind == ActionBet && amount < book.hand.BigBlind {
			return "", 0, fmt.Errorf("%w: minimum bet is %d", appErr.ErrInvalidAmount, book.hand.BigBlind)
		}
		if kind == ActionRaise && to-max < book.minRaise() {
			return "", 0, fmt.Errorf("%w: raise to at least %d", appErr.ErrInvalidAmount, max+book.minRaise())
		}
		return kind, amount, nil
	case ActionAllIn, "allin", "all-in":
		if stack <= 0 {
			return "", 0, fmt.Errorf("%w: no chips behind", appErr.ErrInvalidAction)
		}
		return ActionAllIn, stack, nil
	default:
		return "", 0, fmt.Errorf("%w: %q", appErr.ErrInvalidAction, action)
	}
}

// applyMove mutates the seat. A full raise resets the minimum raise
// size; a short all-in only moves the bet level.
func applyMove(book *handBook, p *model.HandPlayer, kind string, amount int64) error {
	max := book.maxBet()
	p.ActedStreet = true
	switch kind {
	case ActionFold, ActionAutoFold:
		p.Folded = true
		return nil
	case ActionCheck, ActionAutoCheck:
		return nil
	}

	if err := book.commit(p, amount); err != nil {
		return err
	}
	if p.BetStreet > max {
		if size := p.BetStreet - max; size >= book.minRaise() {
			book.hand.LastRaiseSize = size
		}
		book.hand.LastRaiseTo = p.BetStreet
	}
	return nil
}

// resolveLocked runs after every applied action: fold-out pays the
// survivor, a settled round pauses with no turn, otherwise the turn
// passes on.
func (s *Service) resolveLocked(book *handBook, actor int) (*ShowdownInfo, error) {
	if len(book.live()) == 1 {
		return s.payoutSurvivorLocked(book)
	}
	if book.roundSettled() {
		book.clearTurn()
		return nil, nil
	}
	if seat, ok := book.nextActor(actor); ok {
		book.setTurn(seat)
	} else {
		book.clearTurn()
	}
	return nil, nil
}

// findByToken looks up a seat's earlier action by its dedup token. A
// token is scoped to the seat that sent it.
func findByToken(tx *gorm.DB, handID int64, seat int, token string) (*model.Action, error) {
	var action model.Action
	res := tx.Where("hand_id = ? AND seat_index = ? AND dedup_token = ?", handID, seat, token).
		Limit(1).Find(&action)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &action, nil
}

func outcomeFor(book *handBook, action *model.Action) *ActionOutcome {
	hand := book.hand
	out := &ActionOutcome{
		HandID:      hand.ID,
		SeatIndex:   action.SeatIndex,
		Action:      action.Kind,
		Amount:      action.Amount,
		Stage:       hand.Stage,
		PotTotal:    hand.PotTotal,
		CurrentTurn: hand.CurrentTurn,
		HandEnded:   hand.Ended(),
	}
	out.RoundSettled = !out.HandEnded && hand.CurrentTurn == nil
	return out
}
