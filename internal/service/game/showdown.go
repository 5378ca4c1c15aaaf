package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"holdem-service/internal/model"
	"holdem-service/internal/poker"
	"holdem-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type WinnerView struct {
	SeatIndex  int    `json:"seatIndex"`
	PlayerName string `json:"playerName"`
	Amount     int64  `json:"amount"`
	HandName   string `json:"handName,omitempty"`
}

type PotView struct {
	SideIdx  int     `json:"sideIdx"`
	Amount   int64   `json:"amount"`
	Eligible []int   `json:"eligible"`
	Winners  []int   `json:"winners"`
	Shares   []int64 `json:"shares"`
}

// ShowdownInfo is persisted as the hand's result summary.
type ShowdownInfo struct {
	Reason  string       `json:"reason"` // showdown / fold_out
	Board   poker.Board  `json:"board"`
	Pots    []PotView    `json:"pots"`
	Winners []WinnerView `json:"winners"`
}

// showdownLocked scores every live seat on the full board, splits each
// pot among its best eligible hands and ends the hand. Remainder chips
// go to the earliest winners counted from the seat after the button.
func (s *Service) showdownLocked(book *handBook) (*ShowdownInfo, error) {
	hand := book.hand
	scores := make(map[int]poker.Score)
	for _, p := range book.live() {
		score, err := poker.Evaluate(p.Hole, hand.Board)
		if err != nil {
			return nil, fmt.Errorf("hand %d seat %d: %w", hand.ID, p.SeatIndex, err)
		}
		scores[p.SeatIndex] = score
		p.Score = uint32(score)
		p.HandName = describeHand(hand.ID, p, hand.Board, score)
	}

	contribs := make([]poker.Contribution, 0, len(book.players))
	for _, p := range book.players {
		contribs = append(contribs, poker.Contribution{
			Seat:   p.SeatIndex,
			Amount: p.ContribTotal,
			Live:   !p.Folded,
		})
	}
	pots := poker.BuildPots(contribs)

	rank := make(map[int]int, len(book.players))
	for i, p := range book.orderAfter(hand.DealerSeat) {
		rank[p.SeatIndex] = i
	}

	views := make([]PotView, 0, len(pots))
	for idx, pot := range pots {
		var best poker.Score
		winners := make([]int, 0, len(pot.Eligible))
		for _, seat := range scanOrder(pot.Eligible, rank) {
			switch sc := scores[seat]; {
			case len(winners) == 0 || sc > best:
				best = sc
				winners = append(winners[:0], seat)
			case sc == best:
				winners = append(winners, seat)
			}
		}
		view := PotView{
			SideIdx:  idx,
			Amount:   pot.Amount,
			Eligible: pot.Eligible,
			Winners:  winners,
			Shares:   poker.Split(pot.Amount, len(winners)),
		}
		for i, seat := range winners {
			if err := book.award(book.player(seat), view.Shares[i]); err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}

	info := &ShowdownInfo{Reason: "showdown", Board: hand.Board, Pots: views}
	if err := s.finishLocked(book, info); err != nil {
		return nil, err
	}
	return info, nil
}

// payoutSurvivorLocked ends a hand everyone else folded out of. No cards
// are dealt or evaluated.
func (s *Service) payoutSurvivorLocked(book *handBook) (*ShowdownInfo, error) {
	closeStreet(book)
	live := book.live()
	if len(live) != 1 {
		return nil, fmt.Errorf("hand %d: fold-out with %d live seats", book.hand.ID, len(live))
	}
	survivor := live[0]
	amount := book.hand.PotTotal
	if err := book.award(survivor, amount); err != nil {
		return nil, err
	}

	info := &ShowdownInfo{
		Reason: "fold_out",
		Board:  book.hand.Board,
		Pots: []PotView{{
			SideIdx:  0,
			Amount:   amount,
			Eligible: []int{survivor.SeatIndex},
			Winners:  []int{survivor.SeatIndex},
			Shares:   []int64{amount},
		}},
	}
	if err := s.finishLocked(book, info); err != nil {
		return nil, err
	}
	return info, nil
}

// finishLocked replaces the hand's pot rows and closes it.
func (s *Service) finishLocked(book *handBook, info *ShowdownInfo) error {
	tx := book.tx
	hand := book.hand

	if err := tx.Where("hand_id = ?", hand.ID).Delete(&model.PotMember{}).Error; err != nil {
		return err
	}
	if err := tx.Where("hand_id = ?", hand.ID).Delete(&model.Pot{}).Error; err != nil {
		return err
	}
	for _, view := range info.Pots {
		pot := model.Pot{HandID: hand.ID, SideIdx: view.SideIdx, Amount: view.Amount}
		if err := tx.Create(&pot).Error; err != nil {
			return err
		}
		shares := make(map[int]int64, len(view.Winners))
		for i, seat := range view.Winners {
			shares[seat] = view.Shares[i]
		}
		members := make([]model.PotMember, 0, len(view.Eligible))
		for _, seat := range view.Eligible {
			share, won := shares[seat]
			members = append(members, model.PotMember{
				PotID:     pot.ID,
				HandID:    hand.ID,
				SeatIndex: seat,
				Winner:    won,
				Share:     share,
			})
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
	}

	info.Winners = make([]WinnerView, 0)
	for _, p := range book.players {
		if p.WinAmount > 0 {
			info.Winners = append(info.Winners, WinnerView{
				SeatIndex:  p.SeatIndex,
				PlayerName: p.PlayerName,
				Amount:     p.WinAmount,
				HandName:   p.HandName,
			})
		}
	}

	now := book.now
	hand.Stage = model.StageHandEnd
	hand.ResultJSON = mustJSON(info)
	hand.EndedAt = &now
	book.clearTurn()

	logger.Log.Info("hand ended",
		zap.Int64("handID", hand.ID),
		zap.String("reason", info.Reason),
		zap.Int64("pot", hand.PotTotal),
		zap.Int("winners", len(info.Winners)),
	)
	return nil
}

func scanOrder(seats []int, rank map[int]int) []int {
	out := make([]int, len(seats))
	copy(out, seats)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

func describeHand(handID int64, p *model.HandPlayer, board poker.Board, score poker.Score) string {
	name, err := poker.Describe(p.Hole, board)
	if err != nil {
		logger.Log.Warn("describe hand failed",
			zap.Int64("handID", handID),
			zap.Int("seat", p.SeatIndex),
			zap.Error(err),
		)
		return score.Category().String()
	}
	return name
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
