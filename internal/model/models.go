package model

import (
	"time"

	"holdem-service/internal/poker"

	"gorm.io/datatypes"
)

// 1. Tables & Seats

type Table struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"not null"`
	SeatCount  int    `gorm:"not null"`
	SmallBlind int64  `gorm:"not null"`
	BigBlind   int64  `gorm:"not null"`
	DealerSeat int    `gorm:"default:-1;not null"` // button of the last hand
	HandCount  int64  `gorm:"default:0;not null"`
	Status     string `gorm:"default:open;not null"` // open/closed
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Seat struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	TableID    int64  `gorm:"uniqueIndex:idx_seat_table_index;not null"`
	SeatIndex  int    `gorm:"uniqueIndex:idx_seat_table_index;not null"`
	PlayerName string // empty = vacant
	StackLive  int64  `gorm:"default:0;not null"`
	SatOut     bool   `gorm:"default:false;not null"`
	UpdatedAt  time.Time
}

func (s Seat) Occupied() bool {
	return s.PlayerName != ""
}

// 2. Hands

type Stage string

const (
	StagePreflop Stage = "preflop"
	StageFlop    Stage = "flop"
	StageTurn    Stage = "turn"
	StageRiver   Stage = "river"
	StageHandEnd Stage = "hand_end"
)

type Hand struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	TableID       int64 `gorm:"uniqueIndex:idx_hand_table_no;not null"`
	HandNo        int64 `gorm:"uniqueIndex:idx_hand_table_no;not null"`
	Stage         Stage `gorm:"index;not null"`
	DealerSeat    int
	SBSeat        int
	BBSeat        int
	SmallBlind    int64
	BigBlind      int64
	CurrentTurn   *int
	TurnDeadline  *time.Time `gorm:"index"`
	PotTotal      int64
	Board         poker.Board
	Deck          poker.Deck
	LastRaiseTo   int64
	LastRaiseSize int64
	Seq           int64
	ResultJSON    datatypes.JSON
	EndedAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (h Hand) Ended() bool {
	return h.Stage == StageHandEnd
}

type HandPlayer struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	HandID       int64 `gorm:"uniqueIndex:idx_hand_player_seat;not null"`
	SeatIndex    int   `gorm:"uniqueIndex:idx_hand_player_seat;not null"`
	PlayerName   string
	Hole         poker.Hole
	StartStack   int64
	BetStreet    int64
	ContribTotal int64
	Folded       bool
	AllIn        bool
	ActedStreet  bool
	WinAmount    int64
	Score        uint32
	HandName     string
}

// Action is append-only.
type Action struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	HandID     int64  `gorm:"index;uniqueIndex:idx_action_dedup;not null"`
	SeatIndex  int    `gorm:"uniqueIndex:idx_action_dedup;not null"`
	Kind       string `gorm:"not null"`
	Amount     int64
	Stage      Stage
	DedupToken *string `gorm:"uniqueIndex:idx_action_dedup"`
	CreatedAt  time.Time
}

func (Action) TableName() string {
	return "hand_actions"
}

// 3. Showdown

type Pot struct {
	ID      int64 `gorm:"primaryKey;autoIncrement"`
	HandID  int64 `gorm:"index;not null"`
	SideIdx int   `gorm:"not null"`
	Amount  int64
}

type PotMember struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	PotID     int64 `gorm:"index;not null"`
	HandID    int64 `gorm:"index;not null"`
	SeatIndex int
	Winner    bool
	Share     int64
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Table{},
		&Seat{},
		&Hand{},
		&HandPlayer{},
		&Action{},
		&Pot{},
		&PotMember{},
	}
}
