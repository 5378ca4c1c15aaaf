package game_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"holdem-service/internal/model"
	"holdem-service/internal/poker"
	"holdem-service/internal/service/game"
	"holdem-service/internal/service/table"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engine struct {
	db      *gorm.DB
	svc     *game.Service
	tables  *table.Service
	clock   *fakeClock
	tableID int64
}

// newEngine seats one player per stack, seat i holding stacks[i], at a
// 5/10 table.
func newEngine(t *testing.T, stacks ...int64) *engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	tables := table.NewService(db)
	clock := newFakeClock()
	svc := game.NewService(db, tables,
		game.WithConfig(game.Config{TurnTimeout: 30 * time.Second}),
		game.WithClock(clock.Now),
		game.WithRand(func() *rand.Rand { return rand.New(rand.NewSource(7)) }),
	)

	ctx := context.Background()
	view, err := tables.CreateTable(ctx, table.CreateTableParams{
		Name:       "test",
		SeatCount:  len(stacks),
		SmallBlind: 5,
		BigBlind:   10,
	})
	require.NoError(t, err)
	for i, stack := range stacks {
		_, err := tables.SitDown(ctx, view.Table.ID, i, "p"+string(rune('a'+i)), stack)
		require.NoError(t, err)
	}

	return &engine{db: db, svc: svc, tables: tables, clock: clock, tableID: view.Table.ID}
}

func (e *engine) start(t *testing.T) *game.StartResult {
	t.Helper()
	res, err := e.svc.StartHand(context.Background(), e.tableID)
	require.NoError(t, err)
	return res
}

func (e *engine) state(t *testing.T, handID int64) *game.HandState {
	t.Helper()
	st, err := e.svc.GetState(context.Background(), handID, nil)
	require.NoError(t, err)
	return st
}

func (e *engine) act(t *testing.T, handID int64, seat int, action string, amount int64) *game.ActionOutcome {
	t.Helper()
	out, err := e.svc.ApplyAction(context.Background(), game.ActionRequest{
		HandID:    handID,
		SeatIndex: seat,
		Action:    action,
		Amount:    amount,
	})
	require.NoError(t, err, "seat %d %s %d", seat, action, amount)
	return out
}

// callDown has whoever holds the turn call (or check) until the street
// settles.
func (e *engine) callDown(t *testing.T, handID int64) {
	t.Helper()
	for i := 0; i < 20; i++ {
		st := e.state(t, handID)
		if st.CurrentTurn == nil {
			return
		}
		e.act(t, handID, *st.CurrentTurn, game.ActionCall, 0)
	}
	t.Fatalf("hand %d never settled", handID)
}

func (e *engine) advance(t *testing.T, handID int64) *game.AdvanceResult {
	t.Helper()
	res, err := e.svc.AdvanceStreet(context.Background(), handID)
	require.NoError(t, err)
	return res
}

// runToRiver checks the hand down to a settled river.
func (e *engine) runToRiver(t *testing.T, handID int64) {
	t.Helper()
	e.callDown(t, handID)
	for i := 0; i < 3; i++ {
		e.advance(t, handID)
		e.callDown(t, handID)
	}
	require.Equal(t, model.StageRiver, e.state(t, handID).Stage)
}

// rig overwrites hole cards and the board of a running hand.
func (e *engine) rig(t *testing.T, handID int64, holes map[int]string, board string) {
	t.Helper()
	var players []model.HandPlayer
	require.NoError(t, e.db.Where("hand_id = ?", handID).Find(&players).Error)
	for i := range players {
		raw, ok := holes[players[i].SeatIndex]
		if !ok {
			continue
		}
		cards, err := poker.ParseCards(raw)
		require.NoError(t, err)
		require.Len(t, cards, 2)
		players[i].Hole = poker.Hole{cards[0], cards[1]}
		require.NoError(t, e.db.Save(&players[i]).Error)
	}

	var hand model.Hand
	require.NoError(t, e.db.First(&hand, handID).Error)
	cards, err := poker.ParseCards(board)
	require.NoError(t, err)
	hand.Board, err = poker.NewBoard(cards...)
	require.NoError(t, err)
	require.NoError(t, e.db.Save(&hand).Error)
}

func (e *engine) stacks(t *testing.T) map[int]int64 {
	t.Helper()
	var seats []model.Seat
	require.NoError(t, e.db.Where("table_id = ?", e.tableID).Find(&seats).Error)
	out := make(map[int]int64, len(seats))
	for _, s := range seats {
		out[s.SeatIndex] = s.StackLive
	}
	return out
}

// chipsInPlay is every chip at the table: stacks plus the pot plus
// open street bets.
func (e *engine) chipsInPlay(t *testing.T, handID int64) int64 {
	t.Helper()
	var total int64
	for _, v := range e.stacks(t) {
		total += v
	}
	st := e.state(t, handID)
	if st.Stage == model.StageHandEnd {
		return total
	}
	total += st.PotTotal
	for _, s := range st.Seats {
		total += s.BetStreet
	}
	return total
}

// requireSeatsBalanced checks that no seat has gained or lost chips
// while the hand is running: what is behind, on the street and already
// in the pot adds back up to the stack it started with.
func (e *engine) requireSeatsBalanced(t *testing.T, handID int64) {
	t.Helper()
	st := e.state(t, handID)
	if st.Stage == model.StageHandEnd {
		return
	}
	for _, s := range st.Seats {
		require.Equal(t, s.StartStack, s.Stack+s.BetStreet+s.ContribTotal,
			"seat %d on %s", s.SeatIndex, st.Stage)
	}
}
