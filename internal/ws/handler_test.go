package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holdem-service/internal/model"
	"holdem-service/internal/service/game"
	"holdem-service/internal/service/table"
	"holdem-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newServer(t *testing.T) (*httptest.Server, int64) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	ctx := context.Background()
	tables := table.NewService(db)
	games := game.NewService(db, tables)
	view, err := tables.CreateTable(ctx, table.CreateTableParams{SeatCount: 2, SmallBlind: 1, BigBlind: 2})
	require.NoError(t, err)
	for seat := 0; seat < 2; seat++ {
		_, err := tables.SitDown(ctx, view.Table.ID, seat, fmt.Sprintf("p%d", seat), 100)
		require.NoError(t, err)
	}
	started, err := games.StartHand(ctx, view.Table.ID)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws/hands/:id", ws.NewHandler(games).HandleHandWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, started.HandID
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq"`
	Data json.RawMessage `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamPushesStateOnConnectAndAfterAction(t *testing.T) {
	srv, handID := newServer(t)
	conn := dial(t, srv, fmt.Sprintf("/ws/hands/%d?seat=0", handID))

	first := read(t, conn)
	require.Equal(t, "state", first.Type)

	require.NoError(t, conn.WriteJSON(gin.H{"type": "action", "data": gin.H{"action": "call"}}))

	seen := map[string]frame{}
	for len(seen) < 2 {
		f := read(t, conn)
		seen[f.Type] = f
	}
	require.Contains(t, seen, "result")
	require.Contains(t, seen, "state")
	assert.Greater(t, seen["state"].Seq, first.Seq)

	var out game.ActionOutcome
	require.NoError(t, json.Unmarshal(seen["result"].Data, &out))
	assert.Equal(t, game.ActionCall, out.Action)
}

func TestStreamRejectsActionsOutOfTurn(t *testing.T) {
	srv, handID := newServer(t)
	conn := dial(t, srv, fmt.Sprintf("/ws/hands/%d?seat=1", handID))
	read(t, conn)

	require.NoError(t, conn.WriteJSON(gin.H{"type": "action", "data": gin.H{"action": "check"}}))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Data), "not your turn")
}

func TestStreamUnknownHand(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/ws/hands/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
