package ledger_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voucheo/market-ledger/internal/ledger"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

// A client that drops mid-broadcast must not take the hub down with it:
// remaining clients keep receiving events and new clients can still join.
func TestWSHub_SurvivesDroppedClient(t *testing.T) {
	hub := ledger.NewWSHub()
	go hub.Run()

	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	dropped := dialWS(t, srv)
	survivor := dialWS(t, srv)
	defer survivor.Close()

	// Kill one connection abruptly, then broadcast into the dead socket a
	// few times so the hub hits the write failure and prunes it.
	dropped.Close()
	for i := 0; i < 5; i++ {
		hub.Broadcast(ledger.WSMessage{Type: "bet_placed", MarketID: 1, Side: "yes", Amount: "5"})
		time.Sleep(10 * time.Millisecond)
	}

	// The surviving client still receives broadcasts.
	hub.Broadcast(ledger.WSMessage{Type: "market_created", MarketID: 2, Question: "still alive?"})
	survivor.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got ledger.WSMessage
	for {
		_, data, err := survivor.ReadMessage()
		if err != nil {
			t.Fatalf("survivor read: %v", err)
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type == "market_created" {
			break
		}
	}
	if got.MarketID != 2 {
		t.Errorf("market id = %d, want 2", got.MarketID)
	}

	// And a late joiner is still served.
	late := dialWS(t, srv)
	defer late.Close()
	time.Sleep(50 * time.Millisecond) // allow registration to land
	hub.Broadcast(ledger.WSMessage{Type: "market_resolved", MarketID: 2})
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err != nil {
		t.Fatalf("late joiner read: %v", err)
	}
}
