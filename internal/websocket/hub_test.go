package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func mockClient(hub *Hub, familyID int64) *Client {
	return &Client{
		hub:      hub,
		familyID: familyID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := hub.FamilyClientCount(1); got != 1 {
		t.Fatalf("expected 1 client in family 1, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	// Second unregister must not close the channel twice.
	hub.Unregister(c1)

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestNotifyIsFamilyScoped(t *testing.T) {
	hub := NewHub(slog.Default())

	mine := mockClient(hub, 1)
	theirs := mockClient(hub, 2)
	hub.Register(mine)
	hub.Register(theirs)
	defer hub.Unregister(mine)
	defer hub.Unregister(theirs)

	hub.Notify(1, "goal", "milestone_reached", 42, map[string]any{"percentage": float64(25)})

	got := receive(t, mine)
	if got.Type != "goal_milestone_reached" || got.ID != 42 {
		t.Errorf("message = %+v", got)
	}
	if got.Extra["percentage"] != float64(25) {
		t.Errorf("extra = %v", got.Extra)
	}

	select {
	case <-theirs.send:
		t.Error("other family received the message")
	default:
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(1, NewMessage("ticket", "fill", int64(i), nil))
	}
	hub.Broadcast(1, NewMessage("ticket", "dropped", 999, nil))

	count := 0
	for len(c.send) > 0 {
		<-c.send
		count++
	}
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}
	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("completion", "approved", 5, nil)
	if msg.Type != "completion_approved" || msg.Entity != "completion" || msg.Action != "approved" || msg.ID != 5 {
		t.Errorf("message = %+v", msg)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(family int64) {
			defer wg.Done()
			c := mockClient(hub, family)
			hub.Register(c)
			hub.Notify(family, "child", "balance_changed", 0, nil)
			for len(c.send) > 0 {
				<-c.send
			}
			hub.Unregister(c)
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandlerRequiresFamily(t *testing.T) {
	hub := NewHub(slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?family_id=abc", nil)

	HandleWebSocket(hub, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
