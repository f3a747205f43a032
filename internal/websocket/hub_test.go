package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcastToReachesSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, "Muldraugh")
	hub.Register <- client

	payload := []byte(`{"action":"event"}`)

	// Registration completes on the hub goroutine; keep sending until the
	// subscription is visible.
	for i := 0; i < 100; i++ {
		hub.BroadcastTo("Muldraugh", payload)
		select {
		case got := <-client.Send:
			if string(got) != string(payload) {
				t.Fatalf("received %s, want %s", got, payload)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("subscribed client never received the broadcast")
}

func TestBroadcastToIgnoresOtherScopes(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, "Rosewood")
	hub.Register <- client

	hub.BroadcastTo("Muldraugh", []byte("x"))

	select {
	case got := <-client.Send:
		t.Fatalf("client subscribed to Rosewood received %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// Targeted broadcasts run on event-producing goroutines while the hub
// goroutine churns registrations. Run under -race this pins down that the
// shared client and subscription maps are properly guarded.
func TestBroadcastToConcurrentWithClientChurn(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			client := NewClient(hub, nil, GlobalScope)
			hub.Register <- client
			hub.Unregister <- client
		}
	}()

	payload := []byte(`{"action":"event"}`)
	for {
		select {
		case <-done:
			return
		default:
			hub.BroadcastTo(GlobalScope, payload)
		}
	}
}

func TestNewErrorMessage(t *testing.T) {
	raw := NewErrorMessage("Unknown action: reboot")

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Action != "error" {
		t.Errorf("action = %q, want error", msg.Action)
	}
	if msg.Payload != "Unknown action: reboot" {
		t.Errorf("payload = %v", msg.Payload)
	}
}
