package websocket

import (
	"testing"
	"time"
)

func TestHub(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{
		hub:  hub,
		send: make(chan []byte, 1),
	}

	hub.register <- client
	hub.Broadcast([]byte("hello"))

	select {
	case received := <-client.send:
		if string(received) != "hello" {
			t.Errorf("Client received wrong message: got %s, want hello", received)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Client did not receive broadcast message in time")
	}

	hub.unregister <- client
	// Allow the hub to process the unregister message.
	time.Sleep(10 * time.Millisecond)

	// A closed send channel marks the client as dropped.
	if _, ok := <-client.send; ok {
		t.Fatal("Expected send channel to be closed after unregistration")
	}
}

func TestBroadcastJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	hub.BroadcastJSON(map[string]int{"progress": 42})
	select {
	case received := <-client.send:
		if string(received) != `{"progress":42}` {
			t.Errorf("unexpected payload: %s", received)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("no payload received")
	}
}
