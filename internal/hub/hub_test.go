package hub

import "testing"

func newClient(id string, sub Subscription) *Client {
	return &Client{ID: id, Send: make(chan []byte, 4), Subscription: sub}
}

func TestBroadcastFiltersBySubscription(t *testing.T) {
	h := New()

	all := newClient("all", Subscription{})
	caja := newClient("caja", Subscription{CompanyID: "acme", DepartmentID: "dept-caja"})
	other := newClient("other", Subscription{CompanyID: "acme", DepartmentID: "dept-servicio"})
	foreign := newClient("foreign", Subscription{CompanyID: "globex"})
	for _, c := range []*Client{all, caja, other, foreign} {
		h.Register(c)
	}

	h.Broadcast([]byte(`{"kind":"ticket.created"}`), Subscription{CompanyID: "acme", DepartmentID: "dept-caja"})

	if len(all.Send) != 1 {
		t.Fatal("wildcard client must receive the message")
	}
	if len(caja.Send) != 1 {
		t.Fatal("matching department client must receive the message")
	}
	if len(other.Send) != 0 {
		t.Fatal("other department must not receive the message")
	}
	if len(foreign.Send) != 0 {
		t.Fatal("other company must not receive the message")
	}
}

func TestBroadcastDropsWhenClientIsFull(t *testing.T) {
	h := New()
	client := &Client{ID: "slow", Send: make(chan []byte, 1)}
	h.Register(client)

	h.Broadcast([]byte("a"), Subscription{})
	h.Broadcast([]byte("b"), Subscription{})

	if len(client.Send) != 1 {
		t.Fatalf("expected one buffered message, got %d", len(client.Send))
	}
	if got := string(<-client.Send); got != "a" {
		t.Fatalf("expected first message kept, got %q", got)
	}
}

func TestUnregisterClosesSendOnce(t *testing.T) {
	h := New()
	client := newClient("c", Subscription{})
	h.Register(client)

	h.Unregister(client)
	h.Unregister(client) // second call is a no-op

	if _, open := <-client.Send; open {
		t.Fatal("expected send channel closed")
	}
	if h.ClientCount() != 0 {
		t.Fatal("expected no clients after unregister")
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","company_id":"acme","department_id":"dept-caja"}`))
	if !ok {
		t.Fatal("expected valid subscribe message")
	}
	if msg.CompanyID != "acme" || msg.DepartmentID != "dept-caja" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, ok := ParseSubscribe([]byte(`{"action":"ping"}`)); ok {
		t.Fatal("unknown action must be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatal("malformed payload must be rejected")
	}
	if msg, ok := ParseSubscribe([]byte(`{"action":"unsubscribe"}`)); !ok || msg.Action != "unsubscribe" {
		t.Fatal("unsubscribe must be accepted")
	}
}
