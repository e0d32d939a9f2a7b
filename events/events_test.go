package events

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

func TestDispatchOrder(t *testing.T) {
	dispatcher := New(testLogger())
	order := []string{}
	dispatcher.RegisterListener(EventChat, func(message EventMessage) {
		order = append(order, "first:"+message.Message)
	})
	dispatcher.RegisterListener(EventChat, func(message EventMessage) {
		order = append(order, "second:"+message.Message)
	})

	dispatcher.Trigger(EventMessage{EventCode: EventChat, Message: "a"})
	dispatcher.Trigger(EventMessage{EventCode: EventChat, Message: "b"})

	want := []string{"first:a", "second:a", "first:b", "second:b"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call %d out of order: want %s, got %s", i, want[i], order[i])
		}
	}
}

func TestDispatchSurvivesPanic(t *testing.T) {
	dispatcher := New(testLogger())
	ran := false
	dispatcher.RegisterListener(EventChat, func(message EventMessage) {
		panic("listener blew up")
	})
	dispatcher.RegisterListener(EventChat, func(message EventMessage) {
		ran = true
	})

	dispatcher.Trigger(EventMessage{EventCode: EventChat})

	if !ran {
		t.Fatal("listeners after a panicking one must still run")
	}
}

func TestMultiListener(t *testing.T) {
	dispatcher := New(testLogger())
	got := []EventCode{}
	dispatcher.RegisterMultiListener(EventsClientActivity, func(message EventMessage) {
		got = append(got, message.EventCode)
	})

	dispatcher.Trigger(EventMessage{EventCode: EventClientJoin})
	dispatcher.Trigger(EventMessage{EventCode: EventClientQuit})
	dispatcher.Trigger(EventMessage{EventCode: EventChat}) // Not subscribed.

	if len(got) != 2 || got[0] != EventClientJoin || got[1] != EventClientQuit {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestBlackList(t *testing.T) {
	dispatcher := New(testLogger())
	count := 0
	dispatcher.RegisterListener(EventChatMessage, func(message EventMessage) {
		count++
	})
	dispatcher.SetBlackList([]string{"troll@example.com"})

	dispatcher.Trigger(EventMessage{EventCode: EventChatMessage, UserId: "troll@example.com"})
	dispatcher.Trigger(EventMessage{EventCode: EventChatMessage, UserId: "alice@example.com"})

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func TestIsPrivate(t *testing.T) {
	private := EventMessage{EventCode: EventPrivateMessage}
	public := EventMessage{EventCode: EventChatMessage}
	if !private.IsPrivate() {
		t.Fatal("private message should be private")
	}
	if public.IsPrivate() {
		t.Fatal("channel message should not be private")
	}
}
