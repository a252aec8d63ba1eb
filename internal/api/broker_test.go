package api

import (
    "testing"
    "time"

    "cvrpga/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    rid := "r1"
    ch := b.Subscribe(rid)

    evt := model.ProgressEvent{Type: "generation", RunID: rid, Generation: 3}
    b.Publish(rid, evt)
    b.Publish("other", model.ProgressEvent{Type: "generation", RunID: "other"})

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Generation != 3 { t.Fatalf("bad payload: %+v", got) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(rid, ch)
    b.Unsubscribe(rid, ch) // second call is a no-op
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        t.Fatal("channel not closed")
    }
}

func TestBrokerKeepsTerminalEventWhenFull(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("r2")
    defer b.Unsubscribe("r2", ch)
    for i := 0; i < 40; i++ {
        b.Publish("r2", model.ProgressEvent{Type: "generation", Generation: i + 1})
    }
    b.Publish("r2", model.ProgressEvent{Type: model.RunCompleted})

    var last model.ProgressEvent
    for len(ch) > 0 {
        last = <-ch
    }
    if last.Type != model.RunCompleted { t.Fatalf("last event %q, want completed", last.Type) }
}
