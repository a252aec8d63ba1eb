package api

import (
    "context"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"

    "cvrpga/internal/model"
)

func recvEvent(t *testing.T, ch chan model.ProgressEvent) model.ProgressEvent {
    t.Helper()
    select {
    case evt, ok := <-ch:
        if !ok { t.Fatal("channel closed") }
        return evt
    case <-time.After(2 * time.Second):
        t.Fatal("timed out waiting for event")
    }
    return model.ProgressEvent{}
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
    mr := miniredis.RunT(t)
    b, err := NewRedisBroker("redis://" + mr.Addr())
    if err != nil { t.Fatalf("NewRedisBroker: %v", err) }
    defer b.Close()
    if err := b.Ping(context.Background()); err != nil { t.Fatalf("ping: %v", err) }

    ch := b.Subscribe("r1")
    other := b.Subscribe("r2")
    b.Publish("r1", model.ProgressEvent{Type: "generation", RunID: "r1", Generation: 1})
    b.Publish("r1", model.ProgressEvent{Type: model.RunCompleted, RunID: "r1"})

    if evt := recvEvent(t, ch); evt.Type != "generation" || evt.Generation != 1 { t.Fatalf("got %+v", evt) }
    if evt := recvEvent(t, ch); evt.Type != model.RunCompleted { t.Fatalf("got %+v", evt) }
    select {
    case evt := <-other:
        t.Fatalf("r2 subscriber got %+v", evt)
    default:
    }

    b.Unsubscribe("r1", ch)
    b.Unsubscribe("r1", ch) // idempotent
    deadline := time.After(2 * time.Second)
    for {
        select {
        case _, ok := <-ch:
            if !ok {
                b.Unsubscribe("r2", other)
                return
            }
        case <-deadline:
            t.Fatal("channel not closed after unsubscribe")
        }
    }
}

func TestRedisBrokerUnavailable(t *testing.T) {
    mr := miniredis.RunT(t)
    addr := mr.Addr()
    mr.Close()
    if _, err := NewRedisBroker("redis://" + addr); err == nil { t.Fatal("expected error for unreachable redis") }
    if _, err := NewRedisBroker("not a url"); err == nil { t.Fatal("expected error for bad url") }
}
