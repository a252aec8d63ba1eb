package api

import (
    "sync"

    "cvrpga/internal/model"
)

// EventBroker fans run progress events out to stream subscribers.
type EventBroker interface {
    Subscribe(runID string) chan model.ProgressEvent
    Unsubscribe(runID string, ch chan model.ProgressEvent)
    Publish(runID string, evt model.ProgressEvent)
}

// Broker is the in-process EventBroker. Slow subscribers drop events
// rather than stall the run.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan model.ProgressEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan model.ProgressEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan model.ProgressEvent {
    ch := make(chan model.ProgressEvent, 16)
    b.mu.Lock()
    if b.subs[runID] == nil { b.subs[runID] = map[chan model.ProgressEvent]struct{}{} }
    b.subs[runID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan model.ProgressEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[runID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, runID) }
    close(ch)
}

func (b *Broker) Publish(runID string, evt model.ProgressEvent) {
    b.mu.Lock()
    m := b.subs[runID]
    for ch := range m {
        if isTerminal(evt.Type) {
            // terminal events must not be lost behind a full buffer
            select {
            case ch <- evt:
            default:
                select { case <-ch: default: }
                select { case ch <- evt: default: }
            }
            continue
        }
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}

func isTerminal(typ string) bool {
    return typ == model.RunCompleted || typ == model.RunFailed || typ == model.RunCanceled
}
