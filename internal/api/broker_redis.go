package api

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"

    "cvrpga/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so progress
// published by one instance reaches subscribers on any other.
type RedisBroker struct {
    rdb *redis.Client
    mu  sync.Mutex
    ps  map[chan model.ProgressEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, err
    }
    return &RedisBroker{rdb: rdb, ps: map[chan model.ProgressEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(runID string) chan model.ProgressEvent {
    ch := make(chan model.ProgressEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(runID))
    // initial consume to ensure subscription
    if _, err := ps.Receive(ctx); err != nil {
        log.Printf("redis subscribe run_id=%s err=%v", runID, err)
    }
    b.mu.Lock()
    b.ps[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt model.ProgressEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil { continue }
            select {
            case ch <- evt:
            default:
                if !isTerminal(evt.Type) { continue }
                // make room so the terminal event always lands
                select { case <-ch: default: }
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the Pub/Sub; the forwarding goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(runID string, ch chan model.ProgressEvent) {
    b.mu.Lock()
    ps, ok := b.ps[ch]
    delete(b.ps, ch)
    b.mu.Unlock()
    if ok { _ = ps.Close() }
}

func (b *RedisBroker) Publish(runID string, evt model.ProgressEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    if err := b.rdb.Publish(ctx, b.chanName(runID), data).Err(); err != nil {
        log.Printf("redis publish run_id=%s err=%v", runID, err)
    }
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(runID string) string { return "ga:run:" + runID }
