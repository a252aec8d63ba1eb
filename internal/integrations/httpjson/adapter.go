// Package httpjson fetches destinations from a URL serving the same JSON
// object accepted by the destinations parameter.
package httpjson

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"

    "cvrpga/internal/opt"
)

type Adapter struct {
    URL    string
    Client *http.Client
}

func (a Adapter) Name() string { return "http:" + a.URL }

func (a Adapter) Fetch(ctx context.Context) (map[int]opt.Point, error) {
    c := a.Client
    if c == nil { c = &http.Client{Timeout: 10 * time.Second} }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
    if err != nil { return nil, err }
    req.Header.Set("Accept", "application/json")
    resp, err := c.Do(req)
    if err != nil { return nil, err }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode != http.StatusOK { return nil, fmt.Errorf("status %d", resp.StatusCode) }
    var out map[int]opt.Point
    dec := json.NewDecoder(io.LimitReader(resp.Body, 16<<20))
    dec.DisallowUnknownFields()
    if err := dec.Decode(&out); err != nil { return nil, fmt.Errorf("decode destinations: %w", err) }
    return out, nil
}
