package integrations

import (
    "context"
    "fmt"

    "cvrpga/internal/opt"
)

// DestinationSource supplies the destination set for an optimizer scenario.
type DestinationSource interface {
    Name() string
    Fetch(ctx context.Context) (map[int]opt.Point, error)
}

// Load fetches from src and checks the result is a usable destination set.
func Load(ctx context.Context, src DestinationSource) (map[int]opt.Point, error) {
    pts, err := src.Fetch(ctx)
    if err != nil { return nil, fmt.Errorf("%s: %w", src.Name(), err) }
    if _, err := opt.NewDestinationSet(pts); err != nil { return nil, fmt.Errorf("%s: %w", src.Name(), err) }
    return pts, nil
}
