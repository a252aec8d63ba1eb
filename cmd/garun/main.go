// Command garun runs one optimizer scenario offline and prints the result as JSON.
package main

import (
    "context"
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "strings"
    "time"

    "cvrpga/internal/integrations"
    "cvrpga/internal/integrations/csvfile"
    "cvrpga/internal/integrations/httpjson"
    "cvrpga/internal/opt"
)

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
    defer stop()
    if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
        if errors.Is(err, flag.ErrHelp) { os.Exit(2) }
        log.Fatalf("garun: %v", err)
    }
}

type output struct {
    opt.RunResult
    Metrics *opt.Metrics `json:"metrics,omitempty"`
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
    fs := flag.NewFlagSet("garun", flag.ContinueOnError)
    var (
        configPath  = fs.String("config", "", "YAML scenario overlaid on the defaults")
        destsFrom   = fs.String("destinations", "", "CSV/TSV file or http(s) URL replacing the scenario destinations")
        verbosity   = fs.String("verbosity", "", "final, first or all (overrides the scenario)")
        seed        = fs.Int64("seed", 0, "random seed; 0 keeps the scenario seed")
        workers     = fs.Int("workers", 0, "fitness evaluation workers; 0 keeps the scenario value")
        timeout     = fs.Duration("timeout", 0, "abort the run after this long")
        withMetrics = fs.Bool("metrics", false, "include run metrics in the output")
        pretty      = fs.Bool("pretty", false, "indent the JSON output")
    )
    if err := fs.Parse(args); err != nil { return err }

    cfg := opt.DefaultConfig()
    if *configPath != "" {
        c, err := opt.LoadConfigYAML(*configPath, cfg)
        if err != nil { return err }
        cfg = c
    }
    if *destsFrom != "" {
        pts, err := integrations.Load(ctx, destinationSource(*destsFrom))
        if err != nil { return err }
        cfg.Destinations = pts
    }
    if *verbosity != "" {
        v, err := opt.ParseVerbosity(*verbosity)
        if err != nil { return err }
        cfg.Verbosity = v
    }
    if *seed != 0 { cfg.Seed = *seed }
    if *workers != 0 { cfg.Workers = *workers }
    if *timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, *timeout)
        defer cancel()
    }

    start := time.Now()
    rep, err := opt.Solve(ctx, cfg, nil)
    if err != nil { return err }
    v, _ := opt.ParseVerbosity(string(cfg.Verbosity))
    out := output{RunResult: rep.Shape(v)}
    if *withMetrics { out.Metrics = &rep.Metrics }

    enc := json.NewEncoder(stdout)
    if *pretty { enc.SetIndent("", "  ") }
    if err := enc.Encode(out); err != nil { return fmt.Errorf("write result: %w", err) }
    log.Printf("generations=%d feasible=%t distance=%.3f seed=%d dur=%dms",
        rep.Metrics.Generations, rep.Final.Feasible, rep.Final.TotalDistance, rep.Final.Seed, time.Since(start).Milliseconds())
    return nil
}

func destinationSource(from string) integrations.DestinationSource {
    if strings.HasPrefix(from, "http://") || strings.HasPrefix(from, "https://") {
        return httpjson.Adapter{URL: from}
    }
    return csvfile.Adapter{Path: from}
}
