// Package csvfile reads destinations from a delimited text file with an
// id, x, y, demand header (any column order, case-insensitive).
package csvfile

import (
    "context"
    "encoding/csv"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "cvrpga/internal/opt"
)

var required = []string{"id", "x", "y", "demand"}

type Adapter struct {
    Path  string
    Comma rune // 0 picks tab for .tsv files and comma otherwise
}

func (a Adapter) Name() string { return "csv:" + a.Path }

func (a Adapter) Fetch(ctx context.Context) (map[int]opt.Point, error) {
    f, err := os.Open(a.Path)
    if err != nil { return nil, err }
    defer f.Close()
    comma := a.Comma
    if comma == 0 {
        comma = ','
        if strings.EqualFold(filepath.Ext(a.Path), ".tsv") { comma = '\t' }
    }
    return Parse(f, comma)
}

// Parse reads a header row then one destination per row.
func Parse(r io.Reader, comma rune) (map[int]opt.Point, error) {
    cr := csv.NewReader(r)
    cr.Comma = comma
    cr.Comment = '#'
    cr.TrimLeadingSpace = true
    header, err := cr.Read()
    if err != nil {
        if errors.Is(err, io.EOF) { return nil, errors.New("empty file") }
        return nil, err
    }
    col := map[string]int{}
    for i, h := range header { col[strings.ToLower(strings.TrimSpace(h))] = i }
    for _, name := range required {
        if _, ok := col[name]; !ok { return nil, fmt.Errorf("missing %q column", name) }
    }

    out := map[int]opt.Point{}
    for {
        rec, err := cr.Read()
        if errors.Is(err, io.EOF) { break }
        if err != nil { return nil, err }
        line, _ := cr.FieldPos(0)
        id, err := strconv.Atoi(strings.TrimSpace(rec[col["id"]]))
        if err != nil { return nil, fmt.Errorf("line %d: bad id %q", line, rec[col["id"]]) }
        if _, dup := out[id]; dup { return nil, fmt.Errorf("line %d: duplicate id %d", line, id) }
        var vals [3]float64
        for i, name := range required[1:] {
            v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
            if err != nil { return nil, fmt.Errorf("line %d: bad %s %q", line, name, rec[col[name]]) }
            vals[i] = v
        }
        out[id] = opt.Point{X: vals[0], Y: vals[1], Demand: vals[2]}
    }
    return out, nil
}
