package integrations_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvrpga/internal/integrations"
	"cvrpga/internal/integrations/csvfile"
	"cvrpga/internal/integrations/httpjson"
	"cvrpga/internal/opt"
)

func TestCSVFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.tsv")
	body := "# depot is implicit at 0,0\nDemand\tID\tX\tY\n2\t1\t1.5\t0\n3\t7\t-1\t4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	pts, err := integrations.Load(context.Background(), csvfile.Adapter{Path: path})
	require.NoError(t, err)
	assert.Equal(t, map[int]opt.Point{
		1: {X: 1.5, Y: 0, Demand: 2},
		7: {X: -1, Y: 4, Demand: 3},
	}, pts)
}

func TestCSVParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "id,x,y\n1,0,0\n",
		"bad id":         "id,x,y,demand\none,0,0,1\n",
		"bad number":     "id,x,y,demand\n1,0,zero,1\n",
		"duplicate id":   "id,x,y,demand\n1,0,0,1\n1,2,2,1\n",
		"short row":      "id,x,y,demand\n1,0,0\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := csvfile.Parse(strings.NewReader(in), ',')
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsInvalidSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,x,y,demand\n1,0,0,-4\n"), 0o600))
	_, err := integrations.Load(context.Background(), csvfile.Adapter{Path: path})
	assert.ErrorIs(t, err, opt.ErrInvalidParameter)

	path = filepath.Join(t.TempDir(), "header-only.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,x,y,demand\n"), 0o600))
	_, err = integrations.Load(context.Background(), csvfile.Adapter{Path: path})
	assert.ErrorIs(t, err, opt.ErrInvalidParameter)
}

func TestHTTPJSONSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stops" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"3":{"x":1,"y":2,"demand":5}}`))
	}))
	defer srv.Close()

	pts, err := integrations.Load(context.Background(), httpjson.Adapter{URL: srv.URL + "/stops", Client: srv.Client()})
	require.NoError(t, err)
	assert.Equal(t, map[int]opt.Point{3: {X: 1, Y: 2, Demand: 5}}, pts)

	_, err = integrations.Load(context.Background(), httpjson.Adapter{URL: srv.URL + "/missing", Client: srv.Client()})
	assert.ErrorContains(t, err, "status 404")
}
