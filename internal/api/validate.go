package api

import (
	"fmt"
	"net/url"
	"strings"

	"cvrpga/internal/model"
	"cvrpga/internal/opt"
)

// algorithms lists what /v1/execute/{algorithm} accepts.
var algorithms = map[string]struct{}{"genetic": {}}

func validateAlgorithm(name string) error {
	if _, ok := algorithms[name]; !ok {
		return fmt.Errorf("unknown algorithm: %q (available: genetic)", name)
	}
	return nil
}

func validateExecuteRequest(req *model.ExecuteRequest) error {
	if _, err := opt.ParseVerbosity(strings.ToLower(req.Verbosity)); err != nil {
		return err
	}
	if p := strings.TrimSpace(string(req.Params)); p != "" && p != "null" && !strings.HasPrefix(p, "{") {
		return fmt.Errorf("params must be a JSON object")
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callback_url must be an absolute http(s) URL")
		}
	}
	return nil
}
