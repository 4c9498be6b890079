package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health checks daemon liveness and component health via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", http.Header{"Accept": {"application/json"}})
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var detail struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	_ = json.Unmarshal(body, &detail)

	if jsonOutput {
		return printJSON(map[string]any{"healthy": status == http.StatusOK, "url": baseURL, "checks": detail.Checks})
	}

	fmt.Println()
	if status == http.StatusOK {
		fmt.Printf("  %s  voicememod is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  voicememod returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(detail.Checks))
	for name := range detail.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := detail.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		info := ""
		if e, ok := c["error"].(string); ok {
			info = e
		} else if p, ok := c["path"].(string); ok {
			info = p
		} else if s, ok := c["state"].(string); ok {
			info = s
		} else if d, ok := c["device"].(string); ok {
			info = d
		}
		fmt.Printf("    %s  %-12s %s\n", mark, name, colorize(dim, info))
	}
	fmt.Println()

	return nil
}
