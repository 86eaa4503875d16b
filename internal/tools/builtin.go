package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RegisterBuiltins adds the built-in reconnaissance tools and their specs.
func RegisterBuiltins(r *Registry) {
	for _, t := range []Tool{
		&httpProbe{},
		&dnsLookup{},
		&headerScan{},
		&sleepTool{},
		&echoTool{},
	} {
		r.Register(t)
	}
	r.SetSpec(Spec{
		Name:        "http_probe",
		Description: "Fetch a URL and report status, server, and timing",
		ResourceArg: "target",
		Args: []ArgSpec{
			{Name: "target", Type: "string", Required: true, Description: "URL to probe"},
		},
	})
	r.SetSpec(Spec{
		Name:        "dns_lookup",
		Description: "Resolve a hostname to addresses and canonical name",
		ResourceArg: "host",
		Args: []ArgSpec{
			{Name: "host", Type: "string", Required: true, Description: "hostname to resolve"},
		},
	})
	r.SetSpec(Spec{
		Name:        "header_scan",
		Description: "Check a URL's responses for common security headers",
		ResourceArg: "target",
		Args: []ArgSpec{
			{Name: "target", Type: "string", Required: true, Description: "URL to scan"},
		},
	})
	r.SetSpec(Spec{
		Name:        "sleep",
		Description: "Pause for a number of milliseconds",
		Args: []ArgSpec{
			{Name: "duration_ms", Type: "number", Required: true, Description: "time to sleep"},
		},
	})
	r.SetSpec(Spec{
		Name:        "echo",
		Description: "Return the given value unchanged",
		Args: []ArgSpec{
			{Name: "value", Type: "any", Required: true, Description: "value to return"},
		},
	})
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", fmt.Errorf("invalid argument: missing %q", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("invalid argument: %q must be a non-empty string", name)
	}
	return s, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

type httpProbe struct{}

func (t *httpProbe) Name() string        { return "http_probe" }
func (t *httpProbe) Description() string { return "Fetch a URL and report status, server, and timing" }

func (t *httpProbe) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	target, err := stringArg(args, "target")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid argument: %w", err)
	}

	start := time.Now()
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return map[string]interface{}{
		"url":         target,
		"final_url":   resp.Request.URL.String(),
		"status":      resp.StatusCode,
		"server":      resp.Header.Get("Server"),
		"duration_ms": time.Since(start).Milliseconds(),
	}, nil
}

type dnsLookup struct{}

func (t *dnsLookup) Name() string        { return "dns_lookup" }
func (t *dnsLookup) Description() string { return "Resolve a hostname to addresses and canonical name" }

func (t *dnsLookup) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	host, err := stringArg(args, "host")
	if err != nil {
		return nil, err
	}

	var resolver net.Resolver
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}

	addresses := make([]interface{}, len(addrs))
	for i, a := range addrs {
		addresses[i] = a
	}

	result := map[string]interface{}{
		"host":      host,
		"addresses": addresses,
	}
	if cname, err := resolver.LookupCNAME(ctx, host); err == nil {
		result["cname"] = strings.TrimSuffix(cname, ".")
	}
	return result, nil
}

// securityHeaders are the response headers headerScan looks for.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Referrer-Policy",
}

type headerScan struct{}

func (t *headerScan) Name() string { return "header_scan" }
func (t *headerScan) Description() string {
	return "Check a URL's responses for common security headers"
}

func (t *headerScan) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	target, err := stringArg(args, "target")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid argument: %w", err)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	var findings []interface{}
	var missing []interface{}
	for _, h := range securityHeaders {
		value := resp.Header.Get(h)
		findings = append(findings, map[string]interface{}{
			"header":  h,
			"present": value != "",
			"value":   value,
		})
		if value == "" {
			missing = append(missing, h)
		}
	}

	return map[string]interface{}{
		"url":      target,
		"status":   resp.StatusCode,
		"findings": findings,
		"missing":  missing,
	}, nil
}

type sleepTool struct{}

func (t *sleepTool) Name() string        { return "sleep" }
func (t *sleepTool) Description() string { return "Pause for a number of milliseconds" }

func (t *sleepTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var ms float64
	switch v := args["duration_ms"].(type) {
	case float64:
		ms = v
	case int:
		ms = float64(v)
	default:
		return nil, fmt.Errorf("invalid argument: duration_ms must be a number")
	}
	if ms < 0 {
		return nil, fmt.Errorf("invalid argument: duration_ms must be >= 0")
	}

	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return map[string]interface{}{"slept_ms": ms}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type echoTool struct{}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Return the given value unchanged" }

func (t *echoTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	return args["value"], nil
}
