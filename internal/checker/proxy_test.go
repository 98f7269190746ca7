package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestConfigureProxy(t *testing.T) {
	tests := []struct {
		name      string
		proxyURL  string
		wantErr   string
		wantProxy bool
		wantDial  bool
	}{
		{name: "empty", proxyURL: "", wantProxy: true},
		{name: "http", proxyURL: "http://proxy.internal:3128", wantProxy: true},
		{name: "https", proxyURL: "https://user:pw@proxy.internal:3129", wantProxy: true},
		{name: "socks5", proxyURL: "socks5://user:pw@127.0.0.1:1080", wantDial: true},
		{name: "socks5h", proxyURL: "socks5h://127.0.0.1:1080", wantDial: true},
		{name: "unsupported scheme", proxyURL: "ftp://proxy:21", wantErr: "unsupported proxy scheme"},
		{name: "missing host", proxyURL: "http://", wantErr: "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &http.Transport{Proxy: http.ProxyFromEnvironment}
			origDial := tr.DialContext

			err := configureProxy(tr, tt.proxyURL)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if (tr.Proxy != nil) != tt.wantProxy {
				t.Fatalf("Proxy set = %v, want %v", tr.Proxy != nil, tt.wantProxy)
			}
			if tt.wantDial && tr.DialContext == nil {
				t.Fatal("expected socks5 DialContext")
			}
			if !tt.wantDial && origDial == nil && tr.DialContext != nil {
				t.Fatal("DialContext should be untouched")
			}
		})
	}
}

func TestHTTPExecutorThroughHTTPProxy(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.String())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"__typename":"Query"}}`))
	}))
	defer proxyServer.Close()

	e := newExecutor(t, "http://graphql.example.invalid/graphql", Options{ProxyURL: proxyServer.URL})
	result, err := e.Execute(context.Background(), "{ __typename }", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := result.String("__typename"); name != "Query" {
		t.Fatalf("expected Query, got %q", name)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "http://graphql.example.invalid/graphql" {
		t.Fatalf("expected proxied absolute URL, got %v", seen)
	}
}
