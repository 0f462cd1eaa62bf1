package mockclient

import (
	"context"
	"crypto/tls"
	_ "embed"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// New returns a client which sends every request to handler, whatever the
// host in the request url
func New(t testing.TB, handler http.HandlerFunc) *http.Client {
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return net.Dial(network, server.Listener.Addr().String())
			},
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec
			},
		},
	}
}

//go:embed release_search_response.json
var ReleaseSearchResponse []byte
