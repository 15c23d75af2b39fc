package bili

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// browserClient wraps http.Client with the header shape the platform
// expects from a web session. With BILITRACK_UTLS=1 the TLS handshake
// is fingerprinted as Chrome.
type browserClient struct {
	client    *http.Client
	userAgent string
	referer   string
}

func newBrowserClient(userAgent string) *browserClient {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	useUTLS := strings.TrimSpace(os.Getenv("BILITRACK_UTLS")) == "1"
	return &browserClient{
		client: &http.Client{
			Timeout:   20 * time.Second,
			Transport: newTransport(useUTLS),
		},
		userAgent: userAgent,
		referer:   "https://www.bilibili.com/",
	}
}

func (bc *browserClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", bc.userAgent)
	}
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", bc.referer)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	return bc.client.Do(req)
}

func newTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			// http.Transport drives the connection as HTTP/1.1, so h2
			// must not be offered during ALPN.
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
