package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	"github.com/kkdai/youtube/v2"
	"golang.org/x/net/proxy"
)

const httpTimeout = 15 * time.Second

// newYouTubeClient builds a kkdai client, routed through proxyStr when set.
// http, https, socks5 and socks4 proxies are supported; an unusable proxy
// falls back to a direct client.
func newYouTubeClient(proxyStr string, log *slog.Logger) *youtube.Client {
	direct := &youtube.Client{HTTPClient: &http.Client{Timeout: httpTimeout}}
	if proxyStr == "" {
		return direct
	}

	transport, err := proxyTransport(proxyStr)
	if err != nil {
		log.Warn("Proxy unusable, going direct", slog.String("proxy", proxyStr), slog.Any("err", err))
		return direct
	}
	log.Info("YouTube client uses proxy", slog.String("proxy", proxyStr))
	return &youtube.Client{HTTPClient: &http.Client{Timeout: httpTimeout, Transport: transport}}
}

func proxyTransport(proxyStr string) (*http.Transport, error) {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy format: %w", err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil

	case "socks5":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			auth = &proxy.Auth{User: proxyURL.User.Username()}
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		return dialerTransport(dialer), nil

	case "socks4", "socks4a":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks4 dialer: %w", err)
		}
		return dialerTransport(dialer), nil

	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
}

func dialerTransport(d proxy.Dialer) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := d.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return d.Dial(network, addr)
		},
	}
}
