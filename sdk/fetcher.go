package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
)

type httpKeyFetcher struct {
	providerClient *http.Client
	combinedClient *http.Client
	providerDomain string
}

// NewHttpKeyFetcher fetches provider hosted URLs with the pinned client only, at
// Provider_Trust. Anything else goes through the combined client at Weak_Chain.
func NewHttpKeyFetcher(providerClient, combinedClient *http.Client, providerDomain string) services.RawKeyFetcher {
	return &httpKeyFetcher{
		providerClient: providerClient,
		combinedClient: combinedClient,
		providerDomain: strings.ToLower(providerDomain),
	}
}

func (f *httpKeyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, models.ValidationLevel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, models.WeakChain, fmt.Errorf("could not parse URL %s: %w", rawURL, err)
	}

	client, level := f.combinedClient, models.WeakChain
	if u.Scheme == "https" && InDomain(u.Hostname(), f.providerDomain) {
		client, level = f.providerClient, models.ProviderTrust
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, level, err
	}

	res, err := client.Do(r)
	if err != nil {
		return nil, level, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, level, fmt.Errorf("%w: 404: Key not found. Request: %s", errs.ErrKeyNotFound, rawURL)
	}

	body, err := readBody(res.Body, rawURL)
	if err != nil {
		return nil, level, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, level, &StatusError{StatusCode: res.StatusCode, URL: rawURL, Body: string(body)}
	}

	return body, level, nil
}

// InDomain reports whether host is domain or one of its subdomains.
func InDomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" {
		return false
	}

	return host == domain || strings.HasSuffix(host, "."+domain)
}
