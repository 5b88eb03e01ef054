// Package normalize rewrites submitted article URLs before they are exported:
// known shortener hosts are resolved by following their redirect, and known
// paywalled domains are rehosted on a configured bypass mirror.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Resolver follows HTTP redirects for shortened URLs and returns the final
// location. Implemented by integrations/unshorten.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Normalizer applies the shortener and bypass rules. It holds no mutable
// state; Normalize is safe for concurrent use.
type Normalizer struct {
	resolver     Resolver
	mirrorOrigin *url.URL
	bypass       map[string]struct{}
	shorteners   map[string]struct{}
}

// New creates a Normalizer. mirrorOrigin is the bypass-mirror origin
// (e.g. "https://scribe.rip"); bypassDomains are registrable domains
// ("medium.com"); shortenerHosts are exact hosts ("link.medium.com").
func New(resolver Resolver, mirrorOrigin string, bypassDomains, shortenerHosts []string) (*Normalizer, error) {
	if resolver == nil {
		return nil, errors.New("normalize: resolver must not be nil")
	}
	origin, err := url.Parse(strings.TrimSpace(mirrorOrigin))
	if err != nil {
		return nil, fmt.Errorf("normalize: parse mirror origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("normalize: mirror origin %q must include scheme and host", mirrorOrigin)
	}
	n := &Normalizer{
		resolver:     resolver,
		mirrorOrigin: origin,
		bypass:       make(map[string]struct{}, len(bypassDomains)),
		shorteners:   make(map[string]struct{}, len(shortenerHosts)),
	}
	for _, d := range bypassDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			n.bypass[d] = struct{}{}
		}
	}
	for _, h := range shortenerHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			n.shorteners[h] = struct{}{}
		}
	}
	return n, nil
}

// Normalize applies the rules in order: unshorten, then bypass rewrite, then
// pass through unchanged. Only the scheme and host are ever replaced, so a
// path that happens to contain the matched domain is left intact.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize: parse url: %w", err)
	}

	if _, ok := n.shorteners[strings.ToLower(u.Hostname())]; ok {
		resolved, err := n.resolver.Resolve(ctx, rawURL)
		if err != nil {
			return "", fmt.Errorf("normalize: unshorten %q: %w", rawURL, err)
		}
		if u, err = url.Parse(resolved); err != nil {
			return "", fmt.Errorf("normalize: parse resolved url: %w", err)
		}
		rawURL = resolved
	}

	reg, err := RegistrableDomain(rawURL)
	if err != nil {
		// Hosts without a recognized public suffix are simply not rewritten.
		return rawURL, nil
	}
	if _, ok := n.bypass[reg]; !ok {
		return rawURL, nil
	}

	u.Scheme = n.mirrorOrigin.Scheme
	u.Host = n.mirrorOrigin.Host
	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 of the URL's host, lowercased
// ("https://blog.medium.com/x" -> "medium.com").
func RegistrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("normalize: parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("normalize: url %q has no host", rawURL)
	}
	reg, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("normalize: registrable domain of %q: %w", host, err)
	}
	return reg, nil
}
