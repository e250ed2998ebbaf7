package auth

import (
	"net/url"
	"strings"

	"dinlipi/internal/errs"
)

// redirectPolicy holds the origins that reset and OAuth links may point at.
type redirectPolicy struct {
	origins map[string]struct{}
}

func newRedirectPolicy(publicURL string, allow []string) redirectPolicy {
	p := redirectPolicy{origins: map[string]struct{}{}}
	for _, raw := range append([]string{publicURL}, allow...) {
		if o, ok := originOf(raw); ok {
			p.origins[o] = struct{}{}
		}
	}
	return p
}

func originOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// check accepts an empty target or an absolute URL on an allowed origin with
// no credentials and no fragment.
func (p redirectPolicy) check(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errs.Invalid("redirect_to", "must be an absolute URL")
	}
	if u.User != nil || u.Fragment != "" {
		return errs.Invalid("redirect_to", "must not carry credentials or a fragment")
	}
	o, _ := originOf(raw)
	if _, ok := p.origins[o]; !ok {
		return errs.Invalid("redirect_to", "host is not allowed")
	}
	return nil
}
