package domain

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params is a transformation parameter set: a mapping from name to
// string value. Go maps have no order, but canonicalization always
// re-sorts by key, so an unordered map is sufficient to reproduce the
// canonical form exactly.
type Params map[string]string

// ParamsFromValues builds a Params from a parsed query string. Repeated
// keys keep their first occurrence, matching net/url.Values.Get.
func ParamsFromValues(v url.Values) Params {
	p := make(Params, len(v))
	for k := range v {
		p[k] = v.Get(k)
	}
	return p
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// WithoutSig returns a copy with the "sig" key removed, the form used
// for both signing and cache-key derivation.
func (p Params) WithoutSig() Params {
	c := p.Clone()
	delete(c, "sig")
	return c
}

// Canonical renders the canonical parameter string that Sign and
// Verify authenticate over: params excluding "sig", sorted by key,
// joined as k=v with &.
func (p Params) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == "sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + p[k]
	}
	return strings.Join(pairs, "&")
}

// Sig returns the "sig" value, or "" if absent.
func (p Params) Sig() string {
	return p["sig"]
}

// URL returns the "url" value, or "" if absent.
func (p Params) URL() string {
	return p["url"]
}

// Int looks up key and parses it as a base-10 integer. ok is false if
// the key is absent; err is non-nil if the key is present but not a
// valid integer.
func (p Params) Int(key string) (value int, ok bool, err error) {
	raw, present := p[key]
	if !present {
		return 0, false, nil
	}
	n, parseErr := strconv.Atoi(strings.TrimSpace(raw))
	if parseErr != nil {
		return 0, true, parseErr
	}
	return n, true, nil
}

// Int64 is Int for 64-bit values, used for the "t" expiry field.
func (p Params) Int64(key string) (value int64, ok bool, err error) {
	raw, present := p[key]
	if !present {
		return 0, false, nil
	}
	n, parseErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if parseErr != nil {
		return 0, true, parseErr
	}
	return n, true, nil
}
