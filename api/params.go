package api

import (
	"net/url"
	"sort"
	"strconv"
)

// Well-known parameter names shared by every endpoint.
const (
	ParamAPIKey   = "api_key"
	ParamUserKey  = "user_key"
	ParamClientID = "client_id"
)

// Params maps request parameter names to their string-encoded values.
// Optional values are only added when set, so an absent key means the
// caller did not supply the value.
type Params map[string]string

// NewParams returns a Params holding the user key.
func NewParams(userKey string) Params {
	return Params{ParamUserKey: userKey}
}

// Set stores a string value.
func (p Params) Set(key, value string) Params {
	p[key] = value
	return p
}

// SetInt64 stores an integer value.
func (p Params) SetInt64(key string, value int64) Params {
	p[key] = strconv.FormatInt(value, 10)
	return p
}

// OptString stores *value if value is non-nil.
func (p Params) OptString(key string, value *string) Params {
	if value != nil {
		p[key] = *value
	}
	return p
}

// OptInt stores *value if value is non-nil. Zero is sent.
func (p Params) OptInt(key string, value *int) Params {
	if value != nil {
		p[key] = strconv.Itoa(*value)
	}
	return p
}

// OptInt64 stores *value if value is non-nil. Zero is sent.
func (p Params) OptInt64(key string, value *int64) Params {
	if value != nil {
		p[key] = strconv.FormatInt(*value, 10)
	}
	return p
}

// OptBool stores *value as "true" or "false" if value is non-nil.
func (p Params) OptBool(key string, value *bool) Params {
	if value != nil {
		p[key] = strconv.FormatBool(*value)
	}
	return p
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Values converts p to url.Values for form encoding.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Redacted returns a copy of p with credentials masked. Used for logs and
// the call journal.
func (p Params) Redacted() Params {
	out := p.Clone()
	for _, k := range []string{ParamAPIKey, ParamUserKey} {
		if _, ok := out[k]; ok {
			out[k] = "***"
		}
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
