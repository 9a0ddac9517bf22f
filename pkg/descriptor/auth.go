package descriptor

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthType discriminates the Authentication variants.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
)

// DefaultAPIKeyHeader is used when an api_key config omits header_name.
const DefaultAPIKeyHeader = "X-API-Key"

// Authentication is the closed set of upstream credentials. Only the fields
// belonging to Type are meaningful; the JSON form carries the "type"
// discriminator plus those fields.
type Authentication struct {
	Type       AuthType `json:"type"`
	HeaderName string   `json:"header_name,omitempty"`
	APIKey     string   `json:"api_key,omitempty"`
	Token      string   `json:"token,omitempty"`
	Username   string   `json:"username,omitempty"`
	Password   string   `json:"password,omitempty"`
}

// MarshalJSON emits only the fields of the active variant.
func (a Authentication) MarshalJSON() ([]byte, error) {
	out := map[string]string{"type": string(a.Type)}
	switch a.Type {
	case AuthAPIKey:
		out["header_name"] = a.HeaderName
		out["api_key"] = a.APIKey
	case AuthBearer:
		out["token"] = a.Token
	case AuthBasic:
		out["username"] = a.Username
		out["password"] = a.Password
	default:
		out["type"] = string(AuthNone)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts "key" as an alias of "api_key" and an empty or
// null document as AuthNone.
func (a *Authentication) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Authentication{Type: AuthNone}
		return nil
	}
	type plain Authentication
	aux := struct {
		*plain
		Key string `json:"key,omitempty"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.APIKey == "" && aux.Key != "" {
		a.APIKey = aux.Key
	}
	return nil
}

// Normalize lowercases the discriminator and fills variant defaults.
func (a *Authentication) Normalize() {
	a.Type = AuthType(strings.ToLower(strings.TrimSpace(string(a.Type))))
	if a.Type == "" {
		a.Type = AuthNone
	}
	if a.Type == AuthAPIKey && a.HeaderName == "" {
		a.HeaderName = DefaultAPIKeyHeader
	}
}

// Expand returns a copy with every credential field passed through fn.
func (a Authentication) Expand(fn func(string) string) Authentication {
	a.HeaderName = fn(a.HeaderName)
	a.APIKey = fn(a.APIKey)
	a.Token = fn(a.Token)
	a.Username = fn(a.Username)
	a.Password = fn(a.Password)
	return a
}

// Apply sets the credential headers of the active variant on h. It runs
// after every other header source so its values always win.
func (a Authentication) Apply(h http.Header) {
	switch a.Type {
	case AuthAPIKey:
		h.Set(a.HeaderName, a.APIKey)
	case AuthBearer:
		h.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		h.Set("Authorization", "Basic "+creds)
	case AuthNone, "":
	}
}

// Redacted returns a copy safe to show to callers.
func (a Authentication) Redacted() Authentication {
	const mask = "********"
	if a.APIKey != "" {
		a.APIKey = mask
	}
	if a.Token != "" {
		a.Token = mask
	}
	if a.Password != "" {
		a.Password = mask
	}
	return a
}

func (a Authentication) validate() error {
	switch a.Type {
	case AuthNone:
		return nil
	case AuthAPIKey:
		if strings.TrimSpace(a.HeaderName) == "" {
			return missing("authentication.header_name")
		}
		if a.APIKey == "" {
			return missing("authentication.api_key")
		}
	case AuthBearer:
		if a.Token == "" {
			return missing("authentication.token")
		}
	case AuthBasic:
		if a.Username == "" {
			return missing("authentication.username")
		}
	default:
		return invalid("authentication.type", "must be one of none, api_key, bearer, basic")
	}
	return nil
}
