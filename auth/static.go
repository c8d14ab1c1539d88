package auth

import (
	"context"
	"encoding/base64"
	"maps"
)

// Basic sends HTTP basic credentials.
type Basic struct {
	Username string
	Password string
}

// Attach implements Provider.
func (b Basic) Attach(context.Context) (Credentials, error) {
	raw := b.Username + ":" + b.Password
	return Credentials{Headers: map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)),
	}}, nil
}

// Bearer sends a fixed bearer token.
type Bearer struct {
	Token string
}

// Attach implements Provider.
func (b Bearer) Attach(context.Context) (Credentials, error) {
	return Credentials{Headers: map[string]string{"Authorization": "Bearer " + b.Token}}, nil
}

// APIKey sends a key either as a header or, with InQuery set, as a query item.
type APIKey struct {
	Name    string
	Value   string
	InQuery bool
}

// Attach implements Provider.
func (k APIKey) Attach(context.Context) (Credentials, error) {
	if k.InQuery {
		return Credentials{Query: []QueryItem{{Key: k.Name, Value: k.Value}}}, nil
	}
	return Credentials{Headers: map[string]string{k.Name: k.Value}}, nil
}

// Headers is a Provider returning a fixed header set.
type Headers map[string]string

// Attach implements Provider.
func (h Headers) Attach(context.Context) (Credentials, error) {
	return Credentials{Headers: maps.Clone(map[string]string(h))}, nil
}
