// Package domain contains core concepts of the direct-messaging system.
// This file defines the ClientIdentity entity and display-name rules.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"dm-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength bounds a display name, in characters.
const MaxNameLength = 64

var validate = validator.New()

// ClientIdentity is the local client's registered name.
// It is replaced only by a new registration.
type ClientIdentity struct {
	Name      string `json:"name"`
	ClientURI string `json:"client_uri,omitempty"`
}

type nameRequest struct {
	Name string `validate:"required,max=64"` // keep in sync with MaxNameLength
}

// NormalizeName trims the name and checks it can be used as a registry key.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validate.Struct(nameRequest{Name: name}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidName, err)
	}
	if strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return "", fmt.Errorf("%w: %q contains spaces or control characters", errors.ErrInvalidName, name)
	}
	return name, nil
}
