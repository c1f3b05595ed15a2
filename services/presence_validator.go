//go:generate go run go.uber.org/mock/mockgen -source=presence_validator.go -destination=../mocks/mock_presence_validator.go -package=mocks
package services

import (
	"context"
	"dm-relay/contract"
	"log/slog"
)

type IPresenceValidator interface {
	Validate(ctx context.Context, name string) bool
}

// PresenceValidator asks the registry whether a name is currently registered.
// It fails closed: any error means "not present". Results are never cached.
type PresenceValidator struct {
	registry contract.Registry
	log      *slog.Logger
}

func NewPresenceValidator(registry contract.Registry, log *slog.Logger) *PresenceValidator {
	return &PresenceValidator{registry: registry, log: log}
}

func (v *PresenceValidator) Validate(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	if err := v.registry.Validate(ctx, name); err != nil {
		v.log.Debug("Presence check failed", "name", name, "error", err)
		return false
	}
	return true
}
