// Package rbac implements the role-based access control engine: registries
// for roles and permissions, user-role bindings, and the authorization
// decision queries gating protected operations.
package rbac

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// Service orchestrates RBAC operations on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

var nameFolder = cases.Fold()

// foldName normalizes a role or permission name for comparison. Names are
// stored as given; uniqueness and matching are case-insensitive.
func foldName(name string) string {
	return nameFolder.String(strings.TrimSpace(name))
}

// validateName rejects empty names and names that parse as a number.
func validateName(kind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: %s name is required", httpx.ErrValidation, kind)
	}
	if _, err := strconv.ParseFloat(name, 64); err == nil {
		return fmt.Errorf("%w: %s name cannot be a number", httpx.ErrValidation, kind)
	}
	return nil
}
