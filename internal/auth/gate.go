// Package auth issues and verifies credentials and gates routes by role.
package auth

import "shop-service/internal/apperr"

// Allowed returns Forbidden unless role is one of allowed.
func Allowed(role string, allowed ...string) error {
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return apperr.Forbidden("You are not allowed access this route")
}
