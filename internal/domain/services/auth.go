package services

import "skynotes/internal/domain/models"

// IdentityProvider reports the current identity and announces changes to it.
// Owner-scoped components take the session explicitly; only components that must follow
// sign-in and sign-out over time (live subscriptions on a long-lived connection) take an
// IdentityProvider.
type IdentityProvider interface {
	// Current returns the signed-in session, or the zero Session when signed out.
	Current() models.Session

	// OnChange registers fn to be called with the new session after every change.
	// The returned function removes the registration.
	OnChange(fn func(models.Session)) (cancel func())
}
