package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
	"skynotes/internal/domain/repositories"
)

// Binding describes how one entity kind is stored, validated and navigated.
type Binding[T any] interface {
	// Noun names the entity in messages ("note").
	Noun() string
	Collection() string
	Decode(doc repositories.RawDocument) (T, error)

	ID(v T) string
	Owner(v T) string
	// Assign returns v with the generated id and the creating owner set.
	Assign(v T, id, ownerID string) T

	// Validate checks v locally; no store access.
	Validate(v T) error
	// Authorize checks references to other entities (a note's folder) against the
	// session. May read the store.
	Authorize(ctx context.Context, session models.Session, v T) error

	CreateFields(v T) repositories.Fields
	UpdateFields(v T) repositories.Fields

	// Destination is where the UI goes after a save or delete of v.
	Destination(v T) string
	DeletePrompt() string
}

// Controller holds the form state for one entity. Operations are serialized; the
// accessors may be read at any time.
type Controller[T any] struct {
	store   repositories.DocumentStore
	binding Binding[T]
	session models.Session
	logger  *slog.Logger

	op sync.Mutex // serializes operations

	mu          sync.Mutex
	state       State
	id          string
	values      T // what the form shows, including unsaved edits
	confirmed   T // last values known to be stored
	message     string
	destination string
}

func NewController[T any](store repositories.DocumentStore, binding Binding[T], session models.Session, logger *slog.Logger) *Controller[T] {
	return &Controller[T]{
		store:   store,
		binding: binding,
		session: session,
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Values returns what the form currently shows.
func (c *Controller[T]) Values() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values
}

// Message is the user-displayable outcome of the last failed operation, or empty.
func (c *Controller[T]) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Destination is the navigation target after Saved or Deleted, else empty.
func (c *Controller[T]) Destination() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destination
}

// ID returns the id of the entity being edited; empty for a new one.
func (c *Controller[T]) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Controller[T]) set(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Reset returns to an empty create form.
func (c *Controller[T]) Reset() {
	c.op.Lock()
	defer c.op.Unlock()

	var zero T
	c.set(func() {
		c.state = Idle
		c.id = ""
		c.values = zero
		c.confirmed = zero
		c.message = ""
		c.destination = ""
	})
}

// Load fetches an entity for editing. A missing entity and one owned by someone else
// both end in PermissionDenied with the same message.
func (c *Controller[T]) Load(ctx context.Context, id string) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.set(func() {
		c.state = Loading
		c.id = id
		c.message = ""
		c.destination = ""
	})

	doc, err := c.store.Get(ctx, c.binding.Collection(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.deny(id)
		}
		c.logger.Error("load failed",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		err = domain.NewRemoteError("get", err)
		c.set(func() {
			c.state = LoadError
			c.message = fmt.Sprintf("Error fetching %s data. Please try again.", c.binding.Noun())
		})
		return err
	}

	v, err := c.binding.Decode(*doc)
	if err != nil {
		c.logger.Error("stored document is malformed",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		c.set(func() {
			c.state = LoadError
			c.message = domain.UserMessage(err)
		})
		return err
	}

	if !c.session.Owns(c.binding.Owner(v)) {
		return c.deny(id)
	}

	c.set(func() {
		c.state = Loaded
		c.values = v
		c.confirmed = v
	})
	return nil
}

func (c *Controller[T]) deny(id string) error {
	c.logger.Warn("edit denied",
		"collection", c.binding.Collection(),
		"id", id,
		"user_id", c.session.UserID,
	)
	var zero T
	c.set(func() {
		c.state = PermissionDenied
		c.values = zero
		c.confirmed = zero
		c.message = domain.PermissionDeniedMessage
	})
	return &domain.ForbiddenError{Message: domain.PermissionDeniedMessage}
}

// Edit replaces the form values. Id and owner of a loaded entity are kept.
func (c *Controller[T]) Edit(v T) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.editable() {
		return ErrBusy
	}
	if c.id != "" {
		v = c.binding.Assign(v, c.id, c.binding.Owner(c.confirmed))
	}
	c.values = v
	c.message = ""
	return nil
}

// Submit creates the entity (no id) or updates it. Validation failures and permission
// failures never reach the store. Remote failures leave the form editable with a
// message; an update's optimistic values are rolled back to the stored ones.
func (c *Controller[T]) Submit(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	state, id, values, confirmed := c.state, c.id, c.values, c.confirmed
	c.mu.Unlock()

	if !state.editable() {
		return ErrBusy
	}

	fail := func(err error) error {
		c.set(func() { c.message = domain.UserMessage(err) })
		return err
	}

	if !c.session.SignedIn() {
		return fail(&domain.UnauthorizedError{Message: "sign in required"})
	}
	if err := c.binding.Validate(values); err != nil {
		return fail(&domain.ValidationError{Message: err.Error()})
	}
	if id != "" && !c.session.Owns(c.binding.Owner(confirmed)) {
		return c.deny(id)
	}
	if err := c.binding.Authorize(ctx, c.session, values); err != nil {
		return fail(err)
	}

	c.set(func() {
		c.state = Saving
		c.message = ""
	})

	if id == "" {
		return c.create(ctx, values)
	}
	return c.update(ctx, id, values, confirmed)
}

func (c *Controller[T]) create(ctx context.Context, values T) error {
	values = c.binding.Assign(values, "", c.session.UserID)

	newID, err := c.store.Create(ctx, c.binding.Collection(), c.binding.CreateFields(values))
	if err != nil {
		c.logger.Error("create failed",
			"collection", c.binding.Collection(),
			"user_id", c.session.UserID,
			"error", err,
		)
		c.set(func() {
			c.state = Idle
			c.message = c.saveMessage(err)
		})
		return domain.NewRemoteError("create", err)
	}

	values = c.binding.Assign(values, newID, c.session.UserID)
	values = c.reread(ctx, newID, values)
	c.logger.Info("created",
		"collection", c.binding.Collection(),
		"id", newID,
		"user_id", c.session.UserID,
	)
	c.set(func() {
		c.state = Saved
		c.id = newID
		c.values = values
		c.confirmed = values
		c.destination = c.binding.Destination(values)
	})
	return nil
}

func (c *Controller[T]) update(ctx context.Context, id string, values, confirmed T) error {
	if err := c.store.Update(ctx, c.binding.Collection(), id, c.binding.UpdateFields(values)); err != nil {
		c.logger.Error("update failed",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		if errors.Is(err, domain.ErrNotFound) {
			return c.deny(id)
		}
		c.set(func() {
			c.state = Loaded
			c.values = confirmed
			c.message = c.saveMessage(err)
		})
		return domain.NewRemoteError("update", err)
	}

	values = c.reread(ctx, id, values)
	c.logger.Info("updated",
		"collection", c.binding.Collection(),
		"id", id,
	)
	c.set(func() {
		c.state = Saved
		c.values = values
		c.confirmed = values
		c.destination = c.binding.Destination(values)
	})
	return nil
}

// reread fetches the entity after a successful write so the form carries the
// store-assigned timestamps. The write already happened, so a failed read only logs
// and keeps the submitted values.
func (c *Controller[T]) reread(ctx context.Context, id string, submitted T) T {
	doc, err := c.store.Get(ctx, c.binding.Collection(), id)
	if err != nil {
		c.logger.Warn("reread after save failed",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		return submitted
	}
	v, err := c.binding.Decode(*doc)
	if err != nil {
		c.logger.Warn("reread after save returned a malformed document",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		return submitted
	}
	return v
}

func (c *Controller[T]) saveMessage(err error) string {
	if errors.Is(err, domain.ErrForbidden) {
		return domain.PermissionDeniedMessage
	}
	return fmt.Sprintf("Error saving %s. Please try again.", c.binding.Noun())
}

// Delete removes a loaded entity after confirm accepts the prompt. A declined prompt
// returns ErrCancelled and changes nothing.
func (c *Controller[T]) Delete(ctx context.Context, confirm func(prompt string) bool) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	state, id, confirmed := c.state, c.id, c.confirmed
	c.mu.Unlock()

	if state != Loaded || id == "" {
		return ErrBusy
	}
	if !c.session.Owns(c.binding.Owner(confirmed)) {
		return c.deny(id)
	}

	c.set(func() { c.state = ConfirmingDelete })
	if confirm == nil || !confirm(c.binding.DeletePrompt()) {
		c.set(func() { c.state = Loaded })
		return ErrCancelled
	}

	c.set(func() {
		c.state = Deleting
		c.message = ""
	})

	if err := c.store.Delete(ctx, c.binding.Collection(), id); err != nil {
		c.logger.Error("delete failed",
			"collection", c.binding.Collection(),
			"id", id,
			"error", err,
		)
		c.set(func() {
			c.state = Loaded
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
				c.message = domain.PermissionDeniedMessage
			} else {
				c.message = fmt.Sprintf("Error deleting %s. Please try again.", c.binding.Noun())
			}
		})
		return domain.NewRemoteError("delete", err)
	}

	c.logger.Info("deleted",
		"collection", c.binding.Collection(),
		"id", id,
	)
	c.set(func() {
		c.state = Deleted
		c.destination = c.binding.Destination(confirmed)
	})
	return nil
}
