package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/ui"
)

var ErrFormClosed = errors.New("no create or edit form is open")

type Entity interface {
	EntityID() int64
}

// ResourceAPI is the CRUD surface of one collection. *client.Resource[T]
// implements it.
type ResourceAPI[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, form any) (*T, error)
	Update(ctx context.Context, id int64, form any) (*T, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64, field string) (*T, error)
}

// ResourceView is one admin screen over a collection: a list, a form that
// is either creating or editing, and row actions. Every mutation refetches
// the list.
type ResourceView[T Entity] struct {
	api      ResourceAPI[T]
	label    string
	confirm  ui.Confirmer
	notifier ui.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	items    []T
	formOpen bool
	editing  *T
}

func NewResourceView[T Entity](api ResourceAPI[T], label string, confirm ui.Confirmer, notifier ui.Notifier, logger *zap.Logger) *ResourceView[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceView[T]{
		api:      api,
		label:    label,
		confirm:  confirm,
		notifier: notifier,
		logger:   logger,
	}
}

func (v *ResourceView[T]) List(ctx context.Context) ([]T, error) {
	items, err := v.api.List(ctx)
	if err != nil {
		v.logger.Warn("list resources", zap.String("resource", v.label), zap.Error(err))
		v.notifier.Error(client.UserMessage(err))
		return nil, err
	}

	v.mu.Lock()
	v.items = items
	v.mu.Unlock()
	return items, nil
}

func (v *ResourceView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

func (v *ResourceView[T]) OpenCreate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = true
	v.editing = nil
}

func (v *ResourceView[T]) OpenEdit(entity T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = true
	v.editing = &entity
}

func (v *ResourceView[T]) CloseForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = false
	v.editing = nil
}

// Editing returns the entity under edit, if the open form is an edit form.
func (v *ResourceView[T]) Editing() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.editing == nil {
		var zero T
		return zero, false
	}
	return *v.editing, true
}

// Submit creates or updates depending on which form is open. On a 422 the
// form stays open; the field errors are on the returned *client.APIError.
func (v *ResourceView[T]) Submit(ctx context.Context, form any) (*T, error) {
	v.mu.Lock()
	open, editing := v.formOpen, v.editing
	v.mu.Unlock()
	if !open {
		return nil, ErrFormClosed
	}

	var (
		saved *T
		err   error
	)
	if editing != nil {
		saved, err = v.api.Update(ctx, (*editing).EntityID(), form)
	} else {
		saved, err = v.api.Create(ctx, form)
	}
	if err != nil {
		v.fail("save", err)
		return nil, err
	}

	v.CloseForm()
	if editing != nil {
		v.notifier.Success(fmt.Sprintf("%s mis à jour.", v.label))
	} else {
		v.notifier.Success(fmt.Sprintf("%s créé.", v.label))
	}
	v.refetch(ctx)
	return saved, nil
}

// Delete asks for confirmation first. It reports false when the user
// declined.
func (v *ResourceView[T]) Delete(ctx context.Context, id int64) (bool, error) {
	if !v.confirm.Confirm(fmt.Sprintf("Supprimer %s #%d ?", v.label, id)) {
		return false, nil
	}

	if err := v.api.Delete(ctx, id); err != nil {
		v.fail("delete", err)
		return false, err
	}

	v.notifier.Success(fmt.Sprintf("%s supprimé.", v.label))
	v.refetch(ctx)
	return true, nil
}

func (v *ResourceView[T]) Toggle(ctx context.Context, id int64, field string) (*T, error) {
	updated, err := v.api.Toggle(ctx, id, field)
	if err != nil {
		v.fail("toggle", err)
		return nil, err
	}

	v.notifier.Success(fmt.Sprintf("%s mis à jour.", v.label))
	v.refetch(ctx)
	return updated, nil
}

// refetch reloads the list; List already reports its own failures.
func (v *ResourceView[T]) refetch(ctx context.Context) {
	v.List(ctx)
}

func (v *ResourceView[T]) fail(action string, err error) {
	v.logger.Warn(action+" resource", zap.String("resource", v.label), zap.Error(err))
	v.notifier.Error(client.UserMessage(err))
}
