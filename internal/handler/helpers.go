package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/store"
	"github.com/hijo-electricity/hijo/internal/upload"
)

// ProjectStore is the persistence the project handlers need.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id int64) error
}

// ContactStore is the persistence the contact handlers need.
type ContactStore interface {
	CreateContact(ctx context.Context, c *model.Contact) error
	ListContacts(ctx context.Context) ([]model.Contact, error)
	GetContact(ctx context.Context, id int64) (*model.Contact, error)
	DeleteContact(ctx context.Context, id int64) error
}

// Images removes stored project pictures. Both calls are best effort.
type Images interface {
	Discard(ctx context.Context, f *upload.File)
	Remove(ctx context.Context, publicPath string)
}

// notFound maps store.ErrNotFound to a 404 carrying message and passes any
// other error through for the translator.
func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.Wrap(err, apierr.KindNotFound, http.StatusNotFound, message)
	}
	return err
}
