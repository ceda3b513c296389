package handler

import (
	"log/slog"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/server/middleware"
)

// Notifier hands a stored contact to the email pipeline without blocking.
type Notifier interface {
	Dispatch(c *model.Contact) error
}

// ContactHandler serves the contact form and the admin inbox.
type ContactHandler struct {
	store    ContactStore
	notifier Notifier
	tr       *apierr.Translator
	logger   *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(st ContactStore, n Notifier, tr *apierr.Translator, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{store: st, notifier: n, tr: tr, logger: logger}
}

// Create stores a submission, answers the visitor and then queues the
// notification emails. Email failures never reach the client.
// POST /api/contact
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, ok := middleware.Body[model.ContactInput](ctx)
	if !ok {
		h.tr.Write(w, r, apierr.BadRequest("Invalid request body"))
		return
	}

	c := &model.Contact{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   model.NullableString(in.Phone),
		Message: in.Message,
	}
	if err := h.store.CreateContact(ctx, c); err != nil {
		h.tr.Write(w, r, apierr.Internal("Failed to save your message. Please try again.", err))
		return
	}
	h.logger.InfoContext(ctx, "contact received", "id", c.ID)

	apierr.WriteSuccess(w, http.StatusCreated, "Your message has been received! We will contact you soon.",
		model.ContactReceipt{ID: c.ID, Name: c.Name, Email: c.Email})

	if err := h.notifier.Dispatch(c); err != nil {
		h.logger.WarnContext(ctx, "contact notification not queued", "id", c.ID, "error", err)
	}
}

// List returns every submission, newest first.
// GET /api/contact
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.store.ListContacts(r.Context())
	if err != nil {
		h.tr.Write(w, r, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Contacts fetched successfully", contacts)
}

// Get returns one submission.
// GET /api/contact/{id}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetContact(r.Context(), middleware.GetID(r.Context()))
	if err != nil {
		h.tr.Write(w, r, notFound(err, "Contact not found"))
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Contact fetched successfully", c)
}

// Delete removes one submission.
// DELETE /api/contact/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteContact(r.Context(), middleware.GetID(r.Context())); err != nil {
		h.tr.Write(w, r, notFound(err, "Contact not found"))
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Contact deleted successfully", nil)
}
