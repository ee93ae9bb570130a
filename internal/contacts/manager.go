// Package contacts keeps contact records and their image files consistent.
//
// The record mutation is the commit point of every operation. A new image is stored before the
// record that references it is written, and a superseded image is deleted only after the record
// no longer references it. Failures while deleting superseded images are logged and never
// reported to the caller.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/filestore"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// Repository is the record storage used by the Manager.
type Repository interface {
	Create(ctx context.Context, contact model.Contact) (*model.Contact, error)
	FindByID(ctx context.Context, id int64) (*model.Contact, error)
	FindAll(ctx context.Context) ([]model.Contact, error)
	Update(ctx context.Context, contact model.Contact) (*model.Contact, error)
	Delete(ctx context.Context, id int64) error
}

// FileStore is the image storage used by the Manager.
type FileStore interface {
	Store(ctx context.Context, content io.Reader, originalName string) (string, error)
	Delete(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Fields are the values of a contact that a client can set.
type Fields struct {
	FirstName string  `validate:"required"`
	LastName  string  `validate:"required"`
	Email     string  `validate:"required"`
	Phone     string  `validate:"required"`
	Title     *string
}

// Upload is an image sent along with a create or update request.
type Upload struct {
	// Name is the file name on the client. Only its extension is kept.
	Name    string
	Content io.Reader
}

// cleanupFailures counts blobs that could not be deleted and are left as orphans.
var cleanupFailures = metrics.NewCounter("contacts_blob_cleanup_failures_total")

// Manager implements the contact operations on top of a record repository and a file store.
type Manager struct {
	repo     Repository
	files    FileStore
	log      *zap.Logger
	validate *validator.Validate
}

// NewManager creates a Manager that keeps the records in repo and the images in files.
func NewManager(repo Repository, files FileStore, log *zap.Logger) *Manager {
	return &Manager{
		repo:     repo,
		files:    files,
		log:      log.Named("contacts"),
		validate: validator.New(),
	}
}

// Create validates the fields, stores the upload if there is one and creates the record.
func (m *Manager) Create(ctx context.Context, fields Fields, upload *Upload) (*model.Contact, error) {
	fields, err := m.normalize(fields)
	if err != nil {
		return nil, err
	}
	filename, err := m.store(ctx, upload)
	if err != nil {
		return nil, err
	}
	created, err := m.repo.Create(ctx, newContact(0, fields, filename))
	if err != nil {
		m.rollback(ctx, filename, err, "record could not be created")
		return nil, fmt.Errorf("could not create contact: %w", err)
	}
	return created, nil
}

// FindByID returns the contact with the specified id.
func (m *Manager) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return m.find(ctx, contactID)
}

// FindAll returns all contacts.
func (m *Manager) FindAll(ctx context.Context) ([]model.Contact, error) {
	contacts, err := m.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	return contacts, nil
}

// Update replaces all fields of the contact. If an upload is given it replaces the contact's
// image, otherwise the current image is kept. The previous image is deleted only after the
// record has been updated.
func (m *Manager) Update(ctx context.Context, id string, fields Fields, upload *Upload) (*model.Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	fields, err = m.normalize(fields)
	if err != nil {
		return nil, err
	}
	current, err := m.find(ctx, contactID)
	if err != nil {
		return nil, err
	}
	newFilename, err := m.store(ctx, upload)
	if err != nil {
		return nil, err
	}
	filename := current.Filename
	if newFilename != nil {
		filename = newFilename
	}
	updated, err := m.repo.Update(ctx, newContact(contactID, fields, filename))
	if err != nil {
		m.rollback(ctx, newFilename, err, "record could not be updated")
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{ID: contactID}
		}
		return nil, fmt.Errorf("could not update contact %d: %w", contactID, err)
	}
	if newFilename != nil && current.HasImage() {
		m.discard(ctx, current.Filename, "image was replaced")
	}
	return updated, nil
}

// Delete removes the contact and then its image.
func (m *Manager) Delete(ctx context.Context, id string) error {
	contactID, err := parseID(id)
	if err != nil {
		return err
	}
	current, err := m.find(ctx, contactID)
	if err != nil {
		return err
	}
	err = m.repo.Delete(ctx, contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{ID: contactID}
	}
	if err != nil {
		return fmt.Errorf("could not delete contact %d: %w", contactID, err)
	}
	if current.HasImage() {
		m.discard(ctx, current.Filename, "contact was deleted")
	}
	return nil
}

// OpenImage returns the image of the contact with the specified id together with its file name.
func (m *Manager) OpenImage(ctx context.Context, id string) (io.ReadCloser, string, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, "", err
	}
	current, err := m.find(ctx, contactID)
	if err != nil {
		return nil, "", err
	}
	if !current.HasImage() {
		return nil, "", &NotFoundError{ID: contactID}
	}
	rc, err := m.files.Open(ctx, *current.Filename)
	if errors.Is(err, filestore.ErrNotExist) {
		m.log.Warn("contact references a missing image",
			zap.Int64("id", contactID), zap.String("filename", *current.Filename))
		return nil, "", &NotFoundError{ID: contactID}
	}
	if err != nil {
		return nil, "", fmt.Errorf("could not open image of contact %d: %w", contactID, err)
	}
	return rc, *current.Filename, nil
}

func (m *Manager) find(ctx context.Context, id int64) (*model.Contact, error) {
	contact, err := m.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("could not find contact %d: %w", id, err)
	}
	return contact, nil
}

// store saves the upload and returns its name, or nil if there is no upload.
func (m *Manager) store(ctx context.Context, upload *Upload) (*string, error) {
	if upload == nil {
		return nil, nil
	}
	name, err := m.files.Store(ctx, upload.Content, upload.Name)
	if err != nil {
		return nil, fmt.Errorf("could not store image: %w", err)
	}
	return &name, nil
}

// rollback discards a blob stored for a record change that failed. If the change may have been
// committed anyway the blob is kept, since the record could reference it.
func (m *Manager) rollback(ctx context.Context, filename *string, cause error, reason string) {
	if filename == nil {
		return
	}
	if errors.Is(cause, repository.ErrUnconfirmed) {
		m.log.Warn("keeping image of unconfirmed record change",
			zap.String("filename", *filename), zap.String("reason", reason), zap.Error(cause))
		return
	}
	m.discard(ctx, filename, reason)
}

// discard deletes a blob that no record references anymore. Failures leave an orphan behind and
// are only logged.
func (m *Manager) discard(ctx context.Context, filename *string, reason string) {
	if filename == nil || *filename == "" {
		return
	}
	if err := m.files.Delete(ctx, *filename); err != nil {
		cleanupFailures.Inc()
		m.log.Warn("could not delete image",
			zap.String("filename", *filename), zap.String("reason", reason), zap.Error(err))
	}
}

// normalize trims all fields, turns an empty title into nil and checks the required fields.
func (m *Manager) normalize(fields Fields) (Fields, error) {
	fields.FirstName = strings.TrimSpace(fields.FirstName)
	fields.LastName = strings.TrimSpace(fields.LastName)
	fields.Email = strings.TrimSpace(fields.Email)
	fields.Phone = strings.TrimSpace(fields.Phone)
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		fields.Title = &title
		if title == "" {
			fields.Title = nil
		}
	}

	err := m.validate.Struct(fields)
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return fields, &ValidationError{Field: fieldName(errs[0].Field()), Message: "is required"}
	}
	if err != nil {
		return fields, fmt.Errorf("could not validate contact: %w", err)
	}
	return fields, nil
}

// fieldName converts a Go field name to the name used in requests, e.g. FirstName to firstName.
func fieldName(goName string) string {
	if goName == "" {
		return goName
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}

func parseID(id string) (int64, error) {
	contactID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || contactID < 1 {
		return 0, &ValidationError{Field: "id", Message: "must be a positive number"}
	}
	return contactID, nil
}

func newContact(id int64, fields Fields, filename *string) model.Contact {
	return model.Contact{
		Id:        id,
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Title:     fields.Title,
		Filename:  filename,
	}
}
