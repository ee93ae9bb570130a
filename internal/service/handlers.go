package service

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/contacts"
)

// formOverhead is the room left for the text fields of a multipart request besides the image.
const formOverhead = 1 << 20

// contactForm is the request body of create and update requests. It is accepted as multipart
// form, URL encoded form or JSON.
type contactForm struct {
	FirstName string  `form:"firstName" json:"firstName"`
	LastName  string  `form:"lastName"  json:"lastName"`
	Email     string  `form:"email"     json:"email"`
	Phone     string  `form:"phone"     json:"phone"`
	Title     *string `form:"title"     json:"title"`
}

func (f contactForm) fields() contacts.Fields {
	return contacts.Fields{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		Phone:     f.Phone,
		Title:     f.Title,
	}
}

type handler struct {
	contacts       Contacts
	log            *zap.Logger
	maxUploadBytes int64
}

// findContacts responds with the list of all contacts as JSON, ordered by id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts
func (h *handler) findContacts(c *gin.Context) {
	all, err := h.contacts.FindAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, all)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56
func (h *handler) findContactByID(c *gin.Context) {
	contact, err := h.contacts.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// findContactImage responds with the image of the contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56/image --output image.png
func (h *handler) findContactImage(c *gin.Context) {
	rc, filename, err := h.contacts.OpenImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// createContact creates a contact from the submitted fields and the optional image file. It
// responds with the full contact including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts --include --form firstName=Ana --form lastName=Lee --form email=a@x.com --form phone=555-1000 --form image=@a.png
func (h *handler) createContact(c *gin.Context) {
	form, upload, ok := h.bind(c)
	if !ok {
		return
	}
	defer upload.close()

	contact, err := h.contacts.Create(c.Request.Context(), form.fields(), upload.toUpload())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, contact)
}

// updateContactByID replaces all fields of the contact whose ID value matches the id parameter of
// the request URL. If an image file is submitted it replaces the current image, otherwise the
// image is kept. It responds with the new version of the contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56 --request "PUT" --include --form firstName=Ana --form lastName=Lee --form email=a@x.com --form phone=555-2000 --form title=Dr
func (h *handler) updateContactByID(c *gin.Context) {
	form, upload, ok := h.bind(c)
	if !ok {
		return
	}
	defer upload.close()

	contact, err := h.contacts.Update(c.Request.Context(), c.Param("id"), form.fields(), upload.toUpload())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request
// URL, together with its image.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/contacts/56 --request "DELETE"
func (h *handler) deleteContactByID(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// uploadedFile is the image file of a multipart request.
type uploadedFile struct {
	name string
	file multipart.File
}

func (u *uploadedFile) toUpload() *contacts.Upload {
	if u == nil {
		return nil
	}
	return &contacts.Upload{Name: u.name, Content: u.file}
}

func (u *uploadedFile) close() {
	if u != nil {
		u.file.Close()
	}
}

// bind reads the contact fields and the optional image from the request. It responds with BAD
// REQUEST and returns false if the request cannot be read.
func (h *handler) bind(c *gin.Context) (contactForm, *uploadedFile, bool) {
	var form contactForm
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverhead)
	}
	if err := c.ShouldBind(&form); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return form, nil, false
	}
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return form, nil, true
	}

	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, true
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid image"})
		return form, nil, false
	}
	if header.Size > h.maxUploadBytes {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "image is too large"})
		return form, nil, false
	}
	file, err := header.Open()
	if err != nil {
		h.fail(c, err)
		return form, nil, false
	}
	return form, &uploadedFile{name: header.Filename, file: file}, true
}

// fail responds with the status code matching the error. Internal errors are logged and not
// disclosed to the client.
func (h *handler) fail(c *gin.Context, err error) {
	var validationErr *contacts.ValidationError
	var notFoundErr *contacts.NotFoundError
	switch {
	case errors.As(err, &validationErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
