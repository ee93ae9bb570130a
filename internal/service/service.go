// Package service exposes the contacts REST API.
package service

import (
	"context"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
	"gitlab.com/dirk.krummacker/contacts-api/internal/contacts"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

// Contacts are the operations offered by the contact lifecycle manager.
type Contacts interface {
	Create(ctx context.Context, fields contacts.Fields, upload *contacts.Upload) (*model.Contact, error)
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindAll(ctx context.Context) ([]model.Contact, error)
	Update(ctx context.Context, id string, fields contacts.Fields, upload *contacts.Upload) (*model.Contact, error)
	Delete(ctx context.Context, id string) error
	OpenImage(ctx context.Context, id string) (io.ReadCloser, string, error)
}

// Options configure the router.
type Options struct {
	HTTP config.HTTP

	// ImageDir is served under /images if set. Only the local storage backend has one.
	ImageDir string
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(manager Contacts, opts Options, log *zap.Logger) *gin.Engine {
	log = log.Named("http")
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.HTTP.RequestLogging() {
		router.Use(requestLogger(log))
	} else {
		log.Info("turning off HTTP request logging")
	}
	router.Use(requestMetrics())
	router.Use(corsHandler(opts.HTTP.AllowedOrigins))
	router.MaxMultipartMemory = opts.HTTP.MaxUploadBytes

	h := &handler{contacts: manager, log: log, maxUploadBytes: opts.HTTP.MaxUploadBytes}
	api := router.Group("/api/contacts")
	{
		api.GET("", h.findContacts)
		api.GET("/all", h.findContacts)
		api.GET("/:id", h.findContactByID)
		api.GET("/:id/image", h.findContactImage)
		api.POST("", h.createContact)
		api.POST("/create", h.createContact)
		api.PUT("/:id", h.updateContactByID)
		api.PUT("/update/:id", h.updateContactByID)
		api.DELETE("/:id", h.deleteContactByID)
		api.DELETE("/delete/:id", h.deleteContactByID)
	}
	router.GET("/metrics", writeMetrics)
	if opts.ImageDir != "" {
		router.Static("/images", opts.ImageDir)
	}
	return router
}

func corsHandler(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
