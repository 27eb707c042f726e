// Package api exposes the customization commands and queries over HTTP and
// streams state changes over a websocket. Commands never touch the scene or
// the store from the request goroutine; they are posted to the app loop.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/customizer/store"
)

// ErrLoopClosed is returned once the app loop stopped accepting work.
var ErrLoopClosed = errors.New("app loop closed")

// Loop runs fn on the goroutine that owns the scene and returns its error.
type Loop interface {
	Do(ctx context.Context, fn func() error) error
}

// Store is the customization state the API reads and mutates.
type Store interface {
	State() store.State
	Parts() []store.Part
	Part(name string) (store.Part, bool)
	Decals(part string) []store.Decal
	AllDecals() []store.PartDecal
	FindDecal(id string) (store.PartDecal, bool)
	SelectedPart() string
	Subscribe(fn func(store.Event)) (unsubscribe func())

	CreateDecal(part string, d store.Decal) (store.Decal, error)
	UpdateDecal(part, id string, patch store.Patch) error
	MoveDecal(from, to, id string) error
	DeleteDecal(part, id string) error
	SetEditTarget(session *store.EditingSession) error
	SetPlacementMode(on bool)
	SetTransformMode(mode store.TransformMode) error
	SelectPart(name string) error
	SetPartColor(part, hex string) error
	SetPartFabric(part, fabricID string, maps store.FabricMaps, textureScale, normalScale float32) error
}

// Capturer saves a still image of the current view and returns its path.
type Capturer interface {
	Capture() (string, error)
}

// DecalDefaults fills fields left blank by decal create requests.
type DecalDefaults struct {
	Content    string
	FontFamily string
	FontSize   float64
	Color      string
	Scale      float32
	ImageScale float32
}

// Config wires a Handler.
type Config struct {
	Store    Store
	Loop     Loop
	Catalog  *catalog.Catalog // optional
	Capturer Capturer         // optional
	Defaults DecalDefaults

	UploadDir      string
	MaxUploadBytes int64
	MaxFabrics     int
	Logger         *zap.Logger
}

// Handler serves the customization API.
type Handler struct {
	BaseHandler

	store    Store
	loop     Loop
	catalog  *catalog.Catalog
	capturer Capturer
	defaults DecalDefaults

	uploadDir      string
	maxUploadBytes int64
	maxFabrics     int
	log            *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.Defaults.Scale <= 0 {
		cfg.Defaults.Scale = 1
	}
	if cfg.Defaults.ImageScale <= 0 {
		cfg.Defaults.ImageScale = 0.5
	}
	return &Handler{
		store:          cfg.Store,
		loop:           cfg.Loop,
		catalog:        cfg.Catalog,
		capturer:       cfg.Capturer,
		defaults:       cfg.Defaults,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		maxFabrics:     cfg.MaxFabrics,
		log:            log,
	}
}

// RegisterRoutes mounts the API on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", h.Ping)
	rg.GET("/state", h.GetState)

	parts := rg.Group("/parts")
	parts.GET("", h.ListParts)
	parts.GET("/:part", h.GetPart)
	parts.POST("/:part/select", h.SelectPart)
	parts.PUT("/:part/color", h.SetPartColor)
	parts.PUT("/:part/fabric", h.SetPartFabric)
	parts.GET("/:part/decals", h.ListPartDecals)
	parts.POST("/:part/decals", h.CreateDecal)
	parts.POST("/:part/images", h.UploadImage)
	parts.PATCH("/:part/decals/:id", h.UpdateDecal)
	parts.DELETE("/:part/decals/:id", h.DeleteDecal)

	decals := rg.Group("/decals")
	decals.GET("", h.ListDecals)
	decals.GET("/:id", h.GetDecal)
	decals.POST("/:id/move", h.MoveDecal)

	rg.PUT("/editing", h.SetEditTarget)
	rg.DELETE("/editing", h.ClearEditTarget)
	rg.PUT("/placement", h.SetPlacementMode)
	rg.PUT("/transform-mode", h.SetTransformMode)

	rg.GET("/fabrics", h.ListFabrics)
	rg.GET("/fabrics/:id", h.GetFabric)

	rg.POST("/capture", h.Capture)
}

// do posts fn to the app loop on behalf of request c.
func (h *Handler) do(c *gin.Context, fn func() error) error {
	return h.loop.Do(c.Request.Context(), fn)
}

// Ping reports that the API is up.
func (h *Handler) Ping(c *gin.Context) {
	h.Success(c, gin.H{"message": "pong"})
}

// GetState returns a snapshot of the whole customization.
func (h *Handler) GetState(c *gin.Context) {
	h.Success(c, h.store.State())
}

type captureResponse struct {
	Path string `json:"path"`
}

// Capture saves a still image of the current view.
func (h *Handler) Capture(c *gin.Context) {
	if h.capturer == nil {
		h.Error(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "capture is not available in this mode")
		return
	}
	var path string
	err := h.do(c, func() error {
		var err error
		path, err = h.capturer.Capture()
		return err
	})
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.log.Info("capture saved", zap.String("path", path))
	h.Created(c, captureResponse{Path: path})
}
