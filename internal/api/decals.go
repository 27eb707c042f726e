package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/store"
)

// CreateDecalRequest adds a decal to a part. Blank fields take the
// configured defaults.
type CreateDecalRequest struct {
	ID           string          `json:"id"`
	Kind         store.DecalKind `json:"type" binding:"omitempty,oneof=text image"`
	Content      string          `json:"content"`
	FontFamily   string          `json:"fontFamily"`
	FontSize     float64         `json:"fontSize" binding:"omitempty,gt=0"`
	Color        string          `json:"color"`
	Stroke       *store.Stroke   `json:"stroke"`
	ImageURL     string          `json:"imageUrl"`
	Position     mgl32.Vec3      `json:"position"`
	Rotation     mgl32.Vec3      `json:"rotation"`
	Scale        *mgl32.Vec3     `json:"scale"`
	TargetMesh   string          `json:"targetMesh"`
	TargetMeshID string          `json:"targetMeshId"`
}

// MoveRequest re-parents a decal onto another part.
type MoveRequest struct {
	To string `json:"to" binding:"required"`
}

// EditRequest selects the decal being edited.
type EditRequest struct {
	Part    string `json:"part" binding:"required"`
	DecalID string `json:"decalId" binding:"required"`
}

// PlacementRequest arms or disarms click-to-place.
type PlacementRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// TransformModeRequest selects the gadget mode.
type TransformModeRequest struct {
	Mode store.TransformMode `json:"mode" binding:"required,oneof=translate rotate scale"`
}

// ListDecals returns every decal with its owning part.
func (h *Handler) ListDecals(c *gin.Context) {
	h.Success(c, h.store.AllDecals())
}

// GetDecal returns one decal by id.
func (h *Handler) GetDecal(c *gin.Context) {
	pd, ok := h.store.FindDecal(c.Param("id"))
	if !ok {
		h.NotFound(c, fmt.Sprintf("decal %q not found", c.Param("id")))
		return
	}
	h.Success(c, pd)
}

// ListPartDecals returns the decals of one part.
func (h *Handler) ListPartDecals(c *gin.Context) {
	part := c.Param("part")
	if _, ok := h.store.Part(part); !ok {
		h.NotFound(c, fmt.Sprintf("part %q not found", part))
		return
	}
	h.Success(c, h.store.Decals(part))
}

// CreateDecal adds a text or image decal and makes it the edit target.
func (h *Handler) CreateDecal(c *gin.Context) {
	var req CreateDecalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Kind == store.KindImage && req.ImageURL == "" {
		h.Error(c, http.StatusBadRequest, ErrCodeValidation, "image decals need an imageUrl")
		return
	}
	h.create(c, c.Param("part"), h.decalFrom(req))
}

func (h *Handler) decalFrom(req CreateDecalRequest) store.Decal {
	d := store.Decal{
		ID:           req.ID,
		Kind:         req.Kind,
		Content:      req.Content,
		FontFamily:   req.FontFamily,
		FontSize:     req.FontSize,
		Color:        req.Color,
		Stroke:       req.Stroke,
		ImageURL:     req.ImageURL,
		Position:     req.Position,
		Rotation:     req.Rotation,
		TargetMesh:   req.TargetMesh,
		TargetMeshID: req.TargetMeshID,
	}
	s := h.defaults.Scale
	if d.Kind == "" {
		d.Kind = store.KindText
	}
	if d.Kind == store.KindText {
		d.Content = cmpOr(d.Content, h.defaults.Content)
		d.FontFamily = cmpOr(d.FontFamily, h.defaults.FontFamily)
		d.Color = cmpOr(d.Color, h.defaults.Color)
		if d.FontSize == 0 {
			d.FontSize = h.defaults.FontSize
		}
	} else {
		s = h.defaults.ImageScale
	}
	d.Scale = mgl32.Vec3{s, s, s}
	if req.Scale != nil {
		d.Scale = *req.Scale
	}
	if d.ID == "" {
		prefix := "txt"
		if d.Kind == store.KindImage {
			prefix = "img"
		}
		d.ID = store.NewDecalID(prefix)
	}
	return d
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (h *Handler) create(c *gin.Context, part string, d store.Decal) {
	var created store.Decal
	err := h.do(c, func() error {
		var err error
		created, err = h.store.CreateDecal(part, d)
		return err
	})
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.Created(c, store.PartDecal{Part: part, Decal: created})
}

// UpdateDecal applies a partial update.
func (h *Handler) UpdateDecal(c *gin.Context) {
	var patch store.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	part, id := c.Param("part"), c.Param("id")
	if err := h.do(c, func() error { return h.store.UpdateDecal(part, id, patch) }); err != nil {
		h.Fail(c, err)
		return
	}
	pd, _ := h.store.FindDecal(id)
	h.Success(c, pd)
}

// DeleteDecal removes a decal.
func (h *Handler) DeleteDecal(c *gin.Context) {
	part, id := c.Param("part"), c.Param("id")
	if err := h.do(c, func() error { return h.store.DeleteDecal(part, id) }); err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// MoveDecal moves a decal to another part.
func (h *Handler) MoveDecal(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	err := h.do(c, func() error {
		pd, ok := h.store.FindDecal(id)
		if !ok {
			return fmt.Errorf("move %s: %w", id, store.ErrUnknownDecal)
		}
		return h.store.MoveDecal(pd.Part, req.To, id)
	})
	if err != nil {
		h.Fail(c, err)
		return
	}
	pd, _ := h.store.FindDecal(id)
	h.Success(c, pd)
}

// SetEditTarget selects the decal being edited.
func (h *Handler) SetEditTarget(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	session := &store.EditingSession{Part: req.Part, DecalID: req.DecalID}
	if err := h.do(c, func() error { return h.store.SetEditTarget(session) }); err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// ClearEditTarget finishes editing.
func (h *Handler) ClearEditTarget(c *gin.Context) {
	if err := h.do(c, func() error { return h.store.SetEditTarget(nil) }); err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// SetPlacementMode arms or disarms click-to-place.
func (h *Handler) SetPlacementMode(c *gin.Context) {
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	on := *req.Enabled
	err := h.do(c, func() error {
		h.store.SetPlacementMode(on)
		return nil
	})
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// SetTransformMode selects what the gadget manipulates.
func (h *Handler) SetTransformMode(c *gin.Context) {
	var req TransformModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if err := h.do(c, func() error { return h.store.SetTransformMode(req.Mode) }); err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// sniffLen covers the magic numbers filetype knows about.
const sniffLen = 261

// UploadImage stores an uploaded image and adds it to the part as an image
// decal. The new decal becomes the edit target, so the next click on the
// product seats it.
func (h *Handler) UploadImage(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload exceeds size limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload exceeds size limit")
			return
		}
		h.BadRequest(c, "missing file field")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.Fail(c, err)
		return
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	f.Close()
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.BadRequest(c, "unreadable upload")
		return
	}
	kind, err := filetype.Image(head[:n])
	if err != nil || kind == filetype.Unknown {
		h.Error(c, http.StatusUnsupportedMediaType, ErrCodeUnsupported, "upload is not a recognised image")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.Fail(c, fmt.Errorf("creating upload dir: %w", err))
		return
	}
	dst, err := filepath.Abs(filepath.Join(h.uploadDir, uuid.NewString()+"."+kind.Extension))
	if err != nil {
		h.Fail(c, err)
		return
	}
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		h.Fail(c, fmt.Errorf("saving upload: %w", err))
		return
	}
	h.log.Info("image uploaded",
		zap.String("file", fh.Filename),
		zap.String("type", kind.MIME.Value),
		zap.String("path", dst))

	part := c.Param("part")
	d := h.decalFrom(CreateDecalRequest{Kind: store.KindImage, ImageURL: dst, TargetMesh: part})
	h.create(c, part, d)
}
