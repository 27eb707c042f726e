package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/customizer/store"
)

// ColorRequest sets a part's base colour.
type ColorRequest struct {
	Color string `json:"color" binding:"required"`
}

// FabricRequest assigns a catalog fabric to a part. An empty FabricID
// removes the fabric.
type FabricRequest struct {
	FabricID string `json:"fabricId"`
}

// ListParts returns every part with its appearance and decals.
func (h *Handler) ListParts(c *gin.Context) {
	h.Success(c, h.store.Parts())
}

// GetPart returns one part.
func (h *Handler) GetPart(c *gin.Context) {
	p, ok := h.store.Part(c.Param("part"))
	if !ok {
		h.NotFound(c, fmt.Sprintf("part %q not found", c.Param("part")))
		return
	}
	h.Success(c, p)
}

// SelectPart makes a part the one being customized.
func (h *Handler) SelectPart(c *gin.Context) {
	part := c.Param("part")
	if err := h.do(c, func() error { return h.store.SelectPart(part) }); err != nil {
		h.Fail(c, err)
		return
	}
	h.NoContent(c)
}

// SetPartColor changes a part's base colour.
func (h *Handler) SetPartColor(c *gin.Context) {
	var req ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	part := c.Param("part")
	if err := h.do(c, func() error { return h.store.SetPartColor(part, req.Color) }); err != nil {
		h.Fail(c, err)
		return
	}
	p, _ := h.store.Part(part)
	h.Success(c, p)
}

// SetPartFabric dresses a part in a catalog fabric.
func (h *Handler) SetPartFabric(c *gin.Context) {
	var req FabricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	part := c.Param("part")

	var fabric catalog.Fabric
	if req.FabricID != "" {
		if h.catalog == nil {
			h.NotFound(c, "no fabric catalog loaded")
			return
		}
		f, err := h.catalog.Find(req.FabricID)
		if err != nil {
			h.Fail(c, err)
			return
		}
		fabric = f
	}

	err := h.do(c, func() error {
		return h.store.SetPartFabric(part, fabric.ID, store.FabricMaps(fabric.Maps), fabric.LockedScale, fabric.LockedNormalScale)
	})
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.log.Debug("fabric applied", zap.String("part", part), zap.String("fabric", fabric.ID))
	p, _ := h.store.Part(part)
	h.Success(c, p)
}

// FabricQuery filters the catalog listing.
type FabricQuery struct {
	Color string `form:"color"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListFabrics returns the catalog, or the fabrics nearest a colour when
// ?color= is given.
func (h *Handler) ListFabrics(c *gin.Context) {
	var q FabricQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if h.catalog == nil {
		h.Success(c, []catalog.Fabric{})
		return
	}
	if q.Color == "" {
		h.Success(c, h.catalog.All())
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = h.maxFabrics
	}
	h.Success(c, h.catalog.FilterByColor(q.Color, limit))
}

// GetFabric returns one catalog entry.
func (h *Handler) GetFabric(c *gin.Context) {
	if h.catalog == nil {
		h.NotFound(c, "no fabric catalog loaded")
		return
	}
	f, err := h.catalog.Find(c.Param("id"))
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.Success(c, f)
}
