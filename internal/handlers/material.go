package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/mykafka"
	"github.com/streetsource/backend/internal/service/search"
	"github.com/streetsource/backend/internal/util"
)

type MaterialHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

type materialRequest struct {
	Name             string                  `json:"name"`
	Category         models.MaterialCategory `json:"category"`
	PricePerUnit     *float64                `json:"price_per_unit"`
	Unit             models.MaterialUnit     `json:"unit"`
	Stock            *int                    `json:"stock"`
	MinOrderQty      *int                    `json:"min_order_qty"`
	DeliveryRadiusKm *int                    `json:"delivery_radius_km"`
	IsAvailable      *bool                   `json:"is_available"`
	QualityGrade     models.QualityGrade     `json:"quality_grade"`
}

func (h *MaterialHandler) index(c echo.Context, m *models.Material) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexMaterial(ctx, h.ES, h.Index, m); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *MaterialHandler) CreateMaterial(c echo.Context) error {
	supplierID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req materialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if !req.Category.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
	}
	if !req.Unit.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unit")
	}
	if req.PricePerUnit == nil || *req.PricePerUnit < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price_per_unit must be >= 0")
	}
	if req.Stock == nil || *req.Stock < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}

	m := models.Material{
		SupplierID:       supplierID,
		Name:             req.Name,
		Category:         req.Category,
		PricePerUnit:     *req.PricePerUnit,
		Unit:             req.Unit,
		Stock:            *req.Stock,
		MinOrderQty:      1,
		DeliveryRadiusKm: 10,
		IsAvailable:      *req.Stock > 0,
		QualityGrade:     models.GradeA,
	}
	if req.MinOrderQty != nil {
		if *req.MinOrderQty < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "min_order_qty must be >= 1")
		}
		m.MinOrderQty = *req.MinOrderQty
	}
	if req.DeliveryRadiusKm != nil {
		if *req.DeliveryRadiusKm < 1 || *req.DeliveryRadiusKm > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "delivery_radius_km must be between 1 and 100")
		}
		m.DeliveryRadiusKm = *req.DeliveryRadiusKm
	}
	if req.IsAvailable != nil {
		m.IsAvailable = *req.IsAvailable
	}
	if req.QualityGrade != "" {
		if !req.QualityGrade.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quality_grade")
		}
		m.QualityGrade = req.QualityGrade
	}

	if err := h.DB.Create(&m).Error; err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	h.index(c, &m)
	publish(c, h.Producer, "material_events", fmt.Sprint(supplierID), map[string]interface{}{
		"type":       "material_created",
		"materialID": m.ID,
		"supplierID": supplierID,
		"name":       m.Name,
	})

	return c.JSON(http.StatusCreated, m)
}

func (h *MaterialHandler) PatchMaterial(c echo.Context) error {
	supplierID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var m models.Material
	if err := h.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "material not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if m.SupplierID != supplierID {
		return echo.NewHTTPError(http.StatusForbidden, "not the owner of this material")
	}

	var req materialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != "" {
		m.Name = req.Name
	}
	if req.Category != "" {
		if !req.Category.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
		}
		m.Category = req.Category
	}
	if req.Unit != "" {
		if !req.Unit.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid unit")
		}
		m.Unit = req.Unit
	}
	if req.PricePerUnit != nil {
		if *req.PricePerUnit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price_per_unit must be >= 0")
		}
		m.PricePerUnit = *req.PricePerUnit
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
		}
		m.Stock = *req.Stock
	}
	if req.MinOrderQty != nil {
		if *req.MinOrderQty < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "min_order_qty must be >= 1")
		}
		m.MinOrderQty = *req.MinOrderQty
	}
	if req.DeliveryRadiusKm != nil {
		if *req.DeliveryRadiusKm < 1 || *req.DeliveryRadiusKm > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "delivery_radius_km must be between 1 and 100")
		}
		m.DeliveryRadiusKm = *req.DeliveryRadiusKm
	}
	if req.IsAvailable != nil {
		m.IsAvailable = *req.IsAvailable
	}
	if req.QualityGrade != "" {
		if !req.QualityGrade.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quality_grade")
		}
		m.QualityGrade = req.QualityGrade
	}

	if err := h.DB.Save(&m).Error; err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	h.index(c, &m)
	publish(c, h.Producer, "material_events", fmt.Sprint(supplierID), map[string]interface{}{
		"type":       "material_updated",
		"materialID": m.ID,
		"supplierID": supplierID,
	})

	return c.JSON(http.StatusOK, m)
}

func (h *MaterialHandler) DeleteMaterial(c echo.Context) error {
	supplierID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var m models.Material
	if err := h.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "material not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if m.SupplierID != supplierID {
		return echo.NewHTTPError(http.StatusForbidden, "not the owner of this material")
	}

	if err := h.DB.Delete(&m).Error; err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteMaterial(ctx, h.ES, h.Index, m.ID); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}
	publish(c, h.Producer, "material_events", fmt.Sprint(supplierID), map[string]interface{}{
		"type":       "material_deleted",
		"materialID": m.ID,
		"supplierID": supplierID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *MaterialHandler) GetMaterial(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var m models.Material
	if err := h.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "material not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MaterialHandler) GetMaterials(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Material{})
	if cat := c.QueryParam("category"); cat != "" {
		if !models.MaterialCategory(cat).Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
		}
		q = q.Where("category = ?", cat)
	}
	if sid := c.QueryParam("supplier_id"); sid != "" {
		q = q.Where("supplier_id = ?", sid)
	}
	if c.QueryParam("available") == "true" {
		q = q.Where("is_available = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	var items []models.Material
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}
