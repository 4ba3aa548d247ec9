package handler

import (
	"net/http"
	"strings"

	"stellariq/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ListFavorites godoc
// @Summary      List the user's favorite symbols
// @Tags         favorites
// @Produce      json
// @Param        X-User-ID  header  int  true  "Authenticated user id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/favorites [get]
func (h *Handler) ListFavorites(c *gin.Context) {
	if h.favorites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "favorites unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-favorites")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	favorites, err := h.favorites.ListByUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if favorites == nil {
		favorites = []domain.Favorite{}
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites, "count": len(favorites)})
}

type addFavoriteRequest struct {
	Symbol       string           `json:"symbol" binding:"required"`
	AssetType    domain.AssetType `json:"asset_type"`
	Name         string           `json:"name"`
	AlertEnabled bool             `json:"alert_enabled"`
}

// AddFavorite godoc
// @Summary      Add a symbol to the user's favorites
// @Tags         favorites
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  int                 true  "Authenticated user id"
// @Param        request    body    addFavoriteRequest  true  "Favorite to add"
// @Success      201  {object}  domain.Favorite
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/favorites [post]
func (h *Handler) AddFavorite(c *gin.Context) {
	if h.favorites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "favorites unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.add-favorite")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req addFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.AssetType == "" {
		req.AssetType = domain.AssetStock
	}
	if !req.AssetType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or crypto"})
		return
	}
	span.SetAttributes(attribute.String("symbol", req.Symbol))

	fav, err := h.favorites.Add(ctx, domain.Favorite{
		UserID:       userID,
		Symbol:       req.Symbol,
		AssetType:    req.AssetType,
		Name:         req.Name,
		AlertEnabled: req.AlertEnabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fav)
}

// RemoveFavorite godoc
// @Summary      Remove a symbol from the user's favorites
// @Tags         favorites
// @Produce      json
// @Param        X-User-ID   header  int     true   "Authenticated user id"
// @Param        symbol      path    string  true   "Symbol to remove"
// @Param        asset_type  query   string  false  "stock or crypto"  default(stock)
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/favorites/{symbol} [delete]
func (h *Handler) RemoveFavorite(c *gin.Context) {
	if h.favorites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "favorites unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.remove-favorite")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	assetType := domain.AssetType(strings.ToLower(c.DefaultQuery("asset_type", string(domain.AssetStock))))
	if !assetType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or crypto"})
		return
	}

	if err := h.favorites.Remove(ctx, userID, c.Param("symbol"), assetType); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type alertsRequest struct {
	Enabled   bool             `json:"enabled"`
	AssetType domain.AssetType `json:"asset_type"`
}

// SetFavoriteAlerts godoc
// @Summary      Enable or disable alerts for a favorite
// @Tags         favorites
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  int            true  "Authenticated user id"
// @Param        symbol     path    string         true  "Favorite symbol"
// @Param        request    body    alertsRequest  true  "Alert toggle"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/favorites/{symbol}/alerts [patch]
func (h *Handler) SetFavoriteAlerts(c *gin.Context) {
	if h.favorites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "favorites unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.set-favorite-alerts")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req alertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.AssetType == "" {
		req.AssetType = domain.AssetStock
	}
	if !req.AssetType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or crypto"})
		return
	}

	if err := h.favorites.SetAlertEnabled(ctx, userID, c.Param("symbol"), req.AssetType, req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":        strings.ToUpper(strings.TrimSpace(c.Param("symbol"))),
		"alert_enabled": req.Enabled,
	})
}
