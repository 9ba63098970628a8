package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/store"
)

// ConfigsHandler serves the stored-config registry endpoints.
type ConfigsHandler struct {
	coord   *coordinator.Coordinator
	configs store.ConfigStore
	log     logger.Interface
}

// NewConfigsHandler creates a configs handler.
func NewConfigsHandler(coord *coordinator.Coordinator, configs store.ConfigStore, log logger.Interface) *ConfigsHandler {
	return &ConfigsHandler{
		coord:   coord,
		configs: configs,
		log:     log,
	}
}

// ListConfigs handles GET /api/configs
func (h *ConfigsHandler) ListConfigs(c *gin.Context) {
	configs, err := h.configs.ListConfigs(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"configs": configs, "total": len(configs)})
}

// CreateConfig handles POST /api/configs. The section map is applied over
// defaults so stored documents are always complete.
func (h *ConfigsHandler) CreateConfig(c *gin.Context) {
	var req saveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.Name == "" {
		respondError(c, CodeInvalidRequest, "name is required")
		return
	}

	cfg := coordinator.DefaultConfig()
	if err := cfg.Apply(req.Config); err != nil {
		respondError(c, CodeInvalidRequest, err.Error())
		return
	}

	stored := &store.StoredConfig{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Config: cfg,
	}

	if err := h.configs.CreateConfig(c.Request.Context(), stored); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	h.log.Info("Config created", "configId", stored.ID, "name", stored.Name)

	c.JSON(http.StatusCreated, gin.H{"id": stored.ID, "name": stored.Name})
}

// GetConfig handles GET /api/configs/:id
func (h *ConfigsHandler) GetConfig(c *gin.Context) {
	stored, err := h.configs.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

// UpdateConfig handles PUT /api/configs/:id. Updates merge section by
// section onto the stored document, like configure does for a run.
func (h *ConfigsHandler) UpdateConfig(c *gin.Context) {
	var req saveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	stored, err := h.configs.GetConfig(ctx, c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	if req.Name != "" {
		stored.Name = req.Name
	}

	if len(req.Config) > 0 {
		if applyErr := stored.Config.Apply(req.Config); applyErr != nil {
			respondError(c, CodeInvalidRequest, applyErr.Error())
			return
		}
	}

	if err := h.configs.UpdateConfig(ctx, stored); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

// DeleteConfig handles DELETE /api/configs/:id. A config still referenced by
// a run that has not finished cannot be deleted.
func (h *ConfigsHandler) DeleteConfig(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	inUse, err := h.configInUse(ctx, id)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	if inUse {
		respondDomainError(c, h.log, fmt.Errorf("%w: %s", coordinator.ErrConfigInUse, id))
		return
	}

	if err := h.configs.DeleteConfig(ctx, id); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// configInUse reports whether any non-terminal run references the config.
func (h *ConfigsHandler) configInUse(ctx context.Context, configID string) (bool, error) {
	items, err := h.coord.ListRuns(ctx)
	if err != nil {
		return false, fmt.Errorf("list runs: %w", err)
	}

	for _, item := range items {
		if coordinator.IsTerminal(item.Status) {
			continue
		}

		view, err := h.coord.Run(item.ID).Status(ctx)
		if err != nil {
			return false, fmt.Errorf("run %s status: %w", item.ID, err)
		}

		if view.Config != nil && view.Config.ID == configID {
			return true, nil
		}
	}

	return false, nil
}
