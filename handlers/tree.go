package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ammiranda/nestedset_service/cache"
	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/gin-gonic/gin"
)

var (
	ErrTreeNotFound = errors.New("tree not found")
)

// TreeHandler handles tree-related HTTP requests
type TreeHandler struct {
	svc *service.TreeService
}

// NewTreeHandler creates a new TreeHandler instance
func NewTreeHandler(svc *service.TreeService) *TreeHandler {
	return &TreeHandler{
		svc: svc,
	}
}

// RegisterRoutes mounts the tree API under /api
func (h *TreeHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/trees", h.ListTrees)
		api.POST("/trees", h.CreateTree)
		api.GET("/trees/:rootId", h.GetTree)

		api.POST("/nodes", h.CreateNode)
		api.GET("/nodes/:id", h.GetNode)
		api.GET("/nodes/:id/children", h.GetChildren)
		api.GET("/nodes/:id/descendants", h.GetDescendants)
		api.POST("/nodes/:id/move", h.MoveNode)
		api.DELETE("/nodes/:id", h.DeleteNode)
	}
}

// ListTrees returns the root node of every tree
func (h *TreeHandler) ListTrees(c *gin.Context) {
	roots, err := h.svc.FindAllRootNodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, roots)
}

// CreateTree starts a new tree with a single root node
func (h *TreeHandler) CreateTree(c *gin.Context) {
	var req models.CreateRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Validate the request
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.svc.AddRootNode(c.Request.Context(), req.OwnerID, req.Name, req.IsUserFolder)
	if result.HasErrorMessages() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result.ErrorMessages()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     result.Value,
		"name":   req.Name,
		"rootId": result.Value,
	})
}

// GetTree returns one tree as nested display nodes
func (h *TreeHandler) GetTree(c *gin.Context) {
	rootID, ok := idParam(c, "rootId")
	if !ok {
		return
	}

	// Try to get from cache first
	if cachedTree, found := cache.GetTree(rootID); found {
		c.JSON(http.StatusOK, cachedTree)
		return
	}

	// If not in cache, get from repository
	nodes, err := h.svc.FindTreeByRootID(c.Request.Context(), rootID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(nodes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrTreeNotFound.Error()})
		return
	}

	tree := models.BuildTree(nodes)

	// Store in cache
	cache.SetTree(rootID, tree)

	c.JSON(http.StatusOK, tree)
}

// CreateNode appends a new child to an existing node
func (h *TreeHandler) CreateNode(c *gin.Context) {
	var req models.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Validate the request
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	parent, err := h.svc.FindNodeOwner(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parent node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := h.svc.AddSubNode(ctx, req.OwnerID, req.Name, *parent)
	if result.HasErrorMessages() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result.ErrorMessages()})
		return
	}

	// Invalidate cache since we modified the tree
	cache.InvalidateTree(parent.RootID)

	c.JSON(http.StatusCreated, gin.H{
		"id":       result.Value,
		"name":     req.Name,
		"parentId": parent.ID,
		"rootId":   parent.RootID,
	})
}

// GetNode returns a node with its owner name
func (h *TreeHandler) GetNode(c *gin.Context) {
	node, ok := h.loadNode(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, node)
}

// GetChildren returns the direct children of a node
func (h *TreeHandler) GetChildren(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	children, err := h.svc.FindAllChildNodesByParentNode(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, children)
}

// GetDescendants returns every node below a node
func (h *TreeHandler) GetDescendants(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	descendants, err := h.svc.FindAllChildrenInTreeOfNodeID(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, descendants)
}

// MoveNode relocates a node with its subtree next to or under a target node
func (h *TreeHandler) MoveNode(c *gin.Context) {
	var req models.MoveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	region, err := calculator.ParseRegion(req.Region)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	moved, ok := h.loadNode(c, "id")
	if !ok {
		return
	}
	target, err := h.svc.FindNodeOwner(c.Request.Context(), req.TargetID)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "target node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.MoveNode(c.Request.Context(), *moved, *target, region)
	if err != nil {
		if errors.Is(err, calculator.ErrInvalidRegion) || errors.Is(err, service.ErrInvalidMove) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result.HasErrorMessages() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result.ErrorMessages()})
		return
	}

	cache.InvalidateTree(moved.RootID, target.RootID)

	c.JSON(http.StatusOK, gin.H{
		"id":       moved.ID,
		"targetId": target.ID,
		"region":   region,
	})
}

// DeleteNode removes a leaf, or a whole subtree when recursive=true
func (h *TreeHandler) DeleteNode(c *gin.Context) {
	recursive, err := strconv.ParseBool(c.DefaultQuery("recursive", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recursive flag"})
		return
	}

	node, ok := h.loadNode(c, "id")
	if !ok {
		return
	}

	var result service.Result[bool]
	if recursive {
		result = h.svc.DeleteTree(c.Request.Context(), *node)
	} else {
		result = h.svc.DeleteSingleNode(c.Request.Context(), *node)
	}
	if result.HasErrorMessages() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result.ErrorMessages()})
		return
	}

	cache.InvalidateTree(node.RootID)

	c.Status(http.StatusNoContent)
}

// loadNode reads the node named by a path parameter, writing the error response itself
func (h *TreeHandler) loadNode(c *gin.Context, param string) (*models.Node, bool) {
	id, ok := idParam(c, param)
	if !ok {
		return nil, false
	}
	node, err := h.svc.FindNodeOwner(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err)
		return nil, false
	}
	return node, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNodeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
