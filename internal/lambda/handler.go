package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ammiranda/nestedset_service/cache"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/aws/aws-lambda-go/events"
)

// Handler represents the Lambda handler with its dependencies
type Handler struct {
	svc *service.TreeService
}

// NewHandler creates a new Handler over the given tree service
func NewHandler(svc *service.TreeService) *Handler {
	return &Handler{
		svc: svc,
	}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Route the request based on HTTP method and resource template
	switch {
	case request.HTTPMethod == http.MethodGet && request.Resource == "/api/trees":
		return h.handleListTrees(ctx)
	case request.HTTPMethod == http.MethodPost && request.Resource == "/api/trees":
		return h.handleCreateTree(ctx, request)
	case request.HTTPMethod == http.MethodGet && request.Resource == "/api/trees/{rootId}":
		return h.handleGetTree(ctx, request)
	case request.HTTPMethod == http.MethodPost && request.Resource == "/api/nodes":
		return h.handleCreateNode(ctx, request)
	case request.HTTPMethod == http.MethodGet && request.Resource == "/api/nodes/{id}":
		return h.handleGetNode(ctx, request)
	case request.HTTPMethod == http.MethodGet && request.Resource == "/api/nodes/{id}/children":
		return h.handleGetChildren(ctx, request)
	default:
		return errorResponse(http.StatusNotFound, "Not found"), nil
	}
}

func (h *Handler) handleListTrees(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	roots, err := h.svc.FindAllRootNodes(ctx)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, roots), nil
}

func (h *Handler) handleCreateTree(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.CreateRootRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err)), nil
	}

	// Validate the request
	if err := req.Validate(); err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	result := h.svc.AddRootNode(ctx, req.OwnerID, req.Name, req.IsUserFolder)
	if result.HasErrorMessages() {
		return jsonResponse(http.StatusUnprocessableEntity, map[string][]string{"errors": result.ErrorMessages()}), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"id":     result.Value,
		"name":   req.Name,
		"rootId": result.Value,
	}), nil
}

func (h *Handler) handleGetTree(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	rootID, err := pathID(request, "rootId")
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	// Try to get from cache first
	if cachedTree, found := cache.GetTree(rootID); found {
		return jsonResponse(http.StatusOK, cachedTree), nil
	}

	// If not in cache, build from repository
	nodes, err := h.svc.FindTreeByRootID(ctx, rootID)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err.Error()), nil
	}
	if len(nodes) == 0 {
		return errorResponse(http.StatusNotFound, "tree not found"), nil
	}

	tree := models.BuildTree(nodes)

	// Store in cache
	cache.SetTree(rootID, tree)

	return jsonResponse(http.StatusOK, tree), nil
}

func (h *Handler) handleCreateNode(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.CreateNodeRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err)), nil
	}

	// Validate the request
	if err := req.Validate(); err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	parent, err := h.svc.FindNodeOwner(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return errorResponse(http.StatusNotFound, "parent node not found"), nil
		}
		return errorResponse(http.StatusInternalServerError, err.Error()), nil
	}

	result := h.svc.AddSubNode(ctx, req.OwnerID, req.Name, *parent)
	if result.HasErrorMessages() {
		return jsonResponse(http.StatusUnprocessableEntity, map[string][]string{"errors": result.ErrorMessages()}), nil
	}

	// Invalidate cache
	cache.InvalidateTree(parent.RootID)

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"id":       result.Value,
		"name":     req.Name,
		"parentId": parent.ID,
		"rootId":   parent.RootID,
	}), nil
}

func (h *Handler) handleGetNode(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id, err := pathID(request, "id")
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	node, err := h.svc.FindNodeOwner(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return errorResponse(http.StatusNotFound, "node not found"), nil
		}
		return errorResponse(http.StatusInternalServerError, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, node), nil
}

func (h *Handler) handleGetChildren(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id, err := pathID(request, "id")
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	children, err := h.svc.FindAllChildNodesByParentNode(ctx, id)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err.Error()), nil
	}
	return jsonResponse(http.StatusOK, children), nil
}

func pathID(request events.APIGatewayProxyRequest, name string) (int64, error) {
	id, err := strconv.ParseInt(request.PathParameters[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Sprintf("Failed to marshal response: %v", err))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
