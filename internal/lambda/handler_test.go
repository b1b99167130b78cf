package lambda

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ammiranda/nestedset_service/cache"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (*Handler, *cache.MockCache) {
	t.Helper()
	mockCache := cache.NewMockCache()
	require.NoError(t, cache.SetProvider(mockCache))
	t.Cleanup(cache.ResetProvider)

	repo := repository.NewMockRepository()
	repo.Seed(
		models.Node{ID: 1, RootID: 1, RootOrder: 1, Lft: 1, Rgt: 4, Level: 1, OwnerID: 1, Name: "root"},
		models.Node{ID: 2, ParentID: 1, RootID: 1, Lft: 2, Rgt: 3, Level: 2, OwnerID: 1, Name: "child"},
	)
	return NewHandler(service.NewTreeService(repo, nil)), mockCache
}

func TestHandleGetTree(t *testing.T) {
	h, mockCache := setupHandler(t)
	request := events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Resource:       "/api/trees/{rootId}",
		PathParameters: map[string]string{"rootId": "1"},
	}

	resp, err := h.Handle(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tree []*models.TreeNode
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &tree))
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "child", tree[0].Children[0].Name)

	cached, err := h.Handle(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, resp.Body, cached.Body)
	getTree, setTree, _, _, _, _ := mockCache.GetCallCounts()
	assert.Equal(t, 2, getTree)
	assert.Equal(t, 1, setTree)

	request.PathParameters["rootId"] = "42"
	resp, err = h.Handle(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	request.PathParameters["rootId"] = "x"
	resp, err = h.Handle(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateNode(t *testing.T) {
	h, mockCache := setupHandler(t)

	body, _ := json.Marshal(models.CreateNodeRequest{Name: "second", OwnerID: 1, ParentID: 1})
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Resource:   "/api/nodes",
		Body:       string(body),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, mockCache.InvalidateTreeCalls)

	body, _ = json.Marshal(models.CreateNodeRequest{Name: "orphan", OwnerID: 1, ParentID: 9})
	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Resource:   "/api/nodes",
		Body:       string(body),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Resource:   "/api/nodes",
		Body:       `{"name": ""}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleTrees(t *testing.T) {
	h, _ := setupHandler(t)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Resource:   "/api/trees",
		Body:       `{"name": "media", "ownerId": 2}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Resource:   "/api/trees",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var roots []models.Node
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &roots))
	assert.Len(t, roots, 2)
}

func TestHandleNodes(t *testing.T) {
	h, _ := setupHandler(t)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Resource:       "/api/nodes/{id}",
		PathParameters: map[string]string{"id": "2"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"name":"child"`)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Resource:       "/api/nodes/{id}/children",
		PathParameters: map[string]string{"id": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var children []models.Node
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &children))
	assert.Len(t, children, 1)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPut,
		Resource:   "/api/nodes/{id}",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
