// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/apiclient"
	"github.com/LiangCY/dinosaur-wiki/internal/server"
	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// newBackend starts the real server over a temporary sqlite store.
func newBackend(t *testing.T) *apiclient.Client {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ts := httptest.NewServer(server.New(types.ServerConfig{}, server.Deps{Store: st}).Handler())
	t.Cleanup(ts.Close)
	return apiclient.New(ts.URL+"/", 5*time.Second, zap.NewNop())
}

// --- round trip ---

func TestClient_CreateThenFindExact(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	created, err := c.Create(ctx, types.DinosaurInfo{Name: "三角龙", ScientificName: "Triceratops horridus"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := c.FindExact(ctx, "三角龙")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "三角龙", found.Name)
	assert.Equal(t, "Triceratops horridus", found.ScientificName)

	missing, err := c.FindExact(ctx, "三角")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_FindExactIsCaseSensitive(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	upper, err := c.Create(ctx, types.DinosaurInfo{Name: "Rex"})
	require.NoError(t, err)
	lower, err := c.Create(ctx, types.DinosaurInfo{Name: "rex"})
	require.NoError(t, err)

	found, err := c.FindExact(ctx, "Rex")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, upper.ID, found.ID)

	found, err = c.FindExact(ctx, "rex")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, lower.ID, found.ID)

	// Exists folds case; FindExact does not.
	assert.True(t, c.Exists(ctx, "REX"))
	found, err = c.FindExact(ctx, "REX")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestClient_UpdateGetDelete(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	d, err := c.Create(ctx, types.DinosaurInfo{Name: "剑龙", Period: "侏罗纪晚期"})
	require.NoError(t, err)

	updated, err := c.Update(ctx, d.ID, types.DinosaurInfo{Name: "剑龙", Diet: types.DietHerbivore}.Patch())
	require.NoError(t, err)
	assert.Equal(t, types.DietHerbivore, updated.Diet)
	assert.Empty(t, updated.Period, "a full patch overwrites every string field")

	got, err := c.Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.DietHerbivore, got.Diet)

	require.NoError(t, c.Delete(ctx, d.ID))
	got, err = c.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = c.Delete(ctx, d.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiclient.ErrNotFound))
}

func TestClient_SearchAndList(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	for _, name := range []string{"Brachiosaurus", "Stegosaurus", "Velociraptor"} {
		_, err := c.Create(ctx, types.DinosaurInfo{Name: name})
		require.NoError(t, err)
	}

	all, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	hits, err := c.Search(ctx, "saurus")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	assert.False(t, c.Exists(ctx, "saurus"), "a substring hit is not an exact match")
}

// --- children ---

func TestClient_FossilsAndImages(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	d, err := c.Create(ctx, types.DinosaurInfo{Name: "霸王龙"})
	require.NoError(t, err)

	require.NoError(t, c.AddFossils(ctx, d.ID, []types.Fossil{
		{DiscoveryLocation: "美国蒙大拿州", FossilType: "完整骨架", DiscoveryDate: "1990"},
	}))
	require.NoError(t, c.AddImages(ctx, d.ID, []types.Image{{URL: "https://example.com/rex.jpg", Description: "复原图"}}))

	images, err := c.ListImages(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "复原图", images[0].Description)

	got, err := c.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Fossils, 1)
	assert.Equal(t, "美国蒙大拿州", got.Fossils[0].DiscoveryLocation)

	require.NoError(t, c.DeleteImage(ctx, d.ID, "https://example.com/rex.jpg"))

	err = c.DeleteImage(ctx, d.ID, "https://example.com/rex.jpg")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Image not found", apiErr.Message)
	assert.Equal(t, "删除恐龙图片失败: Image not found", err.Error())
}

// --- errors ---

func TestClient_ErrorMessageFromServer(t *testing.T) {
	c := newBackend(t)

	_, err := c.Create(context.Background(), types.DinosaurInfo{})
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "name is required")
	assert.False(t, errors.Is(err, apiclient.ErrNotFound))
}

func TestClient_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := apiclient.New(url, time.Second, nil)
	_, err := c.List(context.Background())
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Contains(t, err.Error(), "获取恐龙列表失败")

	_, err = c.FindExact(context.Background(), "Rex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "精确查找恐龙失败")
	assert.False(t, c.Exists(context.Background(), "Rex"))
}

func TestClient_BaseURLTrimsSlash(t *testing.T) {
	c := apiclient.New("http://localhost:3000/", 0, nil)
	assert.Equal(t, "http://localhost:3000", c.BaseURL())
}
