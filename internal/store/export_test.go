// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

func seeded(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "src.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	d, err := s.Create(ctx, types.DinosaurInfo{Name: "霸王龙", ScientificName: "Tyrannosaurus rex", Diet: types.DietCarnivore})
	require.NoError(t, err)
	_, err = s.AddFossils(ctx, d.ID, []types.Fossil{{DiscoveryLocation: "美国蒙大拿州", FossilType: "头骨"}})
	require.NoError(t, err)
	require.NoError(t, s.AddImages(ctx, d.ID, []types.Image{{URL: "https://example.com/rex.jpg"}}))

	_, err = s.Create(ctx, types.DinosaurInfo{Name: "剑龙", Diet: types.DietHerbivore})
	require.NoError(t, err)
	return s
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			src := seeded(t)

			var buf bytes.Buffer
			require.NoError(t, Export(ctx, src, types.Filter{}, &buf, format))

			dst, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dst.db"), zap.NewNop())
			require.NoError(t, err)
			defer dst.Close()

			res, err := Import(ctx, dst, bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			assert.Equal(t, ImportResult{Created: 2}, res)

			list, err := dst.List(ctx, types.Filter{Search: "rex"})
			require.NoError(t, err)
			require.Len(t, list, 1)
			full, err := dst.Get(ctx, list[0].ID)
			require.NoError(t, err)
			assert.Equal(t, "霸王龙", full.Name)
			require.Len(t, full.Fossils, 1)
			assert.Equal(t, "头骨", full.Fossils[0].FossilType)
			require.Len(t, full.Images, 1)
			assert.Equal(t, "https://example.com/rex.jpg", full.Images[0].URL)

			again, err := Import(ctx, dst, bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			assert.Equal(t, ImportResult{Skipped: 2}, again)
		})
	}
}

func TestExport_Filter(t *testing.T) {
	src := seeded(t)
	var buf bytes.Buffer
	require.NoError(t, Export(context.Background(), src, types.Filter{Diet: types.DietHerbivore}, &buf, FormatYAML))
	assert.Contains(t, buf.String(), "剑龙")
	assert.NotContains(t, buf.String(), "霸王龙")
}

func TestExport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Export(context.Background(), seeded(t), types.Filter{}, &buf, "xml"))
	_, err := Import(context.Background(), seeded(t), &buf, "xml")
	assert.Error(t, err)
}
