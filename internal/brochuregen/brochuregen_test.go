package brochuregen

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/catalog-importer/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	bs := Generate(6, 42, start)
	require.Len(t, bs, 6)

	for i, b := range bs {
		assert.Equal(t, languages[i%3], b.Language)
		assert.NotEmpty(t, b.Title)
		assert.True(t, strings.HasSuffix(b.Title, "("+languageNames[b.Language]+")"), b.Title)
		assert.GreaterOrEqual(t, len(b.Pages), 4)
		assert.Equal(t, b.Pages[0], b.Thumbnail)
		assert.True(t, strings.HasPrefix(b.Thumbnail, "gs://"+defaultBucket+"/catalogs/"+b.MarketName+"/"+b.Language+"/"))
	}
	assert.Equal(t, "Valid from 12.10.2026 - 18.10.2026", bs[0].Validity)
	assert.Equal(t, "current", bs[0].WeekType)
	assert.Equal(t, "Valid from 19.10.2026 - 25.10.2026", bs[3].Validity)
	assert.Equal(t, "next", bs[3].WeekType)
}

func TestGenerateDeterministic(t *testing.T) {
	assert.Equal(t, Generate(4, 7, start), Generate(4, 7, start))
	assert.NotEqual(t, Generate(4, 7, start), Generate(4, 8, start))
}

func TestWriteFileRoundTripsThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brochures.json")
	require.NoError(t, WriteFile(path, Generate(3, 1, start)))

	recs, err := record.LoadFile(path, "title")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.False(t, r.Flagged)
		assert.Contains(t, r.Label, "Weekly Catalog")
	}
}
