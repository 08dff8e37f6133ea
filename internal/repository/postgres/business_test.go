package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

func TestBusinessRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, reset := startTestDB(t)
	repo := NewBusinessRepository(db)
	ctx := context.Background()

	t.Run("Create_And_GetByID", func(t *testing.T) {
		reset(t)

		url := "https://sauceworks.example.com"
		business := domain.NewBusinessInput("artisanal hot sauce maker", []string{"hot sauce", "artisanal"}, &url)
		require.NoError(t, repo.Create(ctx, business))

		got, err := repo.GetByID(ctx, business.ID)
		require.NoError(t, err)
		assert.Equal(t, "artisanal hot sauce maker", got.Description)
		assert.Equal(t, []string{"hot sauce", "artisanal"}, got.Keywords)
		require.NotNil(t, got.WebsiteURL)
		assert.Equal(t, url, *got.WebsiteURL)
		assert.False(t, got.URLAnalyzed)
		assert.Nil(t, got.DetectedIndustry)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		reset(t)

		_, err := repo.GetByID(ctx, uuid.New())
		assert.True(t, domain.IsNotFoundError(err))
	})

	t.Run("SetAnalysis", func(t *testing.T) {
		reset(t)

		business := domain.NewBusinessInput("", nil, nil)
		require.NoError(t, repo.Create(ctx, business))

		keywords := []string{"hot sauce", "habanero", "craft condiments", "small batch", "gift sets"}
		err := repo.SetAnalysis(ctx, business.ID, "Maker of small-batch habanero sauces.", keywords)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, business.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maker of small-batch habanero sauces.", got.Description)
		assert.Equal(t, keywords, got.Keywords)
		assert.True(t, got.URLAnalyzed)
	})

	t.Run("SetAnalysis_NotFound", func(t *testing.T) {
		reset(t)

		err := repo.SetAnalysis(ctx, uuid.New(), "desc", []string{"kw"})
		assert.True(t, domain.IsNotFoundError(err))
	})
}
