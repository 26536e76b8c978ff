package availability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_SaveTemplateClearsLaterOverrides(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	provider := uuid.New()
	nextMonday := monday.AddDate(0, 0, 7)

	require.NoError(t, repo.SaveTemplate(ctx, provider, monday, mondayWithLunch()))
	require.NoError(t, repo.UpsertDayOverride(ctx, DayOverride{ProviderID: provider, Date: monday, Working: false}))
	require.NoError(t, repo.UpsertDayOverride(ctx, DayOverride{ProviderID: provider, Date: nextMonday, Working: false}))
	require.NoError(t, repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: provider, Date: monday, Time: 540}))
	require.NoError(t, repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: provider, Date: nextMonday, Time: 540}))

	require.NoError(t, repo.SaveTemplate(ctx, provider, nextMonday, Template{Name: "replacement"}))

	until := nextMonday.AddDate(0, 0, 7)
	days, err := repo.ListDayOverrides(ctx, provider, monday, until)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, monday, days[0].Date)

	slots, err := repo.ListSlotOverrides(ctx, provider, monday, until)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, monday, slots[0].Date)

	tmpl, err := repo.TemplateAt(ctx, provider, monday)
	require.NoError(t, err)
	assert.Equal(t, "monday-lunch", tmpl.Name)
	tmpl, err = repo.TemplateAt(ctx, provider, nextMonday)
	require.NoError(t, err)
	assert.Equal(t, "replacement", tmpl.Name)
}

func TestMemoryRepository_ResetDay(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	provider := uuid.New()
	tuesday := monday.AddDate(0, 0, 1)

	require.NoError(t, repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: provider, Date: monday, Time: 540, Available: true}))
	require.NoError(t, repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: provider, Date: monday, Time: 570, Available: true}))
	require.NoError(t, repo.UpsertSlotOverride(ctx, SlotOverride{ProviderID: provider, Date: tuesday, Time: 540, Available: true}))

	require.NoError(t, repo.ResetDay(ctx, DayOverride{ProviderID: provider, Date: monday, Working: false}))

	slots, err := repo.ListSlotOverrides(ctx, provider, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, tuesday, slots[0].Date)

	days, err := repo.ListDayOverrides(ctx, provider, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, DayOverride{ProviderID: provider, Date: monday, Working: false}, days[0])
}

