package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"camrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventRepository_NewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventRepository(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &domain.Event{ID: fmt.Sprintf("e%d", i)}))
	}

	events, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e4", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)
	assert.Equal(t, "e2", events[2].ID)

	events, err = repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMemoryEventRepository_EmptyAndPartial(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventRepository(0)

	events, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, repo.Save(ctx, &domain.Event{ID: "only"}))
	events, err = repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "only", events[0].ID)
}

func newCamera(id string, created time.Time) *domain.Camera {
	return &domain.Camera{
		ID:        id,
		Name:      "cam " + id,
		RTSPURL:   "rtsp://10.0.0.7/" + id,
		MountType: domain.MountWall,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryCameraRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCameraRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newCamera("b", now.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, newCamera("a", now)))
	assert.Error(t, repo.Create(ctx, newCamera("a", now)))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	name := "front door"
	updated, err := repo.Update(ctx, "a", &domain.CameraPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "front door", updated.Name)
	assert.Equal(t, "rtsp://10.0.0.7/a", updated.RTSPURL)

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "front door", got.Name)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), domain.ErrCameraNotFound)

	_, err = repo.Update(ctx, "missing", &domain.CameraPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
}

func TestMemoryCameraRepository_SingleDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCameraRepository()
	now := time.Now()

	first := newCamera("first", now)
	first.IsDefault = true
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, newCamera("second", now.Add(time.Second))))

	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", def.ID)

	yes := true
	updated, err := repo.Update(ctx, "second", &domain.CameraPatch{IsDefault: &yes})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, c := range list {
		if c.IsDefault {
			defaults++
			assert.Equal(t, "second", c.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	no := false
	_, err = repo.Update(ctx, "first", &domain.CameraPatch{IsDefault: &no})
	require.NoError(t, err)
	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", def.ID, "clearing a non-default camera leaves the pointer alone")

	require.NoError(t, repo.Delete(ctx, "second"))
	_, err = repo.GetDefault(ctx)
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
}

func TestMemoryCameraRepository_ConcurrentDefaultSwitches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCameraRepository()
	now := time.Now()

	for i := 0; i < 8; i++ {
		require.NoError(t, repo.Create(ctx, newCamera(fmt.Sprintf("c%d", i), now)))
	}

	yes := true
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := repo.Update(ctx, id, &domain.CameraPatch{IsDefault: &yes})
			assert.NoError(t, err)
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, c := range list {
		if c.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestMemoryCameraRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCameraRepository()
	require.NoError(t, repo.Create(ctx, newCamera("a", time.Now())))

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "cam a", again.Name)
}
