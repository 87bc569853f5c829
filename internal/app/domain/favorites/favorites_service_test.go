package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) IsFavorite(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	args := m.Called(ctx, owner, itemID, itemType)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Toggle(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	args := m.Called(ctx, owner, itemID, itemType)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Merge(ctx context.Context, from models.VisitorOwner, into models.UserOwner) (models.MergeResult, error) {
	args := m.Called(ctx, from, into)
	return args.Get(0).(models.MergeResult), args.Error(1)
}

func (m *MockRepository) ListByIdentity(ctx context.Context, owner models.Owner, itemType models.ItemType) ([]int64, error) {
	args := m.Called(ctx, owner, itemType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) FavoriteSet(ctx context.Context, owner models.Owner, itemType models.ItemType, itemIDs []int64) (map[int64]bool, error) {
	args := m.Called(ctx, owner, itemType, itemIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]bool), args.Error(1)
}

// memoryLedger keeps favorites as sets keyed by owner, newest last.
type memoryLedger struct {
	mu    sync.Mutex
	items map[string][]ledgerKey
}

type ledgerKey struct {
	id int64
	t  models.ItemType
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{items: map[string][]ledgerKey{}}
}

func (m *memoryLedger) index(owner models.Owner, k ledgerKey) int {
	for i, got := range m.items[owner.String()] {
		if got == k {
			return i
		}
	}
	return -1
}

func (m *memoryLedger) IsFavorite(_ context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index(owner, ledgerKey{itemID, itemType}) >= 0, nil
}

func (m *memoryLedger) Toggle(_ context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ledgerKey{itemID, itemType}
	key := owner.String()
	if i := m.index(owner, k); i >= 0 {
		m.items[key] = append(m.items[key][:i], m.items[key][i+1:]...)
		return false, nil
	}
	m.items[key] = append(m.items[key], k)
	return true, nil
}

func (m *memoryLedger) Merge(_ context.Context, from models.VisitorOwner, into models.UserOwner) (models.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res models.MergeResult
	for _, k := range m.items[from.String()] {
		if m.index(into, k) >= 0 {
			res.Dropped++
			continue
		}
		m.items[into.String()] = append(m.items[into.String()], k)
		res.Moved++
	}
	delete(m.items, from.String())
	return res, nil
}

func (m *memoryLedger) ListByIdentity(_ context.Context, owner models.Owner, itemType models.ItemType) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	keys := m.items[owner.String()]
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i].t == itemType {
			ids = append(ids, keys[i].id)
		}
	}
	return ids, nil
}

func (m *memoryLedger) FavoriteSet(ctx context.Context, owner models.Owner, itemType models.ItemType, itemIDs []int64) (map[int64]bool, error) {
	set := map[int64]bool{}
	for _, id := range itemIDs {
		if ok, _ := m.IsFavorite(ctx, owner, id, itemType); ok {
			set[id] = true
		}
	}
	return set, nil
}

// catalogue serves a fixed set of cities and POIs.
type catalogue struct {
	cities map[int64]models.City
	pois   map[int64]models.POI
}

func newCatalogue() *catalogue {
	return &catalogue{
		cities: map[int64]models.City{
			42: {ID: 42, Name: "Hangzhou", Region: "East"},
			43: {ID: 43, Name: "Suzhou", Region: "East"},
		},
		pois: map[int64]models.POI{
			1: {ID: 1, CityID: 42, Name: "West Lake", POIType: models.POITypeAttraction},
			2: {ID: 2, CityID: 42, Name: "Lingyin Temple", POIType: models.POITypeAttraction},
			3: {ID: 3, CityID: 43, Name: "Humble Administrator's Garden", POIType: models.POITypeAttraction},
		},
	}
}

func (c *catalogue) CityExists(_ context.Context, cityID int64) (bool, error) {
	_, ok := c.cities[cityID]
	return ok, nil
}

func (c *catalogue) GetCitiesByIDs(_ context.Context, cityIDs []int64) ([]models.City, error) {
	out := []models.City{}
	// reverse order so the service has to restore the ledger order
	for i := len(cityIDs) - 1; i >= 0; i-- {
		if city, ok := c.cities[cityIDs[i]]; ok {
			out = append(out, city)
		}
	}
	return out, nil
}

func (c *catalogue) POIExists(_ context.Context, poiID int64) (bool, error) {
	_, ok := c.pois[poiID]
	return ok, nil
}

func (c *catalogue) GetPOIsByIDs(_ context.Context, poiIDs []int64) ([]models.POI, error) {
	out := []models.POI{}
	for _, id := range poiIDs {
		if p, ok := c.pois[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newLedgerService() (*ServiceImpl, *memoryLedger) {
	ledger := newMemoryLedger()
	cat := newCatalogue()
	return NewService(ledger, cat, cat, zap.NewNop()), ledger
}

func TestServiceToggleAlternates(t *testing.T) {
	svc, _ := newLedgerService()
	ctx := context.Background()
	visitor := models.VisitorIdentity("v1")

	want := true
	for i := 0; i < 4; i++ {
		got, err := svc.Toggle(ctx, visitor, 42, models.ItemTypeCity)
		require.NoError(t, err)
		assert.Equal(t, want, got, "toggle #%d", i+1)

		isFav, err := svc.IsFavorite(ctx, visitor, 42, models.ItemTypeCity)
		require.NoError(t, err)
		assert.Equal(t, want, isFav)
		want = !want
	}
}

func TestServiceToggleValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown city is not found and leaves the ledger alone", func(t *testing.T) {
		repo := new(MockRepository)
		cat := newCatalogue()
		svc := NewService(repo, cat, cat, zap.NewNop())

		_, err := svc.Toggle(ctx, models.UserIdentity(7), 9999, models.ItemTypeCity)
		assert.ErrorIs(t, err, models.ErrNotFound)
		repo.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown poi is not found", func(t *testing.T) {
		svc, _ := newLedgerService()
		_, err := svc.Toggle(ctx, models.VisitorIdentity("v1"), 9999, models.ItemTypePOI)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("anonymous callers have no owner", func(t *testing.T) {
		svc, _ := newLedgerService()
		_, err := svc.Toggle(ctx, models.Anonymous(), 42, models.ItemTypeCity)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestServiceToggleRetriesRace(t *testing.T) {
	ctx := context.Background()
	cat := newCatalogue()
	owner := models.UserOwner{ID: 7}

	t.Run("second attempt wins", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, cat, cat, zap.NewNop())
		repo.On("Toggle", mock.Anything, owner, int64(42), models.ItemTypeCity).Return(false, models.ErrFavoriteRace).Once()
		repo.On("Toggle", mock.Anything, owner, int64(42), models.ItemTypeCity).Return(false, nil).Once()

		got, err := svc.Toggle(ctx, models.UserIdentity(7), 42, models.ItemTypeCity)
		require.NoError(t, err)
		assert.False(t, got)
		repo.AssertNumberOfCalls(t, "Toggle", 2)
	})

	t.Run("two lost races surface as conflict", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, cat, cat, zap.NewNop())
		repo.On("Toggle", mock.Anything, owner, int64(42), models.ItemTypeCity).Return(false, models.ErrFavoriteRace).Twice()

		_, err := svc.Toggle(ctx, models.UserIdentity(7), 42, models.ItemTypeCity)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.NotErrorIs(t, err, models.ErrFavoriteRace)
		repo.AssertNumberOfCalls(t, "Toggle", 2)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, cat, cat, zap.NewNop())
		repo.On("Toggle", mock.Anything, owner, int64(42), models.ItemTypeCity).Return(false, errors.New("db down")).Once()

		_, err := svc.Toggle(ctx, models.UserIdentity(7), 42, models.ItemTypeCity)
		assert.Error(t, err)
		repo.AssertNumberOfCalls(t, "Toggle", 1)
	})
}

func TestServiceMergeVisitor(t *testing.T) {
	ctx := context.Background()

	t.Run("visitor favorite follows the user after login", func(t *testing.T) {
		svc, _ := newLedgerService()
		visitor := models.VisitorIdentity("v1")
		user := models.UserIdentity(7)

		got, err := svc.Toggle(ctx, visitor, 42, models.ItemTypeCity)
		require.NoError(t, err)
		require.True(t, got)

		_, err = svc.MergeVisitor(ctx, "v1", 7)
		require.NoError(t, err)

		cities, err := svc.ListByIdentity(ctx, user, models.ItemTypeCity)
		require.NoError(t, err)
		assert.Contains(t, cities, int64(42))

		stillVisitor, err := svc.IsFavorite(ctx, visitor, 42, models.ItemTypeCity)
		require.NoError(t, err)
		assert.False(t, stillVisitor)
	})

	t.Run("empty visitor set is a no-op", func(t *testing.T) {
		svc, _ := newLedgerService()
		user := models.UserIdentity(7)
		_, err := svc.Toggle(ctx, user, 43, models.ItemTypeCity)
		require.NoError(t, err)

		before, err := svc.ListByIdentity(ctx, user, models.ItemTypeCity)
		require.NoError(t, err)

		res, err := svc.MergeVisitor(ctx, "nobody", 7)
		require.NoError(t, err)
		assert.Equal(t, models.MergeResult{}, res)

		after, err := svc.ListByIdentity(ctx, user, models.ItemTypeCity)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("user keeps a superset and the visitor ends empty", func(t *testing.T) {
		svc, _ := newLedgerService()
		visitor := models.VisitorIdentity("v9")
		user := models.UserIdentity(8)

		for _, id := range []int64{42, 43} {
			_, err := svc.Toggle(ctx, visitor, id, models.ItemTypeCity)
			require.NoError(t, err)
		}
		_, err := svc.Toggle(ctx, visitor, 1, models.ItemTypePOI)
		require.NoError(t, err)
		_, err = svc.Toggle(ctx, user, 43, models.ItemTypeCity)
		require.NoError(t, err)

		res, err := svc.MergeVisitor(ctx, "v9", 8)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Moved)
		assert.Equal(t, int64(1), res.Dropped)

		cities, err := svc.ListByIdentity(ctx, user, models.ItemTypeCity)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{42, 43}, cities)
		pois, err := svc.ListByIdentity(ctx, user, models.ItemTypePOI)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, pois)

		left, err := svc.ListByIdentity(ctx, visitor, models.ItemTypeCity)
		require.NoError(t, err)
		assert.Empty(t, left)

		again, err := svc.MergeVisitor(ctx, "v9", 8)
		require.NoError(t, err)
		assert.Equal(t, models.MergeResult{}, again)
	})

	t.Run("empty visitor id is rejected", func(t *testing.T) {
		svc, _ := newLedgerService()
		_, err := svc.MergeVisitor(ctx, "", 7)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("retries a lost race once", func(t *testing.T) {
		repo := new(MockRepository)
		cat := newCatalogue()
		svc := NewService(repo, cat, cat, zap.NewNop())
		from := models.VisitorOwner{Token: "v1"}
		into := models.UserOwner{ID: 7}
		repo.On("Merge", mock.Anything, from, into).Return(models.MergeResult{}, models.ErrFavoriteRace).Once()
		repo.On("Merge", mock.Anything, from, into).Return(models.MergeResult{Moved: 1}, nil).Once()

		res, err := svc.MergeVisitor(ctx, "v1", 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Moved)
		repo.AssertExpectations(t)
	})
}

func TestServiceFavorites(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous gets an empty list", func(t *testing.T) {
		svc, _ := newLedgerService()
		view, err := svc.Favorites(ctx, models.Anonymous())
		require.NoError(t, err)
		assert.NotNil(t, view)
		assert.Empty(t, view)
	})

	t.Run("cities newest first with their favorited pois", func(t *testing.T) {
		svc, _ := newLedgerService()
		user := models.UserIdentity(7)
		for _, step := range []struct {
			id int64
			t  models.ItemType
		}{
			{42, models.ItemTypeCity},
			{1, models.ItemTypePOI},
			{43, models.ItemTypeCity},
			{2, models.ItemTypePOI},
		} {
			_, err := svc.Toggle(ctx, user, step.id, step.t)
			require.NoError(t, err)
		}

		view, err := svc.Favorites(ctx, user)
		require.NoError(t, err)
		require.Len(t, view, 2)

		assert.Equal(t, int64(43), view[0].ID)
		assert.Equal(t, 0, view[0].POICount)
		assert.Empty(t, view[0].POIs)

		assert.Equal(t, int64(42), view[1].ID)
		assert.True(t, view[1].IsFavorite)
		assert.Equal(t, 2, view[1].POICount)
		assert.Equal(t, int64(2), view[1].POIs[0].ID)
		assert.True(t, view[1].POIs[0].IsFavorite)
	})

	t.Run("pois without a favorited city are not shown", func(t *testing.T) {
		svc, _ := newLedgerService()
		visitor := models.VisitorIdentity("v1")
		_, err := svc.Toggle(ctx, visitor, 3, models.ItemTypePOI)
		require.NoError(t, err)

		view, err := svc.Favorites(ctx, visitor)
		require.NoError(t, err)
		assert.Empty(t, view)
	})
}

func TestEnsureItem(t *testing.T) {
	svc, _ := newLedgerService()
	ctx := context.Background()

	assert.NoError(t, svc.EnsureItem(ctx, 42, models.ItemTypeCity))
	assert.NoError(t, svc.EnsureItem(ctx, 3, models.ItemTypePOI))
	assert.ErrorIs(t, svc.EnsureItem(ctx, 9999, models.ItemTypeCity), models.ErrNotFound)
	assert.ErrorIs(t, svc.EnsureItem(ctx, 1, models.ItemType("hotel")), models.ErrValidation)
}
