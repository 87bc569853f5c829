package favorites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

var testCookie = middleware.VisitorCookie{Name: "visitor_id", MaxAge: 30 * 24 * 3600}

// newFavoritesRouter resolves identities from X-Test-User / the visitor
// cookie, the same precedence the real resolver applies.
func newFavoritesRouter(t *testing.T) (*gin.Engine, *memoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, ledger := newLedgerService()
	h := NewHandler(svc, testCookie, zap.NewNop())
	h.newID = func() string { return "minted-visitor" }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		visitor := testCookie.Read(c)
		switch {
		case c.GetHeader("X-Test-User") == "7":
			middleware.SetIdentity(c, models.Identity{Kind: models.IdentityUser, UserID: 7, PendingVisitorID: visitor})
		case visitor != "":
			middleware.SetIdentity(c, models.VisitorIdentity(visitor))
		}
		c.Next()
	})
	r.POST("/favorites/city/:id", h.Toggle(models.ItemTypeCity))
	r.POST("/favorites/poi/:id", h.Toggle(models.ItemTypePOI))
	r.GET("/favorites/", h.List)
	r.GET("/itinerary/favorites", middleware.RequireUser(), h.List)
	return r, ledger
}

func do(r *gin.Engine, method, path, visitor string, user bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if visitor != "" {
		req.AddCookie(&http.Cookie{Name: "visitor_id", Value: visitor})
	}
	if user {
		req.Header.Set("X-Test-User", "7")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestToggleHandlerMintsVisitor(t *testing.T) {
	r, _ := newFavoritesRouter(t)

	w := do(r, http.MethodPost, "/favorites/city/42", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ToggleFavoriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsFavorite)
	assert.Equal(t, "minted-visitor", resp.VisitorID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "visitor_id", cookies[0].Name)
	assert.Equal(t, "minted-visitor", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 30*24*3600, cookies[0].MaxAge)

	// the returning visitor toggles it back off without a new cookie
	w = do(r, http.MethodPost, "/favorites/city/42", "minted-visitor", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsFavorite)
	assert.Empty(t, w.Result().Cookies())
}

func TestToggleHandlerErrors(t *testing.T) {
	r, _ := newFavoritesRouter(t)

	t.Run("unknown city", func(t *testing.T) {
		w := do(r, http.MethodPost, "/favorites/city/9999", "v1", false)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown city does not mint a visitor", func(t *testing.T) {
		w := do(r, http.MethodPost, "/favorites/city/9999", "", false)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("bad id", func(t *testing.T) {
		w := do(r, http.MethodPost, "/favorites/poi/abc", "v1", false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestToggleHandlerUnknownItemKeepsPendingVisitor(t *testing.T) {
	r, ledger := newFavoritesRouter(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/favorites/city/42", "v1", false).Code)

	w := do(r, http.MethodPost, "/favorites/city/9999", "v1", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)
	assert.Empty(t, w.Result().Cookies())

	ctx := context.Background()
	visitorOwns, err := ledger.IsFavorite(ctx, models.VisitorOwner{Token: "v1"}, 42, models.ItemTypeCity)
	require.NoError(t, err)
	assert.True(t, visitorOwns)
	userOwns, err := ledger.IsFavorite(ctx, models.UserOwner{ID: 7}, 42, models.ItemTypeCity)
	require.NoError(t, err)
	assert.False(t, userOwns)
}

func TestToggleHandlerMergesPendingVisitorFirst(t *testing.T) {
	r, ledger := newFavoritesRouter(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/favorites/city/42", "v1", false).Code)

	// the merged favorite is toggled off by the user
	w := do(r, http.MethodPost, "/favorites/city/42", "v1", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_favorite":false}`, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
	assert.Empty(t, ledger.items[models.VisitorOwner{Token: "v1"}.String()])
}

func TestListHandlerMergesPendingVisitor(t *testing.T) {
	r, ledger := newFavoritesRouter(t)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/favorites/city/42", "v1", false).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/favorites/poi/1", "v1", false).Code)

	w := do(r, http.MethodGet, "/favorites/", "v1", true)
	require.Equal(t, http.StatusOK, w.Code)

	var cities []models.FavoriteCity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cities))
	require.Len(t, cities, 1)
	assert.Equal(t, int64(42), cities[0].ID)
	assert.Equal(t, 1, cities[0].POICount)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
	assert.Empty(t, ledger.items[models.VisitorOwner{Token: "v1"}.String()])
}

func TestListHandlerAnonymous(t *testing.T) {
	r, _ := newFavoritesRouter(t)

	w := do(r, http.MethodGet, "/favorites/", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/itinerary/favorites", "v1", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
