package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capsules/internal/config"
	"capsules/internal/database"
	"capsules/internal/lifecycle"
	"capsules/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiFixture struct {
	app *fiber.App
	srv *Server
	db  *gorm.DB
}

func newAPIFixture(t *testing.T, dbName string) *apiFixture {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		Env:       "test",
		DBName:    dbName,
		JWTSecret: "server-test-secret",
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)

	srv := NewServerWithDeps(cfg, db, nil)
	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	return &apiFixture{app: app, srv: srv, db: db}
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// signup registers an account and returns its token and user id.
func (f *apiFixture) signup(t *testing.T, username string) (string, uint) {
	t.Helper()
	resp := f.request(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "Sufficient-Length-1!",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Token string         `json:"token"`
		User  models.Profile `json:"user"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	require.NotZero(t, body.User.ID)
	return body.Token, body.User.ID
}

func validCapsuleContent(suffix string) string {
	return strings.Repeat("thoughtful words here ", 5) + suffix
}

func TestSignupAndLogin(t *testing.T) {
	f := newAPIFixture(t, "api_auth")

	token, _ := f.signup(t, "firstwriter")
	assert.NotEmpty(t, token)

	// Duplicate email is rejected.
	resp := f.request(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": "otherwriter",
		"email":    "firstwriter@example.com",
		"password": "Sufficient-Length-1!",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Weak password never reaches the database.
	resp = f.request(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": "weakling",
		"email":    "weakling@example.com",
		"password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "firstwriter@example.com",
		"password": "Sufficient-Length-1!",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &login)
	assert.NotEmpty(t, login.Token)

	resp = f.request(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "firstwriter@example.com",
		"password": "Wrong-Password-1!",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupRejectsUnknownInterest(t *testing.T) {
	f := newAPIFixture(t, "api_interests")

	resp := f.request(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username":  "curious",
		"email":     "curious@example.com",
		"password":  "Sufficient-Length-1!",
		"interests": []string{"Science", "Astrology"},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCapsuleSubmitRequiresAuth(t *testing.T) {
	f := newAPIFixture(t, "api_authz")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", "", fiber.Map{
		"content": validCapsuleContent("anonymous"),
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPost, "/api/capsules", "not-a-token", fiber.Map{
		"content": validCapsuleContent("forged"),
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCapsuleVisibilityOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_visibility")

	authorToken, _ := f.signup(t, "author")
	strangerToken, _ := f.signup(t, "stranger")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", authorToken, fiber.Map{
		"content": validCapsuleContent("incubating"),
		"tags":    []string{"Science"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	assert.False(t, capsule.IsPublished)
	assert.True(t, capsule.PublishesAt.After(capsule.CreatedAt))

	path := fmt.Sprintf("/api/capsules/%d", capsule.ID)

	// The author sees their incubating capsule.
	resp = f.request(t, fiber.MethodGet, path, authorToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Everyone else gets the same 404 as for a capsule that never existed.
	resp = f.request(t, fiber.MethodGet, path, strangerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodGet, path, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCapsuleContentBoundsOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_bounds")
	token, _ := f.signup(t, "terse")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": "too short",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": strings.Repeat("x", 2001),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWithdrawCapsuleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_withdraw")

	authorToken, _ := f.signup(t, "regretful")
	strangerToken, _ := f.signup(t, "meddler")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", authorToken, fiber.Map{
		"content": validCapsuleContent("second thoughts"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)

	path := fmt.Sprintf("/api/capsules/%d", capsule.ID)

	// A non-author cannot withdraw; the failure is a conflict, not a 403,
	// so ownership is not disclosed.
	resp = f.request(t, fiber.MethodDelete, path, strangerToken, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodDelete, path, authorToken, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Withdrawn means gone, even for the author.
	resp = f.request(t, fiber.MethodGet, path, authorToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Withdrawing twice fails the same way as withdrawing after publication.
	resp = f.request(t, fiber.MethodDelete, path, authorToken, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestWithdrawDeniedAfterPublicationOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_withdraw_late")
	token, userID := f.signup(t, "committed")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": validCapsuleContent("permanent"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	require.Equal(t, userID, capsule.AuthorID)

	// Backdate the window so the capsule is past its publication instant.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.Capsule{}).
		Where("id = ?", capsule.ID).
		Update("publishes_at", past).Error)

	resp = f.request(t, fiber.MethodDelete, fmt.Sprintf("/api/capsules/%d", capsule.ID), token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The capsule survived the attempt and is now publicly readable.
	resp = f.request(t, fiber.MethodGet, fmt.Sprintf("/api/capsules/%d", capsule.ID), "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// publishCapsule flips a capsule to published immediately, standing in for
// the sweeper.
func (f *apiFixture) publishCapsule(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Capsule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_published": true,
			"publishes_at": time.Now().Add(-time.Minute),
		}).Error)
}

func TestReactionToggleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_reaction")

	authorToken, _ := f.signup(t, "poster")
	readerToken, _ := f.signup(t, "reader")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", authorToken, fiber.Map{
		"content": validCapsuleContent("react to this"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)

	path := fmt.Sprintf("/api/capsules/%d/reaction", capsule.ID)

	// Incubating capsules cannot be reacted to.
	resp = f.request(t, fiber.MethodPost, path, readerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	f.publishCapsule(t, capsule.ID)

	var toggle struct {
		Added bool `json:"added"`
	}
	resp = f.request(t, fiber.MethodPost, path, readerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &toggle)
	assert.True(t, toggle.Added)

	resp = f.request(t, fiber.MethodPost, path, readerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &toggle)
	assert.False(t, toggle.Added)
}

func TestRecordReadOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_read")

	authorToken, _ := f.signup(t, "essayist")
	readerToken, readerID := f.signup(t, "dweller")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", authorToken, fiber.Map{
		"content": validCapsuleContent("worth dwelling on"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	f.publishCapsule(t, capsule.ID)

	path := fmt.Sprintf("/api/capsules/%d/read", capsule.ID)

	resp = f.request(t, fiber.MethodPost, path, readerToken, fiber.Map{"seconds": -3})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// A bounce and a counted read return the identical status.
	resp = f.request(t, fiber.MethodPost, path, readerToken, fiber.Map{"seconds": 2})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPost, path, readerToken, fiber.Map{"seconds": 45})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var events []models.ReadEvent
	require.NoError(t, f.db.Where("user_id = ?", readerID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, 45, events[0].ReadSeconds)
}

func TestResponsesOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_responses")

	authorToken, _ := f.signup(t, "opener")
	replierToken, _ := f.signup(t, "replier")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", authorToken, fiber.Map{
		"content": validCapsuleContent("discuss below"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	f.publishCapsule(t, capsule.ID)

	respPath := fmt.Sprintf("/api/capsules/%d/responses", capsule.ID)

	resp = f.request(t, fiber.MethodPost, respPath, replierToken, fiber.Map{
		"content": "this is a sufficiently long reply",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var response models.Response
	decodeBody(t, resp, &response)
	assert.False(t, response.IsPublished)

	// A short reply is rejected.
	resp = f.request(t, fiber.MethodPost, respPath, replierToken, fiber.Map{
		"content": "too short",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// The incubating response is invisible to the public listing but the
	// replier sees their own.
	resp = f.request(t, fiber.MethodGet, respPath, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var publicList []models.Response
	decodeBody(t, resp, &publicList)
	assert.Empty(t, publicList)

	resp = f.request(t, fiber.MethodGet, respPath, replierToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var ownList []models.Response
	decodeBody(t, resp, &ownList)
	require.Len(t, ownList, 1)

	// Withdrawing the response during incubation removes it and its counter.
	resp = f.request(t, fiber.MethodDelete, fmt.Sprintf("/api/responses/%d", response.ID), replierToken, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var parent models.Capsule
	require.NoError(t, f.db.First(&parent, capsule.ID).Error)
	assert.Equal(t, 0, parent.ResponseCount)
}

func TestLatestFeedExcludesIncubating(t *testing.T) {
	f := newAPIFixture(t, "api_latest")
	token, _ := f.signup(t, "prolific")

	var published, incubating models.Capsule

	resp := f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": validCapsuleContent("published one"),
		"tags":    []string{"Science"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &published)
	f.publishCapsule(t, published.ID)

	resp = f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": validCapsuleContent("still incubating"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &incubating)

	resp = f.request(t, fiber.MethodGet, "/api/feed/latest", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var latest []models.Capsule
	decodeBody(t, resp, &latest)
	require.Len(t, latest, 1)
	assert.Equal(t, published.ID, latest[0].ID)
	require.NotNil(t, latest[0].AuthorProfile)
	assert.Equal(t, "prolific", latest[0].AuthorProfile.Username)

	// Topic filter drops untagged capsules.
	resp = f.request(t, fiber.MethodGet, "/api/feed/latest?topic=Technology", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var filtered []models.Capsule
	decodeBody(t, resp, &filtered)
	assert.Empty(t, filtered)

	// The incubating feed shows the author's pending capsule.
	resp = f.request(t, fiber.MethodGet, "/api/feed/incubating", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pending []models.Capsule
	decodeBody(t, resp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, incubating.ID, pending[0].ID)
}

func TestComposedFeedOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_feed")
	token, _ := f.signup(t, "composerfan")

	resp := f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": validCapsuleContent("feed fodder"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	f.publishCapsule(t, capsule.ID)

	resp = f.request(t, fiber.MethodGet, "/api/feed", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var bundle struct {
		ForYou     []models.Capsule  `json:"for_you"`
		Latest     []models.Capsule  `json:"latest"`
		Incubating []models.Capsule  `json:"incubating"`
		Errors     map[string]string `json:"errors"`
	}
	decodeBody(t, resp, &bundle)
	assert.Len(t, bundle.Latest, 1)
	assert.Len(t, bundle.ForYou, 1)
	assert.Empty(t, bundle.Errors)

	resp = f.request(t, fiber.MethodGet, "/api/feed?topic=Astrology", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProfileEndpoints(t *testing.T) {
	f := newAPIFixture(t, "api_profiles")
	token, userID := f.signup(t, "selfaware")

	resp := f.request(t, fiber.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me struct {
		User       models.Profile `json:"user"`
		DepthLabel string         `json:"depth_label"`
	}
	decodeBody(t, resp, &me)
	assert.Equal(t, userID, me.User.ID)
	assert.Empty(t, me.DepthLabel)

	resp = f.request(t, fiber.MethodPut, "/api/users/me", token, fiber.Map{
		"display_name": "Self Aware",
		"bio":          "I think, therefore I post.",
		"interests":    []string{"Philosophy"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPut, "/api/users/me", token, fiber.Map{
		"bio": strings.Repeat("x", 281),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodGet, fmt.Sprintf("/api/users/%d", userID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var public struct {
		User struct {
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Bio         string `json:"bio"`
		} `json:"user"`
	}
	decodeBody(t, resp, &public)
	assert.Equal(t, "Self Aware", public.User.DisplayName)
	assert.Equal(t, "I think, therefore I post.", public.User.Bio)

	resp = f.request(t, fiber.MethodGet, "/api/users/99999", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestNewsEndpoints(t *testing.T) {
	f := newAPIFixture(t, "api_news")

	item := &models.NewsItem{
		Title:       "Fusion milestone announced",
		URL:         "https://example.com/fusion",
		Source:      "example.com",
		Summary:     "A summary.",
		PublishedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.db.Create(item).Error)

	resp := f.request(t, fiber.MethodGet, "/api/news", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var items []models.NewsItem
	decodeBody(t, resp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Fusion milestone announced", items[0].Title)

	resp = f.request(t, fiber.MethodGet, fmt.Sprintf("/api/news/%d/discuss", item.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var prefill struct {
		Prefill string `json:"prefill"`
		URL     string `json:"url"`
	}
	decodeBody(t, resp, &prefill)
	assert.Contains(t, prefill.Prefill, "Fusion milestone announced")
	assert.Equal(t, item.URL, prefill.URL)

	resp = f.request(t, fiber.MethodGet, "/api/news/424242/discuss", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestIncubationWindowLengthOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "api_window")
	token, _ := f.signup(t, "patient")

	before := time.Now()
	resp := f.request(t, fiber.MethodPost, "/api/capsules", token, fiber.Map{
		"content": validCapsuleContent("three hours from now"),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var capsule models.Capsule
	decodeBody(t, resp, &capsule)
	after := time.Now()

	window := lifecycle.IncubationPeriod
	assert.False(t, capsule.PublishesAt.Before(before.Add(window)))
	assert.False(t, capsule.PublishesAt.After(after.Add(window)))
}
