package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickblog/internal/config"
	"quickblog/internal/media"
	"quickblog/internal/models"
	"quickblog/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret   = "test-secret-key-12345678901234567890123456789012"
	testEmail    = "admin@example.com"
	testPassword = "correct-horse-battery"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "test",
		JWTSecret:        testSecret,
		AdminEmail:       testEmail,
		AdminPassword:    testPassword,
		MediaFolder:      "blogs",
		MediaPublicURL:   "https://media.test",
		MediaMaxUploadMB: 1,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupTestServer(t *testing.T, cfg *config.Config, host media.Host) *fiber.App {
	t.Helper()
	srv, err := NewServerWithDeps(cfg, setupTestDB(t), nil, host)
	require.NoError(t, err)
	return srv.App()
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func withToken(req *http.Request, token string) *http.Request {
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	body := `{"email":"` + testEmail + `","password":"` + testPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/Login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	status, env := do(t, app, req)
	require.Equal(t, http.StatusOK, status, env.Message)
	var data models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

// multipartRequest builds a request with the given text fields and, when
// image is non-nil, an "image" file part.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "cover.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func createPost(t *testing.T, app *fiber.App, token, title string) models.Post {
	t.Helper()
	blog := fmt.Sprintf(`{"title":%q,"subTitle":"sub","description":"A post about %s","category":"tech"}`, title, title)
	req := multipartRequest(t, http.MethodPost, "/api/blog/add", map[string]string{"blog": blog}, testutil.TinyPNG(t, 8, 8))

	status, env := do(t, app, withToken(req, token))
	require.Equal(t, http.StatusCreated, status, env.Message)
	assert.Equal(t, "Blog added successfully", env.Message)
	var post models.Post
	require.NoError(t, json.Unmarshal(env.Data, &post))
	return post
}

func decodePosts(t *testing.T, raw json.RawMessage) []models.Post {
	t.Helper()
	var posts []models.Post
	require.NoError(t, json.Unmarshal(raw, &posts))
	return posts
}

func TestAdminLogin(t *testing.T) {
	app := setupTestServer(t, testConfig(), testutil.NewMediaHostStub())

	t.Run("success", func(t *testing.T) {
		assert.NotEmpty(t, login(t, app))
	})

	t.Run("invalid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/Login",
			strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")

		status, env := do(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, env.Success)
		assert.Equal(t, "Invalid credentials", env.Message)
	})

	t.Run("path is case-insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login",
			strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")

		status, _ := do(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestAdminRoutes_AuthBoundary(t *testing.T) {
	app := setupTestServer(t, testConfig(), testutil.NewMediaHostStub())

	readerClaims := models.AdminClaims{
		Role: "reader",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "someone@example.com",
			Issuer:    "quickblog-api",
			Audience:  jwt.ClaimStrings{"quickblog-admin"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	readerToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, readerClaims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"no token", "", http.StatusUnauthorized, models.CodeUnauthorized, "No token provided"},
		{"garbage token", "not-a-jwt", http.StatusForbidden, models.CodeForbidden, "Invalid or expired token"},
		{"non-admin token", readerToken, http.StatusUnauthorized, models.CodeAdminRequired, "Admin authorization required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/blog/unpublished/all", nil)
			status, env := do(t, app, withToken(req, tt.token))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}

	t.Run("bearer prefix tolerated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/blog/unpublished/all", nil)
		status, env := do(t, app, withToken(req, "Bearer "+login(t, app)))
		assert.Equal(t, http.StatusOK, status, env.Message)
	})
}

func TestBlogLifecycle(t *testing.T) {
	host := testutil.NewMediaHostStub()
	app := setupTestServer(t, testConfig(), host)
	token := login(t, app)

	first := createPost(t, app, token, "Hello, World!")
	time.Sleep(5 * time.Millisecond)
	second := createPost(t, app, token, "Hello, World!")
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.False(t, first.IsPublished)
	assert.Contains(t, first.Image, "?tr=q-auto,f-webp,w-1280")
	assert.Equal(t, 2, host.Count())

	t.Run("drafts are hidden from the public", func(t *testing.T) {
		status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/"+first.ID.String(), nil))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Blog not found", env.Message)

		status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/slug/hello-world", nil))
		assert.Equal(t, http.StatusNotFound, status)

		req := httptest.NewRequest(http.MethodGet, "/api/blog/"+first.ID.String(), nil)
		status, _ = do(t, app, withToken(req, token))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("update title keeps slug", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPut, "/api/blog/"+first.ID.String(),
			map[string]string{"title": "Brand New Title", "subTitle": ""}, nil)
		status, env := do(t, app, withToken(req, token))
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.Equal(t, "Blog updated successfully", env.Message)

		var post models.Post
		require.NoError(t, json.Unmarshal(env.Data, &post))
		assert.Equal(t, "Brand New Title", post.Title)
		assert.Equal(t, "hello-world", post.Slug)
		assert.Nil(t, post.SubTitle)
		assert.Equal(t, first.Image, post.Image)
	})

	t.Run("update with JSON body and new image", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/blog/"+second.ID.String(),
			strings.NewReader(`{"category":"news"}`))
		req.Header.Set("Content-Type", "application/json")
		status, env := do(t, app, withToken(req, token))
		require.Equal(t, http.StatusOK, status, env.Message)

		req = multipartRequest(t, http.MethodPut, "/api/blog/"+second.ID.String(), nil, testutil.TinyPNG(t, 6, 6))
		status, env = do(t, app, withToken(req, token))
		require.Equal(t, http.StatusOK, status, env.Message)

		var post models.Post
		require.NoError(t, json.Unmarshal(env.Data, &post))
		assert.Equal(t, "news", post.Category)
		assert.NotEqual(t, second.Image, post.Image)
		assert.Equal(t, 2, host.Count(), "old image should be released")
	})

	t.Run("empty title rejected", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPut, "/api/blog/"+first.ID.String(), map[string]string{"title": " "}, nil)
		status, env := do(t, app, withToken(req, token))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.CodeValidation, env.Code)
	})

	t.Run("toggle publish", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/blog/publish/"+first.ID.String(), nil)
		status, env := do(t, app, withToken(req, token))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Blog is now Published", env.Message)
		assert.JSONEq(t, `{"isPublished":true}`, string(env.Data))

		_, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/published/all", nil))
		published := decodePosts(t, env.Data)
		require.Len(t, published, 1)
		assert.Equal(t, first.ID, published[0].ID)

		req = httptest.NewRequest(http.MethodGet, "/api/blog/unpublished/all", nil)
		_, env = do(t, app, withToken(req, token))
		unpublished := decodePosts(t, env.Data)
		require.Len(t, unpublished, 1)
		assert.Equal(t, second.ID, unpublished[0].ID)

		status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/slug/hello-world", nil))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("admin listing paginates", func(t *testing.T) {
		status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/all?page=abc&limit=1", nil))
		require.Equal(t, http.StatusOK, status)
		var page models.PostPage
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 1, page.Limit)
		assert.Equal(t, 2, page.TotalPages)
		assert.Equal(t, 1, page.Count)

		_, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/all?category=news", nil))
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, 1, page.Count)
		assert.Equal(t, second.ID, page.Blogs[0].ID)

		_, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/all?limit=500", nil))
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, 100, page.Limit)
		assert.Equal(t, 1, page.TotalPages)
	})

	t.Run("search", func(t *testing.T) {
		status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/search?q=BRAND", nil))
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decodePosts(t, env.Data), 1)

		status, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/search?q=nomatch-xyz", nil))
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, decodePosts(t, env.Data))

		status, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/search?q=", nil))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.CodeValidation, env.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/blog/12345", nil))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.CodeInvalidID, env.Code)
		assert.Equal(t, "Invalid blog ID", env.Message)
	})

	t.Run("delete then fetch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/blog/"+first.ID.String(), nil)
		status, env := do(t, app, withToken(req, token))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Blog deleted successfully", env.Message)

		req = httptest.NewRequest(http.MethodGet, "/api/blog/"+first.ID.String(), nil)
		status, _ = do(t, app, withToken(req, token))
		assert.Equal(t, http.StatusNotFound, status)

		req = httptest.NewRequest(http.MethodGet, "/api/blog/slug/hello-world", nil)
		status, _ = do(t, app, withToken(req, token))
		assert.Equal(t, http.StatusNotFound, status)

		assert.Equal(t, 1, host.Count())
	})
}

func TestCreatePost_BadRequests(t *testing.T) {
	host := testutil.NewMediaHostStub()
	app := setupTestServer(t, testConfig(), host)
	token := login(t, app)
	valid := `{"title":"T","description":"D","category":"C"}`

	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
		msg    string
	}{
		{"missing blog field", nil, testutil.TinyPNG(t, 2, 2), "Blog data is required"},
		{"malformed blog json", map[string]string{"blog": "{"}, testutil.TinyPNG(t, 2, 2), "Invalid blog data"},
		{"missing image", map[string]string{"blog": valid}, nil, "Image is required"},
		{"missing category", map[string]string{"blog": `{"title":"T","description":"D"}`}, testutil.TinyPNG(t, 2, 2), "Category is required"},
		{"not an image", map[string]string{"blog": valid}, []byte("GIF? no, plain text"), "Invalid image type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, http.MethodPost, "/api/blog/add", tt.fields, tt.image)
			status, env := do(t, app, withToken(req, token))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, env.Code)
			assert.Equal(t, tt.msg, env.Message)
		})
	}
	assert.Zero(t, host.Count())
}

func TestCreatePost_MediaHostDown(t *testing.T) {
	host := testutil.NewMediaHostStub()
	host.UploadErr = fmt.Errorf("dial tcp 10.0.0.1:443: connection refused")
	app := setupTestServer(t, testConfig(), host)
	token := login(t, app)

	req := multipartRequest(t, http.MethodPost, "/api/blog/add",
		map[string]string{"blog": `{"title":"T","description":"D","category":"C"}`}, testutil.TinyPNG(t, 2, 2))
	status, env := do(t, app, withToken(req, token))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, models.CodeUpstream, env.Code)
	assert.NotContains(t, env.Message, "10.0.0.1")

	_, env = do(t, app, withToken(httptest.NewRequest(http.MethodGet, "/api/blog/all", nil), token))
	var page models.PostPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Zero(t, page.Count, "no post may be stored when the upload fails")
}

func TestHealthEndpoints(t *testing.T) {
	app := setupTestServer(t, testConfig(), testutil.NewMediaHostStub())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "API is Working", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var ready map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", ready["status"])
	assert.Equal(t, "disabled", ready["checks"].(map[string]any)["redis"])
}

func TestServeMedia_LocalHost(t *testing.T) {
	cfg := testConfig()
	cfg.MediaPublicURL = "/media"
	local, err := media.NewLocalHost(t.TempDir(), cfg.MediaPublicURL)
	require.NoError(t, err)
	app := setupTestServer(t, cfg, media.Instrument(local))
	token := login(t, app)

	post := createPost(t, app, token, "Local Image")
	require.True(t, strings.HasPrefix(post.Image, "/media/blogs/"), post.Image)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, strings.Replace(post.Image, "w-1280", "w-4", 1)+",f-png", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/media/blogs/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, status)
}
