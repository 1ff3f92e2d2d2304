package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/broker"
	"github.com/Baaaki/imf-gadgets/internal/codename"
	"github.com/Baaaki/imf-gadgets/internal/config"
	"github.com/Baaaki/imf-gadgets/internal/handler"
	"github.com/Baaaki/imf-gadgets/internal/middleware"
	"github.com/Baaaki/imf-gadgets/internal/repository"
	"github.com/Baaaki/imf-gadgets/internal/service"
	"github.com/Baaaki/imf-gadgets/internal/testutil"
	"github.com/Baaaki/imf-gadgets/internal/utils"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      testSecret,
		JWTExpiry:      time.Hour,
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// testApp wires the real services and router over a test database
type testApp struct {
	router  *gin.Engine
	events  *broker.MemoryEventBroker
	handler handler.Handlers
}

func newTestApp(db *gorm.DB, limiter *middleware.RateLimiter) *testApp {
	cfg := testConfig()
	events := broker.NewMemoryEventBroker()

	authService := service.NewAuthService(repository.NewUserRepository(db), cfg.JWTSecret, cfg.JWTExpiry)
	gadgetService := service.NewGadgetService(
		repository.NewGadgetRepository(db),
		codename.NewGenerator(nil, 0),
		events,
	)

	h := handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Gadgets:     handler.NewGadgetHandler(gadgetService).WithProbability(func() int { return 42 }),
		EventFeed:   handler.NewEventFeedHandler(events, cfg.AllowedOrigins),
		AuthLimiter: limiter,
	}

	return &testApp{
		router:  handler.NewRouter(cfg, h),
		events:  events,
		handler: h,
	}
}

func doJSON(router http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// AuthHandlerIntegrationTestSuite defines test suite
type AuthHandlerIntegrationTestSuite struct {
	suite.Suite
	testDB *testutil.TestDatabase
	app    *testApp
}

// SetupSuite runs before all tests
func (s *AuthHandlerIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	logger.Init(false)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.app = newTestApp(s.testDB.DB, nil)
}

// TearDownSuite runs after all tests
func (s *AuthHandlerIntegrationTestSuite) TearDownSuite() {
	s.app.events.Close()
	s.testDB.Teardown(s.T())
}

// SetupTest runs before each test (clean database)
func (s *AuthHandlerIntegrationTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterSuccess() {
	w := doJSON(s.app.router, http.MethodPost, "/auth/register", map[string]string{
		"username": "ethan",
		"password": "pw123",
	}, "")

	assert.Equal(s.T(), http.StatusCreated, w.Code)

	response := decode(s.T(), w)
	assert.Equal(s.T(), "ethan", response["username"])
	assert.NotEmpty(s.T(), response["id"])
	assert.Len(s.T(), response, 2, "only id and username are exposed")
	assert.NotContains(s.T(), w.Body.String(), "password")
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterDuplicateUsername() {
	testutil.CreateTestUser(s.T(), s.testDB.DB, "ethan", "pw123")

	w := doJSON(s.app.router, http.MethodPost, "/auth/register", map[string]string{
		"username": "ethan",
		"password": "other",
	}, "")

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "Registration failed", decode(s.T(), w)["error"])
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterInvalidInput() {
	testCases := []struct {
		name     string
		body     interface{}
		expected string
	}{
		{"missing username", map[string]string{"password": "pw123"}, "username is required"},
		{"missing password", map[string]string{"username": "ethan"}, "password is required"},
		{"blank username", map[string]string{"username": "   ", "password": "pw123"}, "username is required"},
		{"not json", "plain text", "Invalid request body"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := doJSON(s.app.router, http.MethodPost, "/auth/register", tc.body, "")

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			assert.Equal(s.T(), tc.expected, decode(s.T(), w)["error"])
		})
	}
}

func (s *AuthHandlerIntegrationTestSuite) TestLoginSuccess() {
	user := testutil.CreateTestUser(s.T(), s.testDB.DB, "ethan", "pw123")

	w := doJSON(s.app.router, http.MethodPost, "/auth/login", map[string]string{
		"username": "ethan",
		"password": "pw123",
	}, "")

	require.Equal(s.T(), http.StatusOK, w.Code)

	token, ok := decode(s.T(), w)["accessToken"].(string)
	require.True(s.T(), ok)

	claims, err := utils.ValidateToken(token, testSecret)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, claims.UserID)
	assert.WithinDuration(s.T(), time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func (s *AuthHandlerIntegrationTestSuite) TestLoginInvalidCredentials() {
	testutil.CreateTestUser(s.T(), s.testDB.DB, "ethan", "pw123")

	wrongPassword := doJSON(s.app.router, http.MethodPost, "/auth/login", map[string]string{
		"username": "ethan",
		"password": "wrong",
	}, "")
	unknownUser := doJSON(s.app.router, http.MethodPost, "/auth/login", map[string]string{
		"username": "nobody",
		"password": "pw123",
	}, "")

	// Both failures look the same to the caller
	for _, w := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
		assert.JSONEq(s.T(), `{"error":"Invalid credentials"}`, w.Body.String())
	}
}

func (s *AuthHandlerIntegrationTestSuite) TestLoginMissingFields() {
	w := doJSON(s.app.router, http.MethodPost, "/auth/login", map[string]string{
		"username": "ethan",
	}, "")

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "Invalid request body", decode(s.T(), w)["error"])
}

func (s *AuthHandlerIntegrationTestSuite) TestHealth() {
	w := doJSON(s.app.router, http.MethodGet, "/health", nil, "")

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "ok", decode(s.T(), w)["status"])
	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func (s *AuthHandlerIntegrationTestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/gadgets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()

	s.app.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusNoContent, w.Code)
	assert.Equal(s.T(), "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(s.T(), w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func (s *AuthHandlerIntegrationTestSuite) TestAuthRoutesRateLimited() {
	testRedis := testutil.SetupTestRedis(s.T())
	defer testRedis.Teardown(s.T())

	client := testRedis.Client(s.T())
	limiter := middleware.NewRateLimiter(client, "auth", middleware.RateLimiterConfig{
		MaxRequests: 2,
		Window:      time.Minute,
		BlockTime:   time.Minute,
	})
	app := newTestApp(s.testDB.DB, limiter)
	defer app.events.Close()

	body := map[string]string{"username": "nobody", "password": "pw123"}
	for i := 0; i < 2; i++ {
		w := doJSON(app.router, http.MethodPost, "/auth/login", body, "")
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	}

	w := doJSON(app.router, http.MethodPost, "/auth/login", body, "")
	assert.Equal(s.T(), http.StatusTooManyRequests, w.Code)
	assert.Equal(s.T(), "60", w.Header().Get("Retry-After"))

	// Gadget listing is not behind the limiter
	w = doJSON(app.router, http.MethodGet, "/gadgets", nil, "")
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

// TestSuite runs all tests in the suite
func TestAuthHandlerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerIntegrationTestSuite))
}
