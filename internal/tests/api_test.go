package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/router"
	"github.com/nutriforum/pricing-backend/internal/testutil"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   *struct {
		Code    string                  `json:"code"`
		Message string                  `json:"message"`
		Details []utils.ValidationError `json:"details"`
	} `json:"error"`
}

type PriceAPITestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	deps      *router.Dependencies
	user      string
	moderator string
	admin     string
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret", Issuer: "nutriforum-auth"},
		Pricing: config.PricingConfig{
			MinSampleSize:          3,
			RecalcAfterUpdates:     10,
			StalenessCheckInterval: time.Minute,
			AuditDefaultLimit:      10,
			AuditMaxLimit:          100,
			RecipeQueueSize:        16,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func (suite *PriceAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize("../i18n/locales", "en"))
}

func (suite *PriceAPITestSuite) SetupTest() {
	cfg := testConfig()
	suite.db = testutil.NewDB(suite.T())

	deps, err := router.NewDependencies(suite.db, cfg)
	suite.Require().NoError(err)
	suite.deps = deps
	suite.router = router.Initialize(deps, cfg)

	suite.user = suite.token(models.UserRoleUser)
	suite.moderator = suite.token(models.UserRoleModerator)
	suite.admin = suite.token(models.UserRoleAdmin)
}

func (suite *PriceAPITestSuite) TearDownTest() {
	suite.deps.Close()
}

func (suite *PriceAPITestSuite) token(role models.UserRole) string {
	cfg := testConfig()
	return testutil.Token(suite.T(), cfg.JWT.SecretKey, cfg.JWT.Issuer, uuid.New(), string(role), time.Hour)
}

func (suite *PriceAPITestSuite) do(method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (suite *PriceAPITestSuite) decode(raw json.RawMessage, into interface{}) {
	suite.Require().NoError(json.Unmarshal(raw, into))
}

func (suite *PriceAPITestSuite) TestHealth() {
	w, _ := suite.do(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *PriceAPITestSuite) TestAuthentication() {
	w, env := suite.do(http.MethodGet, "/v1/foods", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("UNAUTHORIZED", env.Error.Code)

	w, _ = suite.do(http.MethodGet, "/v1/foods", "not-a-jwt", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/foods", suite.user, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *PriceAPITestSuite) TestModeratorEndpointsRejectUsers() {
	food := testutil.CreateFood(suite.T(), suite.db, "Lentils", "10", models.PriceUnitPer100g, "TRY")

	paths := []struct{ method, path string }{
		{http.MethodPatch, "/v1/foods/" + food.ID.String() + "/price"},
		{http.MethodPost, "/v1/foods/" + food.ID.String() + "/price-override"},
		{http.MethodGet, "/v1/price-audits"},
		{http.MethodGet, "/v1/price-thresholds"},
		{http.MethodPost, "/v1/price-thresholds/recalculate"},
		{http.MethodGet, "/v1/price-reports"},
	}
	for _, p := range paths {
		w, env := suite.do(p.method, p.path, suite.user, map[string]string{})
		suite.Equal(http.StatusForbidden, w.Code, p.path)
		suite.Equal("FORBIDDEN", env.Error.Code, p.path)
	}
}

func (suite *PriceAPITestSuite) TestPriceUpdateOverrideAndAudit() {
	testutil.CreateThreshold(suite.T(), suite.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(suite.T(), suite.db, "Lentils", "", models.PriceUnitPer100g, "TRY")
	base := "/v1/foods/" + food.ID.String()

	w, env := suite.do(http.MethodPatch, base+"/price", suite.moderator, map[string]interface{}{
		"base_price": "15",
		"price_unit": "per_100g",
		"currency":   "try",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Food    models.Food `json:"food"`
		AuditID uuid.UUID   `json:"audit_id"`
	}
	suite.decode(env.Data, &updated)
	suite.Equal(models.PriceCategoryTier2, *updated.Food.Category)
	suite.Equal("TRY", updated.Food.Currency)

	w, env = suite.do(http.MethodPost, base+"/price-override", suite.moderator, map[string]string{
		"category": "tier_3",
		"reason":   "specialty product",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.decode(env.Data, &updated)
	suite.Equal(models.PriceCategoryTier3, *updated.Food.Category)

	w, env = suite.do(http.MethodDelete, base+"/price-override", suite.moderator, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.decode(env.Data, &updated)
	suite.Equal(models.PriceCategoryTier2, *updated.Food.Category)

	w, env = suite.do(http.MethodGet, base+"/price-audits", suite.moderator, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var entries []models.PriceAudit
	suite.decode(env.Data, &entries)
	suite.Require().Len(entries, 3)
	suite.Equal(models.ChangeTypeCategoryOverride, entries[0].ChangeType)
	suite.Equal(models.ChangeTypePriceUpdate, entries[2].ChangeType)

	w, env = suite.do(http.MethodGet, "/v1/price-audits?change_type=price_update&food_id="+food.ID.String(), suite.moderator, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(env.Data, &entries)
	suite.Len(entries, 1)

	w, env = suite.do(http.MethodGet, base, suite.user, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var stored models.Food
	suite.decode(env.Data, &stored)
	suite.True(stored.BasePrice.Decimal.Equal(testutil.Dec("15")))
	suite.Equal(int64(3), stored.PriceVersion)
}

func (suite *PriceAPITestSuite) TestPriceUpdateValidation() {
	food := testutil.CreateFood(suite.T(), suite.db, "Bulgur", "4", models.PriceUnitPer100g, "TRY")
	path := "/v1/foods/" + food.ID.String() + "/price"

	w, env := suite.do(http.MethodPatch, path, suite.moderator, map[string]interface{}{
		"base_price":        "5",
		"price_unit":        "per_100g",
		"currency":          "TRY",
		"override_category": "tier_1",
		"override_reason":   "staple",
		"clear_override":    true,
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)
	suite.Require().Len(env.Error.Details, 1)
	suite.Equal("clear_override", env.Error.Details[0].Field)

	w, env = suite.do(http.MethodPatch, path, suite.moderator, map[string]interface{}{
		"base_price": "5",
		"price_unit": "per_kg",
		"currency":   "TRY",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("price_unit", env.Error.Details[0].Field)

	invalidPrices := []map[string]interface{}{
		{"price_unit": "per_100g", "currency": "TRY", "override_category": "tier_3", "override_reason": "premium import"},
		{"base_price": "abc", "price_unit": "per_100g", "currency": "TRY"},
		{"base_price": "10.004", "price_unit": "per_100g", "currency": "TRY"},
		{"base_price": "10000000000", "price_unit": "per_100g", "currency": "TRY"},
	}
	for _, body := range invalidPrices {
		w, env = suite.do(http.MethodPatch, path, suite.moderator, body)
		suite.Equal(http.StatusBadRequest, w.Code, w.Body.String())
		suite.Require().NotNil(env.Error)
		suite.Equal("VALIDATION_ERROR", env.Error.Code)
		suite.Require().Len(env.Error.Details, 1)
		suite.Equal("base_price", env.Error.Details[0].Field)
	}

	var stored models.Food
	suite.Require().NoError(suite.db.First(&stored, "id = ?", food.ID).Error)
	suite.True(stored.BasePrice.Decimal.Equal(testutil.Dec("4")))
	suite.Nil(stored.CategoryOverriddenBy)

	w, _ = suite.do(http.MethodPatch, "/v1/foods/not-a-uuid/price", suite.moderator, map[string]interface{}{})
	suite.Equal(http.StatusBadRequest, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/price-audits?change_type=guess", suite.moderator, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *PriceAPITestSuite) TestUnknownFoodIsLocalized() {
	path := "/v1/foods/" + uuid.New().String()

	w, env := suite.do(http.MethodGet, path, suite.user, nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Food not found", env.Error.Message)

	w, env = suite.do(http.MethodGet, path, suite.user, nil, "Accept-Language", "tr-TR,tr;q=0.9")
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Gıda bulunamadı", env.Error.Message)
}

func (suite *PriceAPITestSuite) TestRecalculateThresholds() {
	testutil.CreateFood(suite.T(), suite.db, "A", "10", models.PriceUnitPerUnit, "EUR")
	testutil.CreateFood(suite.T(), suite.db, "B", "20", models.PriceUnitPerUnit, "EUR")
	body := map[string]string{"price_unit": "per_unit", "currency": "EUR"}

	w, env := suite.do(http.MethodPost, "/v1/price-thresholds/recalculate", suite.moderator, body)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Skipped    bool `json:"skipped"`
		SampleSize int  `json:"sample_size"`
	}
	suite.decode(env.Data, &result)
	suite.True(result.Skipped)
	suite.Equal(2, result.SampleSize)

	testutil.CreateFood(suite.T(), suite.db, "C", "30", models.PriceUnitPerUnit, "EUR")
	w, env = suite.do(http.MethodPost, "/v1/price-thresholds/recalculate", suite.moderator, body)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(env.Data, &result)
	suite.False(result.Skipped)

	w, env = suite.do(http.MethodGet, "/v1/price-thresholds?currency=EUR", suite.moderator, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var thresholds []models.PriceCategoryThreshold
	suite.decode(env.Data, &thresholds)
	suite.Require().Len(thresholds, 1)
	suite.True(thresholds[0].LowerThreshold.Decimal.Equal(testutil.Dec("10")))
	suite.True(thresholds[0].UpperThreshold.Decimal.Equal(testutil.Dec("20")))

	w, _ = suite.do(http.MethodPost, "/v1/price-thresholds/recalculate", suite.moderator, map[string]string{"price_unit": "per_unit", "currency": "USD"})
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *PriceAPITestSuite) TestReportWorkflow() {
	food := testutil.CreateFood(suite.T(), suite.db, "Olive oil", "120", models.PriceUnitPerUnit, "TRY")

	w, env := suite.do(http.MethodPost, "/v1/price-reports", suite.user, map[string]string{
		"food_id":     food.ID.String(),
		"description": "Supermarkets sell it for half",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var report models.PriceReport
	suite.decode(env.Data, &report)
	suite.Equal(models.ReportStatusOpen, report.Status)
	path := "/v1/price-reports/" + report.ID.String()

	w, _ = suite.do(http.MethodPatch, path, suite.moderator, map[string]string{"status": "resolved"})
	suite.Equal(http.StatusBadRequest, w.Code)

	w, _ = suite.do(http.MethodPatch, path, suite.moderator, map[string]string{"status": "in_review"})
	suite.Equal(http.StatusOK, w.Code)

	w, env = suite.do(http.MethodPatch, path, suite.moderator, map[string]string{
		"status":           "resolved",
		"resolution_notes": "Price corrected",
	})
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(env.Data, &report)
	suite.Equal(models.ReportStatusResolved, report.Status)
	suite.NotNil(report.ResolvedBy)

	w, env = suite.do(http.MethodPatch, path, suite.moderator, map[string]string{"status": "in_review"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("status", env.Error.Details[0].Field)

	w, env = suite.do(http.MethodGet, "/v1/price-reports?status=resolved", suite.moderator, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var reports []models.PriceReport
	suite.decode(env.Data, &reports)
	suite.Len(reports, 1)

	w, _ = suite.do(http.MethodPost, "/v1/price-reports", suite.user, map[string]string{
		"food_id":     uuid.New().String(),
		"description": "Does not exist",
	})
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *PriceAPITestSuite) TestAuditExportRequiresAdmin() {
	w, _ := suite.do(http.MethodPost, "/v1/price-audits/export", suite.moderator, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	// No bucket is configured in tests.
	w, env := suite.do(http.MethodPost, "/v1/price-audits/export", suite.admin, nil)
	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Equal("SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestPriceAPITestSuite(t *testing.T) {
	suite.Run(t, new(PriceAPITestSuite))
}
