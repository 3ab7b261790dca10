package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/testutil"
)

type PriceServiceTestSuite struct {
	suite.Suite
	db         *gorm.DB
	audits     *AuditService
	thresholds *ThresholdService
	recipes    *QueueRecipePublisher
	service    *PriceService
	moderator  uuid.UUID
}

func (s *PriceServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.audits = NewAuditService(s.db, 10, 100)
	s.thresholds = NewThresholdService(s.db, s.audits, 3, 10)
	s.recipes = NewQueueRecipePublisher(16)
	s.service = NewPriceService(s.db, s.thresholds, s.audits, NewLocalFoodLocker(), s.recipes)
	s.moderator = uuid.New()
}

func (s *PriceServiceTestSuite) priceRequest(price string) UpdatePriceRequest {
	return UpdatePriceRequest{
		BasePrice: PriceOf(testutil.Dec(price)),
		PriceUnit: models.PriceUnitPer100g,
		Currency:  "TRY",
	}
}

func (s *PriceServiceTestSuite) auditsFor(foodID uuid.UUID) []models.PriceAudit {
	entries, err := s.audits.Query(context.Background(), AuditFilter{FoodID: &foodID, Limit: 100})
	s.Require().NoError(err)
	return entries
}

func (s *PriceServiceTestSuite) TestUpdatePriceDerivesCategory() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Lentils", "", models.PriceUnitPer100g, "TRY")

	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("15"))
	s.Require().NoError(err)

	s.Require().NotNil(result.Food.Category)
	s.Equal(models.PriceCategoryTier2, *result.Food.Category)
	s.Equal(int64(1), result.Food.PriceVersion)

	stored, err := s.service.GetFood(context.Background(), food.ID)
	s.Require().NoError(err)
	s.True(stored.BasePrice.Decimal.Equal(testutil.Dec("15")))
	s.Equal(models.PriceCategoryTier2, *stored.Category)

	entries := s.auditsFor(food.ID)
	s.Require().Len(entries, 1)
	s.Equal(result.AuditID, entries[0].ID)
	s.Equal(models.ChangeTypePriceUpdate, entries[0].ChangeType)
	s.False(entries[0].OldBasePrice.Valid)
	s.True(entries[0].NewBasePrice.Decimal.Equal(testutil.Dec("15")))
	s.Nil(entries[0].OldPriceCategory)
	s.Equal(models.PriceCategoryTier2, *entries[0].NewPriceCategory)
	s.Equal(s.moderator.String(), entries[0].Actor)

	threshold, err := s.thresholds.Get(context.Background(), models.PriceUnitPer100g, "TRY")
	s.Require().NoError(err)
	s.Equal(1, threshold.UpdatesSinceRecalculation)

	s.Require().Len(s.recipes.Requests(), 1)
	req := <-s.recipes.Requests()
	s.Equal(food.ID, req.FoodID)
	s.False(req.OldBasePrice.Valid)
	s.True(req.NewBasePrice.Decimal.Equal(testutil.Dec("15")))
}

func (s *PriceServiceTestSuite) TestUpdatePriceWithoutThresholdsLeavesCategoryNull() {
	food := testutil.CreateFood(s.T(), s.db, "Quinoa", "", models.PriceUnitPer100g, "TRY")

	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("42"))
	s.Require().NoError(err)
	s.Nil(result.Food.Category)

	// The first priced food seeds an undefined threshold row for the pair.
	threshold, err := s.thresholds.Get(context.Background(), models.PriceUnitPer100g, "TRY")
	s.Require().NoError(err)
	s.False(threshold.Defined())
	s.Equal(1, threshold.UpdatesSinceRecalculation)
}

func (s *PriceServiceTestSuite) TestOverrideThenClear() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Saffron", "", models.PriceUnitPer100g, "TRY")
	_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("15"))
	s.Require().NoError(err)

	overridden, err := s.service.ApplyOverride(context.Background(), food.ID, s.moderator, models.PriceCategoryTier3, "imported brand")
	s.Require().NoError(err)
	s.Equal(models.PriceCategoryTier3, *overridden.Food.Category)
	s.True(overridden.Food.HasOverride())
	s.Equal("imported brand", overridden.Food.CategoryOverrideReason)
	s.Equal(s.moderator, *overridden.Food.CategoryOverriddenBy)
	s.NotNil(overridden.Food.CategoryOverriddenAt)

	cleared, err := s.service.ClearOverride(context.Background(), food.ID, s.moderator, "")
	s.Require().NoError(err)
	s.Equal(models.PriceCategoryTier2, *cleared.Food.Category)
	s.False(cleared.Food.HasOverride())
	s.Empty(cleared.Food.CategoryOverrideReason)
	s.Nil(cleared.Food.CategoryOverriddenAt)

	entries := s.auditsFor(food.ID)
	s.Require().Len(entries, 3)
	// Newest first.
	clearEntry, overrideEntry := entries[0], entries[1]
	s.Equal(cleared.AuditID, clearEntry.ID)
	s.Equal(models.ChangeTypeCategoryOverride, clearEntry.ChangeType)
	s.Equal(models.PriceCategoryTier3, *clearEntry.OldPriceCategory)
	s.Equal(models.PriceCategoryTier2, *clearEntry.NewPriceCategory)

	s.Equal(models.ChangeTypeCategoryOverride, overrideEntry.ChangeType)
	s.Equal(models.PriceCategoryTier2, *overrideEntry.OldPriceCategory)
	s.Equal(models.PriceCategoryTier3, *overrideEntry.NewPriceCategory)
	s.Equal("imported brand", overrideEntry.Reason)
}

func (s *PriceServiceTestSuite) TestOverrideSurvivesPriceUpdate() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Truffle oil", "15", models.PriceUnitPer100g, "TRY")

	_, err := s.service.ApplyOverride(context.Background(), food.ID, s.moderator, models.PriceCategoryTier3, "luxury item")
	s.Require().NoError(err)

	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("5"))
	s.Require().NoError(err)
	s.Equal(models.PriceCategoryTier3, *result.Food.Category)
	s.True(result.Food.HasOverride())
}

func (s *PriceServiceTestSuite) TestUpdatePriceAppliesOverrideInSameRequest() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Honey", "", models.PriceUnitPer100g, "TRY")

	req := s.priceRequest("8")
	tier := models.PriceCategoryTier3
	req.OverrideCategory = &tier
	req.OverrideReason = "raw comb honey"

	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, req)
	s.Require().NoError(err)
	s.Equal(models.PriceCategoryTier3, *result.Food.Category)

	entries := s.auditsFor(food.ID)
	s.Require().Len(entries, 1)
	s.Equal(models.ChangeTypePriceUpdate, entries[0].ChangeType)
	s.Equal("raw comb honey", entries[0].Reason)
}

func (s *PriceServiceTestSuite) TestUpdatePriceClearOverrideRederives() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Oats", "15", models.PriceUnitPer100g, "TRY")
	_, err := s.service.ApplyOverride(context.Background(), food.ID, s.moderator, models.PriceCategoryTier1, "staple")
	s.Require().NoError(err)

	req := s.priceRequest("25")
	req.ClearOverride = true
	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, req)
	s.Require().NoError(err)
	s.False(result.Food.HasOverride())
	s.Equal(models.PriceCategoryTier3, *result.Food.Category)
}

func (s *PriceServiceTestSuite) TestUnpricingClearsCategory() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Rice", "", models.PriceUnitPer100g, "TRY")
	_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("12"))
	s.Require().NoError(err)

	req := s.priceRequest("0")
	req.BasePrice = NoPrice()
	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, req)
	s.Require().NoError(err)
	s.Nil(result.Food.Category)
	s.False(result.Food.IsPriced())

	threshold, err := s.thresholds.Get(context.Background(), models.PriceUnitPer100g, "TRY")
	s.Require().NoError(err)
	s.Equal(1, threshold.UpdatesSinceRecalculation)
}

func (s *PriceServiceTestSuite) TestOverrideWithoutPriceKeepsStoredPrice() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Saffron", "15", models.PriceUnitPer100g, "TRY")

	var req UpdatePriceRequest
	s.Require().NoError(json.Unmarshal([]byte(`{"price_unit":"per_100g","currency":"TRY","override_category":"tier_3","override_reason":"premium import"}`), &req))

	_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, req)
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal("base_price", ve.Field)

	stored, err := s.service.GetFood(context.Background(), food.ID)
	s.Require().NoError(err)
	s.True(stored.BasePrice.Decimal.Equal(testutil.Dec("15")))
	s.False(stored.HasOverride())
	s.Empty(s.auditsFor(food.ID))
}

func (s *PriceServiceTestSuite) TestTrailingZerosAreAccepted() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Oats", "", models.PriceUnitPer100g, "TRY")

	result, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("10.000"))
	s.Require().NoError(err)
	s.Equal(models.PriceCategoryTier1, *result.Food.Category)
}

func (s *PriceServiceTestSuite) TestUnchangedPriceDoesNotNotifyRecipes() {
	food := testutil.CreateFood(s.T(), s.db, "Salt", "3", models.PriceUnitPer100g, "TRY")

	_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, s.priceRequest("3.00"))
	s.Require().NoError(err)
	s.Empty(s.recipes.Requests())
}

func (s *PriceServiceTestSuite) TestValidationErrors() {
	food := testutil.CreateFood(s.T(), s.db, "Bread", "5", models.PriceUnitPer100g, "TRY")
	tier := models.PriceCategoryTier1

	cases := []struct {
		name  string
		req   func() UpdatePriceRequest
		field string
	}{
		{"override and clear", func() UpdatePriceRequest {
			req := s.priceRequest("5")
			req.OverrideCategory = &tier
			req.OverrideReason = "x"
			req.ClearOverride = true
			return req
		}, "clear_override"},
		{"override without reason", func() UpdatePriceRequest {
			req := s.priceRequest("5")
			req.OverrideCategory = &tier
			return req
		}, "override_reason"},
		{"negative price", func() UpdatePriceRequest { return s.priceRequest("-1") }, "base_price"},
		{"missing price", func() UpdatePriceRequest {
			req := s.priceRequest("5")
			req.BasePrice = PriceInput{}
			return req
		}, "base_price"},
		{"sub-cent price", func() UpdatePriceRequest { return s.priceRequest("10.004") }, "base_price"},
		{"price out of range", func() UpdatePriceRequest { return s.priceRequest("10000000000") }, "base_price"},
		{"bad unit", func() UpdatePriceRequest {
			req := s.priceRequest("5")
			req.PriceUnit = "per_kg"
			return req
		}, "price_unit"},
		{"bad currency", func() UpdatePriceRequest {
			req := s.priceRequest("5")
			req.Currency = "LIRA"
			return req
		}, "currency"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, tc.req())
			var ve *ValidationError
			s.Require().ErrorAs(err, &ve)
			s.Equal(tc.field, ve.Field)
		})
	}

	s.Empty(s.auditsFor(food.ID))
}

func (s *PriceServiceTestSuite) TestOverrideRequiresReason() {
	food := testutil.CreateFood(s.T(), s.db, "Butter", "5", models.PriceUnitPer100g, "TRY")

	_, err := s.service.ApplyOverride(context.Background(), food.ID, s.moderator, models.PriceCategoryTier2, "  ")
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal("reason", ve.Field)
	s.Empty(s.auditsFor(food.ID))
}

func (s *PriceServiceTestSuite) TestClearWithoutOverrideIsRejected() {
	food := testutil.CreateFood(s.T(), s.db, "Milk", "5", models.PriceUnitPer100g, "TRY")

	_, err := s.service.ClearOverride(context.Background(), food.ID, s.moderator, "")
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal("override", ve.Field)
	s.Empty(s.auditsFor(food.ID))
}

func (s *PriceServiceTestSuite) TestUnknownFood() {
	_, err := s.service.UpdatePrice(context.Background(), uuid.New(), s.moderator, s.priceRequest("5"))
	var nf *NotFoundError
	s.ErrorAs(err, &nf)

	_, err = s.service.ApplyOverride(context.Background(), uuid.New(), s.moderator, models.PriceCategoryTier1, "reason")
	s.ErrorAs(err, &nf)

	_, err = s.service.GetFood(context.Background(), uuid.New())
	s.ErrorAs(err, &nf)
}

func (s *PriceServiceTestSuite) TestStaleVersionConflicts() {
	food := testutil.CreateFood(s.T(), s.db, "Eggs", "5", models.PriceUnitPer100g, "TRY")

	err := s.service.saveFood(s.db, food, food.PriceVersion+1)
	var ce *ConflictError
	s.ErrorAs(err, &ce)
}

func (s *PriceServiceTestSuite) TestConcurrentUpdatesAreSerialized() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	food := testutil.CreateFood(s.T(), s.db, "Chickpeas", "", models.PriceUnitPer100g, "TRY")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := s.priceRequest(decimal.NewFromInt(int64(5 + i)).String())
			_, err := s.service.UpdatePrice(context.Background(), food.ID, s.moderator, req)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	stored, err := s.service.GetFood(context.Background(), food.ID)
	s.Require().NoError(err)
	s.Equal(int64(writers), stored.PriceVersion)
	s.Len(s.auditsFor(food.ID), writers)
}

func (s *PriceServiceTestSuite) TestListFoodsFilters() {
	testutil.CreateThreshold(s.T(), s.db, models.PriceUnitPer100g, "TRY", "10", "20")
	a := testutil.CreateFood(s.T(), s.db, "Green lentils", "", models.PriceUnitPer100g, "TRY")
	testutil.CreateFood(s.T(), s.db, "Red lentils", "", models.PriceUnitPer100g, "EUR")
	testutil.CreateFood(s.T(), s.db, "Bulgur", "", models.PriceUnitPer100g, "TRY")
	_, err := s.service.UpdatePrice(context.Background(), a.ID, s.moderator, s.priceRequest("25"))
	s.Require().NoError(err)

	filter := FoodFilter{Currency: "try"}
	filter.Search = "LENTIL"
	foods, total, err := s.service.ListFoods(context.Background(), filter)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(foods, 1)
	s.Equal(a.ID, foods[0].ID)

	tier := models.PriceCategoryTier3
	foods, total, err = s.service.ListFoods(context.Background(), FoodFilter{Category: &tier})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(a.ID, foods[0].ID)
}

func TestPriceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PriceServiceTestSuite))
}

func TestPriceInputUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		present bool
		valid   bool
	}{
		{"missing", `{}`, false, false},
		{"null", `{"base_price":null}`, true, false},
		{"number", `{"base_price":12.5}`, true, true},
		{"string", `{"base_price":"12.50"}`, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req UpdatePriceRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.present, req.BasePrice.Present)
			assert.Equal(t, tc.valid, req.BasePrice.Valid)
		})
	}
}

func TestPriceInputRejectsNonNumeric(t *testing.T) {
	var req UpdatePriceRequest
	err := json.Unmarshal([]byte(`{"base_price":"abc"}`), &req)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "base_price", ve.Field)
}

func TestUpdatePriceRequestNormalizesCurrency(t *testing.T) {
	req := UpdatePriceRequest{BasePrice: NoPrice(), PriceUnit: models.PriceUnitPerUnit, Currency: " try "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "TRY", req.Currency)
}
