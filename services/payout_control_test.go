package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"settlement-service/models"
	"settlement-service/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlPayout_Hold(t *testing.T) {
	f := newRevenueFixture()
	w := f.seedEndedWorkshop(fixedNow.Add(24*time.Hour), "1000")

	res, svcErr := f.svc.ControlPayout(context.Background(), f.admin.ID, services.PayoutControlRequest{
		WorkshopID: w.ID.String(),
		Action:     "HOLD",
		Reason:     "Dispute",
	})

	require.Nil(t, svcErr)
	assert.Equal(t, "hold", res.Action)
	require.NotNil(t, res.Workshop)
	assert.True(t, res.Workshop.PaymentHold)
	assert.Nil(t, res.Payout)
}

func TestControlPayout_Release(t *testing.T) {
	f := newRevenueFixture()
	w := f.seedEndedWorkshop(fixedNow.Add(-2*time.Hour), "1000")

	res, svcErr := f.svc.ControlPayout(context.Background(), f.admin.ID, services.PayoutControlRequest{
		WorkshopID: w.ID.String(),
		Action:     "release",
	})

	require.Nil(t, svcErr)
	require.NotNil(t, res.Payout)
	assert.Equal(t, "968.00", res.Payout.NetAmount.StringFixed(2))
}

func TestControlPayout_Errors(t *testing.T) {
	f := newRevenueFixture()
	w := f.seedEndedWorkshop(fixedNow.Add(24*time.Hour), "1000")

	tests := []struct {
		name   string
		caller uuid.UUID
		req    services.PayoutControlRequest
		status int
	}{
		{"unknown caller", uuid.New(), services.PayoutControlRequest{WorkshopID: w.ID.String(), Action: "hold"}, http.StatusForbidden},
		{"non-admin caller", f.creator.ID, services.PayoutControlRequest{WorkshopID: w.ID.String(), Action: "hold"}, http.StatusForbidden},
		{"invalid workshop id", f.admin.ID, services.PayoutControlRequest{WorkshopID: "not-a-uuid", Action: "hold"}, http.StatusBadRequest},
		{"invalid action", f.admin.ID, services.PayoutControlRequest{WorkshopID: w.ID.String(), Action: "refund"}, http.StatusBadRequest},
		{"unknown workshop", f.admin.ID, services.PayoutControlRequest{WorkshopID: uuid.NewString(), Action: "unhold"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svcErr := f.svc.ControlPayout(context.Background(), tt.caller, tt.req)
			require.NotNil(t, svcErr)
			assert.Equal(t, tt.status, svcErr.StatusCode)
		})
	}
	assert.False(t, f.store.workshop(w.ID).PaymentHold)
	assert.Empty(t, f.store.auditLog())
}

func seedPayouts(f *revenueFixture, workshopID, creatorID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		f.store.putPayout(models.Payout{
			ID:          uuid.New(),
			WorkshopID:  workshopID,
			CreatorID:   creatorID,
			NetAmount:   decimal.NewFromInt(int64(100 * (i + 1))),
			Status:      models.PayoutStatusSuperseded,
			ReleaseType: models.ReleaseTypeManual,
			ReleasedAt:  fixedNow.Add(-time.Duration(i) * time.Hour),
		})
	}
}

func TestPayoutHistory_ByWorkshopAsOwner(t *testing.T) {
	f := newRevenueFixture()
	w := f.seedEndedWorkshop(fixedNow, "1000")
	seedPayouts(f, w.ID, f.creator.ID, 3)
	seedPayouts(f, uuid.New(), uuid.New(), 2)

	page, svcErr := f.svc.PayoutHistory(context.Background(), f.creator.ID, services.PayoutHistoryQuery{WorkshopID: w.ID.String()})

	require.Nil(t, svcErr)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, services.DefaultPayoutPageSize, page.Limit)
	require.Len(t, page.Payouts, 3)
	assert.True(t, page.Payouts[0].ReleasedAt.After(page.Payouts[1].ReleasedAt))
}

func TestPayoutHistory_ByCreatorAsAdminPaged(t *testing.T) {
	f := newRevenueFixture()
	seedPayouts(f, uuid.New(), f.creator.ID, 5)

	page, svcErr := f.svc.PayoutHistory(context.Background(), f.admin.ID, services.PayoutHistoryQuery{
		CreatorID: f.creator.ID.String(),
		Page:      2,
		Limit:     2,
	})

	require.Nil(t, svcErr)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Payouts, 2)
}

func TestPayoutHistory_ClampsPaging(t *testing.T) {
	f := newRevenueFixture()

	page, svcErr := f.svc.PayoutHistory(context.Background(), f.admin.ID, services.PayoutHistoryQuery{
		CreatorID: f.creator.ID.String(),
		Page:      -3,
		Limit:     500,
	})

	require.Nil(t, svcErr)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, services.MaxPayoutPageSize, page.Limit)
	assert.NotNil(t, page.Payouts)
	assert.Empty(t, page.Payouts)
}

func TestPayoutHistory_Errors(t *testing.T) {
	f := newRevenueFixture()
	w := f.seedEndedWorkshop(fixedNow, "1000")
	stranger := models.User{ID: uuid.New(), Role: models.RoleCreator}
	f.store.putUser(stranger)

	tests := []struct {
		name   string
		caller uuid.UUID
		q      services.PayoutHistoryQuery
		status int
	}{
		{"no filter", f.admin.ID, services.PayoutHistoryQuery{}, http.StatusBadRequest},
		{"both filters", f.admin.ID, services.PayoutHistoryQuery{WorkshopID: w.ID.String(), CreatorID: f.creator.ID.String()}, http.StatusBadRequest},
		{"invalid workshop id", f.admin.ID, services.PayoutHistoryQuery{WorkshopID: "abc"}, http.StatusBadRequest},
		{"invalid creator id", f.admin.ID, services.PayoutHistoryQuery{CreatorID: "abc"}, http.StatusBadRequest},
		{"unknown workshop", f.admin.ID, services.PayoutHistoryQuery{WorkshopID: uuid.NewString()}, http.StatusNotFound},
		{"other creator's workshop", stranger.ID, services.PayoutHistoryQuery{WorkshopID: w.ID.String()}, http.StatusForbidden},
		{"other creator's payouts", stranger.ID, services.PayoutHistoryQuery{CreatorID: f.creator.ID.String()}, http.StatusForbidden},
		{"unknown caller", uuid.New(), services.PayoutHistoryQuery{CreatorID: f.creator.ID.String()}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svcErr := f.svc.PayoutHistory(context.Background(), tt.caller, tt.q)
			require.NotNil(t, svcErr)
			assert.Equal(t, tt.status, svcErr.StatusCode)
		})
	}
}
