package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from OrderStatus
		want OrderStatus
		ok   bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusDelivered, "", false},
		{StatusCancelled, "", false},
		{OrderStatus("inconnu"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, ok := NextStatus(tt.from)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))

	assert.False(t, CanTransition(StatusPending, StatusPreparing), "skipping a step")
	assert.False(t, CanTransition(StatusReady, StatusConfirmed), "going backwards")
	assert.False(t, CanTransition(StatusConfirmed, StatusCancelled), "cancel after confirmation")
	assert.False(t, CanTransition(StatusCancelled, StatusConfirmed))
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
}

func TestDeliveryFee(t *testing.T) {
	assert.True(t, DeliveryFee(ServiceDelivery, decimal.NewFromInt(3000)).Equal(decimal.NewFromInt(500)))
	assert.True(t, DeliveryFee(ServiceDelivery, decimal.Zero).IsZero())
	assert.True(t, DeliveryFee(ServicePickup, decimal.NewFromInt(3000)).IsZero())
}

func TestLoyaltyPointsFor(t *testing.T) {
	assert.Equal(t, 2, LoyaltyPointsFor(decimal.NewFromInt(2999)))
	assert.Equal(t, 3, LoyaltyPointsFor(decimal.NewFromInt(3000)))
	assert.Equal(t, 0, LoyaltyPointsFor(decimal.NewFromInt(999)))
	assert.Equal(t, 0, LoyaltyPointsFor(decimal.Zero))
}

func TestPriceSubtotal(t *testing.T) {
	totals := PriceSubtotal(decimal.NewFromInt(3000), ServiceDelivery)
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, totals.ServiceFee.Equal(decimal.NewFromInt(500)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, 3, totals.LoyaltyPoints)

	pickup := PriceSubtotal(decimal.NewFromInt(2000), ServicePickup)
	assert.True(t, pickup.Total.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 2, pickup.LoyaltyPoints)
}

func TestCreateOrderRequestValidate(t *testing.T) {
	valid := CreateOrderRequest{
		CustomerID:    1,
		Items:         []OrderLineRequest{{ArticleID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(1000)}},
		ServiceType:   ServicePickup,
		ArrivalTime:   "12:30",
		PaymentMethod: PaymentCash,
	}
	require.NoError(t, valid.Validate())

	delivery := valid
	delivery.ServiceType = ServiceDelivery
	err := delivery.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "batiment_livraison")
	assert.Contains(t, verr.Fields, "telephone_livraison")

	badTime := valid
	badTime.ArrivalTime = "25:99"
	require.Error(t, badTime.Validate())

	empty := valid
	empty.Items = nil
	require.Error(t, empty.Validate())
}

func TestResourceKindValidate(t *testing.T) {
	require.NoError(t, KindPromotions.Validate(map[string]any{"titre": "Happy hour", "reduction": 10, "active": true}))

	err := KindPromotions.Validate(map[string]any{"titre": "", "active": "oui"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "titre")
	assert.Contains(t, verr.Fields, "reduction")
	assert.Contains(t, verr.Fields, "active")

	assert.True(t, KindEvents.CanToggle("vedette"))
	assert.False(t, KindEvents.CanToggle("titre"))
	assert.True(t, KindSettings.AdminOnly())
	assert.False(t, ResourceKind("commandes").Valid())
}

func TestEmployeeRoleValidated(t *testing.T) {
	require.NoError(t, KindEmployees.Validate(map[string]any{"nom": "Awa", "email": "awa@example.com", "role": "employe"}))

	err := KindEmployees.Validate(map[string]any{"nom": "Awa", "email": "awa@example.com", "role": "etudiant"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "role")
}

func TestEmployeeAccess(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want Role
	}{
		{"active employee", map[string]any{"email": " Awa@Example.com", "role": "employe", "actif": true}, RoleEmployee},
		{"actif missing counts as active", map[string]any{"email": "awa@example.com", "role": "admin"}, RoleAdmin},
		{"inactive", map[string]any{"email": "awa@example.com", "role": "admin", "actif": false}, RoleStudent},
		{"not a staff role", map[string]any{"email": "awa@example.com", "role": "chef"}, RoleStudent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, role := EmployeeAccess(tt.data)
			assert.Equal(t, "awa@example.com", email)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestResourceMarshalJSONFlattens(t *testing.T) {
	r := Resource{
		ID:      7,
		Kind:    KindEvents,
		Data:    map[string]any{"titre": "Soirée crêpes", "id": 99},
		Version: 2,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "Soirée crêpes", flat["titre"])
	assert.EqualValues(t, 7, flat["id"])
	assert.EqualValues(t, 2, flat["version"])

	stripped := StripReserved(map[string]any{"id": 1, "version": 3, "titre": "x"})
	assert.Equal(t, map[string]any{"titre": "x"}, stripped)
}
