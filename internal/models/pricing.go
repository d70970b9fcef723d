package models

import "github.com/shopspring/decimal"

type ServiceType string

const (
	ServiceDelivery ServiceType = "livraison"
	ServicePickup   ServiceType = "emporter"
)

func (s ServiceType) Valid() bool {
	return s == ServiceDelivery || s == ServicePickup
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "especes"
	PaymentOnline PaymentMethod = "en_ligne"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentOnline
}

var (
	DeliveryFeeAmount = decimal.NewFromInt(500)
	pointsDivisor     = decimal.NewFromInt(1000)
)

type Totals struct {
	Subtotal      decimal.Decimal `json:"sous_total"`
	ServiceFee    decimal.Decimal `json:"frais_livraison"`
	Total         decimal.Decimal `json:"montant_total"`
	LoyaltyPoints int             `json:"points_fidelite"`
}

// DeliveryFee is charged only for deliveries of a non-empty order.
func DeliveryFee(service ServiceType, subtotal decimal.Decimal) decimal.Decimal {
	if service == ServiceDelivery && subtotal.IsPositive() {
		return DeliveryFeeAmount
	}
	return decimal.Zero
}

func LoyaltyPointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(pointsDivisor).Floor().IntPart())
}

func PriceSubtotal(subtotal decimal.Decimal, service ServiceType) Totals {
	fee := DeliveryFee(service, subtotal)
	total := subtotal.Add(fee)
	return Totals{
		Subtotal:      subtotal,
		ServiceFee:    fee,
		Total:         total,
		LoyaltyPoints: LoyaltyPointsFor(total),
	}
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
