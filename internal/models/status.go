package models

type OrderStatus string

const (
	StatusPending        OrderStatus = "en_attente"
	StatusConfirmed      OrderStatus = "confirmee"
	StatusPreparing      OrderStatus = "en_preparation"
	StatusReady          OrderStatus = "prete"
	StatusOutForDelivery OrderStatus = "en_livraison"
	StatusDelivered      OrderStatus = "livree"
	StatusCancelled      OrderStatus = "annulee"
)

var statusFlow = map[OrderStatus]OrderStatus{
	StatusPending:        StatusConfirmed,
	StatusConfirmed:      StatusPreparing,
	StatusPreparing:      StatusReady,
	StatusReady:          StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:        "En attente",
	StatusConfirmed:      "Confirmée",
	StatusPreparing:      "En préparation",
	StatusReady:          "Prête",
	StatusOutForDelivery: "En livraison",
	StatusDelivered:      "Livrée",
	StatusCancelled:      "Annulée",
}

// NextStatus returns the single successor of s. Terminal and unknown
// statuses have none.
func NextStatus(s OrderStatus) (OrderStatus, bool) {
	next, ok := statusFlow[s]
	return next, ok
}

// CanCancel reports whether an order in status s may still be cancelled.
func CanCancel(s OrderStatus) bool {
	return s == StatusPending
}

func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return CanCancel(from)
	}
	next, ok := NextStatus(from)
	return ok && next == to
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "en_attente"
	PaymentPaid     PaymentStatus = "payee"
	PaymentRefunded PaymentStatus = "remboursee"
)
