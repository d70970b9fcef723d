package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleStudent  Role = "etudiant"
	RoleEmployee Role = "employe"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

type Customer struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"nom"`
	Phone         string    `json:"telephone,omitempty"`
	Role          Role      `json:"role"`
	LoyaltyPoints int       `json:"points_fidelite"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

type Article struct {
	ID          int64           `json:"id"`
	Name        string          `json:"nom"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"prix"`
	CategoryID  *int64          `json:"categorie_id,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Available   bool            `json:"disponible"`
	Featured    bool            `json:"vedette"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

func (a Article) EntityID() int64 { return a.ID }

// ArticleInput is the editable part of an article, shared by create and update.
type ArticleInput struct {
	Name        string          `json:"nom"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"prix"`
	CategoryID  *int64          `json:"categorie_id,omitempty"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"disponible"`
	Featured    bool            `json:"vedette"`
	Version     *int            `json:"version,omitempty"`
}

func (in ArticleInput) Validate() error {
	v := &ValidationError{}
	if in.Name == "" {
		v.Add("nom", "le nom est obligatoire")
	}
	if in.Price.IsNegative() {
		v.Add("prix", "le prix doit être positif")
	}
	return v.OrNil()
}

// OrderCustomer is the customer contact block embedded in admin order listings.
type OrderCustomer struct {
	Name  string `json:"nom"`
	Email string `json:"email"`
	Phone string `json:"telephone,omitempty"`
}

type Order struct {
	ID               int64           `json:"id"`
	OrderNumber      string          `json:"numero_commande"`
	CustomerID       int64           `json:"client_id"`
	Customer         *OrderCustomer  `json:"client,omitempty"`
	Items            []OrderItem     `json:"articles"`
	Subtotal         decimal.Decimal `json:"sous_total"`
	DeliveryFee      decimal.Decimal `json:"frais_livraison"`
	TotalAmount      decimal.Decimal `json:"montant_total"`
	LoyaltyPoints    int             `json:"points_fidelite"`
	Status           OrderStatus     `json:"statut"`
	PaymentStatus    PaymentStatus   `json:"statut_paiement"`
	ServiceType      ServiceType     `json:"service_type"`
	ArrivalTime      string          `json:"heure_arrivee"`
	PaymentMethod    PaymentMethod   `json:"mode_paiement"`
	DeliveryBuilding string          `json:"batiment_livraison,omitempty"`
	DeliveryPhone    string          `json:"telephone_livraison,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

func (o Order) EntityID() int64 { return o.ID }

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"commande_id"`
	ArticleID *int64          `json:"article_id,omitempty"`
	Name      string          `json:"nom"`
	Quantity  int             `json:"quantite"`
	UnitPrice decimal.Decimal `json:"prix_unitaire"`
	Subtotal  decimal.Decimal `json:"sous_total"`
	CreatedAt time.Time       `json:"created_at"`
}

type StatusLogEntry struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"commande_id"`
	Status    OrderStatus `json:"statut"`
	ChangedBy *int64      `json:"modifie_par,omitempty"`
	ChangedAt time.Time   `json:"modifie_le"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID       int64              `json:"customer_id"`
	Items            []OrderLineRequest `json:"items"`
	TotalAmount      decimal.Decimal    `json:"montant_total"`
	ServiceType      ServiceType        `json:"service_type"`
	ArrivalTime      string             `json:"heure_arrivee"`
	PaymentMethod    PaymentMethod      `json:"mode_paiement"`
	DeliveryBuilding string             `json:"batiment_livraison,omitempty"`
	DeliveryPhone    string             `json:"telephone_livraison,omitempty"`
}

type OrderLineRequest struct {
	ArticleID int64           `json:"article_id"`
	Quantity  int             `json:"quantite"`
	UnitPrice decimal.Decimal `json:"prix"`
}

func (r CreateOrderRequest) Validate() error {
	v := &ValidationError{}
	if len(r.Items) == 0 {
		v.Add("items", "le panier est vide")
	}
	for _, item := range r.Items {
		if item.Quantity < 1 {
			v.Add("items", "chaque article doit avoir une quantité d'au moins 1")
			break
		}
	}
	if !r.ServiceType.Valid() {
		v.Add("service_type", "type de service invalide")
	}
	if !r.PaymentMethod.Valid() {
		v.Add("mode_paiement", "mode de paiement invalide")
	}
	if !validArrivalTime(r.ArrivalTime) {
		v.Add("heure_arrivee", "l'heure d'arrivée doit être au format HH:MM")
	}
	if r.ServiceType == ServiceDelivery {
		if r.DeliveryBuilding == "" {
			v.Add("batiment_livraison", "le bâtiment de livraison est obligatoire")
		}
		if r.DeliveryPhone == "" {
			v.Add("telephone_livraison", "le téléphone de livraison est obligatoire")
		}
	}
	return v.OrNil()
}

func validArrivalTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}

// StatusUpdateRequest is the body of PATCH /admin/commandes/{id}.
type StatusUpdateRequest struct {
	Status  OrderStatus `json:"statut"`
	Version *int        `json:"version,omitempty"`
}
