package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ResourceKind names one family of admin-managed documents. The value is
// also the URL segment under /admin.
type ResourceKind string

const (
	KindEmployees  ResourceKind = "employes"
	KindPromotions ResourceKind = "promotions"
	KindEvents     ResourceKind = "evenements"
	KindComplaints ResourceKind = "reclamations"
	KindSettings   ResourceKind = "parametres"
)

type kindSpec struct {
	required  []string
	toggles   []string
	adminOnly bool
}

var kinds = map[ResourceKind]kindSpec{
	KindEmployees:  {required: []string{"nom", "email", "role"}, toggles: []string{"actif"}, adminOnly: true},
	KindPromotions: {required: []string{"titre", "reduction"}, toggles: []string{"active"}},
	KindEvents:     {required: []string{"titre", "date"}, toggles: []string{"actif", "vedette"}},
	KindComplaints: {required: []string{"sujet", "message"}, toggles: []string{"traitee"}},
	KindSettings:   {required: []string{"cle", "valeur"}, toggles: []string{"actif"}, adminOnly: true},
}

func ResourceKinds() []ResourceKind {
	return []ResourceKind{KindEmployees, KindPromotions, KindEvents, KindComplaints, KindSettings}
}

func (k ResourceKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

func (k ResourceKind) AdminOnly() bool {
	return kinds[k].adminOnly
}

func (k ResourceKind) CanToggle(field string) bool {
	for _, f := range kinds[k].toggles {
		if f == field {
			return true
		}
	}
	return false
}

// Validate checks the document fields every resource of kind k must carry.
func (k ResourceKind) Validate(data map[string]any) error {
	v := &ValidationError{}
	for _, field := range kinds[k].required {
		value, ok := data[field]
		if !ok || value == nil || value == "" {
			v.Add(field, fmt.Sprintf("le champ %s est obligatoire", field))
		}
	}
	for _, field := range kinds[k].toggles {
		if value, ok := data[field]; ok {
			if _, isBool := value.(bool); !isBool {
				v.Add(field, fmt.Sprintf("le champ %s doit être un booléen", field))
			}
		}
	}
	if k == KindEmployees {
		if role, ok := data["role"].(string); ok && role != "" && !Role(role).IsStaff() {
			v.Add("role", "le rôle doit être employe ou admin")
		}
	}
	return v.OrNil()
}

// EmployeeAccess reads an employee document: the e-mail of the customer
// account it governs and the role that account should hold. An inactive
// document, or one with no staff role, yields a student.
func EmployeeAccess(data map[string]any) (string, Role) {
	email, _ := data["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))

	role, _ := data["role"].(string)
	active, ok := data["actif"].(bool)
	if !ok {
		active = true
	}
	if !active || !Role(role).IsStaff() {
		return email, RoleStudent
	}
	return email, Role(role)
}

// Resource is one stored admin document. It serializes as a flat object:
// the document fields plus id, created_at, updated_at and version.
type Resource struct {
	ID        int64
	Kind      ResourceKind
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

var reservedResourceFields = []string{"id", "created_at", "updated_at", "version"}

// StripReserved drops the server-owned fields a client may echo back on update.
func StripReserved(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range reservedResourceFields {
		delete(out, k)
	}
	return out
}

func (r Resource) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Data)+4)
	for k, v := range r.Data {
		flat[k] = v
	}
	flat["id"] = r.ID
	flat["created_at"] = r.CreatedAt
	flat["updated_at"] = r.UpdatedAt
	flat["version"] = r.Version
	return json.Marshal(flat)
}

type Employee struct {
	ID     int64  `json:"id"`
	Name   string `json:"nom"`
	Email  string `json:"email"`
	Phone  string `json:"telephone,omitempty"`
	Role   Role   `json:"role"`
	Active bool   `json:"actif"`
}

func (e Employee) EntityID() int64 { return e.ID }

type Promotion struct {
	ID          int64           `json:"id"`
	Title       string          `json:"titre"`
	Description string          `json:"description,omitempty"`
	Reduction   decimal.Decimal `json:"reduction"`
	StartDate   string          `json:"date_debut,omitempty"`
	EndDate     string          `json:"date_fin,omitempty"`
	Active      bool            `json:"active"`
}

func (p Promotion) EntityID() int64 { return p.ID }

type Event struct {
	ID          int64  `json:"id"`
	Title       string `json:"titre"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Location    string `json:"lieu,omitempty"`
	Active      bool   `json:"actif"`
	Featured    bool   `json:"vedette"`
}

func (e Event) EntityID() int64 { return e.ID }

type Complaint struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"client_id,omitempty"`
	OrderID    int64  `json:"commande_id,omitempty"`
	Subject    string `json:"sujet"`
	Message    string `json:"message"`
	Handled    bool   `json:"traitee"`
}

func (c Complaint) EntityID() int64 { return c.ID }

type Setting struct {
	ID          int64  `json:"id"`
	Key         string `json:"cle"`
	Value       string `json:"valeur"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"actif"`
}

func (s Setting) EntityID() int64 { return s.ID }
