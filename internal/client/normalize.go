package client

import (
	"bytes"
	"encoding/json"
)

// Normalizer rewrites the field names different endpoints use for the same
// thing onto one canonical name before a response is decoded.
type Normalizer struct {
	aliases map[string]string
}

// DefaultNormalizer knows the aliases the platform's endpoints are known
// to emit.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(map[string]string{
		"est_disponible":    "disponible",
		"is_available":      "disponible",
		"est_vedette":       "vedette",
		"montant_reduction": "reduction",
		"status":            "statut",
		"payment_status":    "statut_paiement",
		"price":             "prix",
		"unit_price":        "prix_unitaire",
		"name":              "nom",
		"quantity":          "quantite",
		"total_amount":      "montant_total",
		"order_number":      "numero_commande",
		"category_id":       "categorie_id",
		"image":             "image_url",
		"phone":             "telephone",
	})
}

func NewNormalizer(aliases map[string]string) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize returns raw with every aliased key renamed, at any depth. A
// canonical key already present wins over its alias. Responses wrapped in
// a {"data": ...} envelope are unwrapped.
func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(n.rename(unwrap(v)))
}

func (n *Normalizer) Decode(raw []byte, out any) error {
	normalized, err := n.Normalize(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, out)
}

func (n *Normalizer) rename(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, isAlias := n.aliases[k]; isAlias {
				continue
			}
			out[k] = n.rename(val)
		}
		for k, val := range t {
			canonical, isAlias := n.aliases[k]
			if !isAlias {
				continue
			}
			if _, exists := out[canonical]; !exists {
				out[canonical] = n.rename(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = n.rename(val)
		}
		return out
	default:
		return v
	}
}

func unwrap(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	data, ok := obj["data"]
	if !ok {
		return v
	}
	for k := range obj {
		if k != "data" && k != "meta" && k != "links" {
			return v
		}
	}
	return data
}
