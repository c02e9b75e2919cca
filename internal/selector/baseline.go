package selector

import "protein-advisor/internal/models"

// ResolveBaseline finds the user's reference product: the persona's product
// id if it is in the catalog, else the first row of the persona's brand,
// else nothing. No baseline is a normal outcome.
func ResolveBaseline(persona models.Persona, cat *models.Catalog) *models.Product {
	if cat.Len() == 0 {
		return nil
	}
	if persona.BaselineProductID != "" {
		if p, ok := cat.ByID(persona.BaselineProductID); ok {
			baseline := *p
			return &baseline
		}
	}
	if persona.CurrentBrand != "" {
		for i := range cat.Products {
			if cat.Products[i].Brand == persona.CurrentBrand {
				baseline := cat.Products[i]
				return &baseline
			}
		}
	}
	return nil
}
