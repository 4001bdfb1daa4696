package dto

import catalogsvc "github.com/Additional-Code/procura/internal/service/catalog"

// SupplierRequest is the body of POST /suppliers.
type SupplierRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	TaxID   string `json:"tax_id" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=500"`
}

// ToInput converts the payload into service input.
func (r SupplierRequest) ToInput() catalogsvc.SupplierInput {
	return catalogsvc.SupplierInput{Name: r.Name, TaxID: r.TaxID, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

// SupplierPatchRequest is the body of PUT /suppliers/:id. Absent fields are left untouched.
type SupplierPatchRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=255"`
	TaxID   *string `json:"tax_id" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

// ToPatch converts the payload into a service patch.
func (r SupplierPatchRequest) ToPatch() catalogsvc.SupplierPatch {
	return catalogsvc.SupplierPatch{Name: r.Name, TaxID: r.TaxID, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

// CategoryRequest is the body of POST /categories.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// ToInput converts the payload into service input.
func (r CategoryRequest) ToInput() catalogsvc.CategoryInput {
	return catalogsvc.CategoryInput{Name: r.Name, Description: r.Description, Color: r.Color}
}

// CategoryPatchRequest is the body of PUT /categories/:id.
type CategoryPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	Active      *bool   `json:"active"`
}

// ToPatch converts the payload into a service patch.
func (r CategoryPatchRequest) ToPatch() catalogsvc.CategoryPatch {
	return catalogsvc.CategoryPatch{Name: r.Name, Description: r.Description, Color: r.Color, Active: r.Active}
}
