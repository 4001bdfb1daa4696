package dto

import (
	"github.com/Additional-Code/procura/internal/entity"
	directorysvc "github.com/Additional-Code/procura/internal/service/directory"
)

// UserRequest is the body of POST /users.
type UserRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Role       string `json:"role" validate:"omitempty,oneof=administrator approver operator viewer"`
	EntityKind string `json:"entity_kind" validate:"required,oneof=organization store"`
}

// ToInput converts the payload into service input.
func (r UserRequest) ToInput() directorysvc.UserInput {
	return directorysvc.UserInput{
		Name:       r.Name,
		Email:      r.Email,
		Role:       entity.Role(r.Role),
		EntityKind: entity.EntityKind(r.EntityKind),
	}
}

// UserPatchRequest is the body of PUT /users/:id. Absent fields are left untouched.
type UserPatchRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=255"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Role       *string `json:"role" validate:"omitempty,oneof=administrator approver operator viewer"`
	EntityKind *string `json:"entity_kind" validate:"omitempty,oneof=organization store"`
}

// ToPatch converts the payload into a service patch.
func (r UserPatchRequest) ToPatch() directorysvc.UserPatch {
	patch := directorysvc.UserPatch{Name: r.Name, Email: r.Email}
	if r.Role != nil {
		role := entity.Role(*r.Role)
		patch.Role = &role
	}
	if r.EntityKind != nil {
		kind := entity.EntityKind(*r.EntityKind)
		patch.EntityKind = &kind
	}
	return patch
}
