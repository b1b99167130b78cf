package models

import (
	"github.com/go-playground/validator/v10"
)

// CreateRootRequest represents the request body for starting a new tree
type CreateRootRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	OwnerID      int64  `json:"ownerId" validate:"required,gt=0"`
	IsUserFolder bool   `json:"isUserFolder"`
}

// CreateNodeRequest represents the request body for creating a child node
type CreateNodeRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	OwnerID  int64  `json:"ownerId" validate:"required,gt=0"`
	ParentID int64  `json:"parentId" validate:"required,gt=0"`
}

// MoveNodeRequest represents the request body for relocating a subtree
type MoveNodeRequest struct {
	TargetID int64  `json:"targetId" validate:"required,gt=0"`
	Region   string `json:"region" validate:"required,oneof=before after appendChild"`
}

var validate = validator.New()

// Validate validates the create root request
func (r *CreateRootRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the create node request
func (r *CreateNodeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the move node request
func (r *MoveNodeRequest) Validate() error {
	return validate.Struct(r)
}
