// Package models - overlay.go defines the Overlay entry: a shareable stream overlay made of
// an item layout and its serialized data, versioned and voted on like plugins.
package models

// Overlay is a versioned, publisher-owned community overlay.
type Overlay struct {
	Listing
	Items string `json:"items" db:"items" validate:"required"`
	Data  string `json:"data" db:"data" validate:"required"`
}

// OverlayPatch lists the fields a publisher may change on update.
type OverlayPatch struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Items          *string `json:"items"`
	Data           *string `json:"data"`
	CompatibleWith *string `json:"compatibleWith"`
}

// Apply merges the patch onto o.
func (patch *OverlayPatch) Apply(o *Overlay) {
	if patch.Name != nil {
		o.Name = *patch.Name
	}
	if patch.Description != nil {
		o.Description = *patch.Description
	}
	if patch.Items != nil {
		o.Items = *patch.Items
	}
	if patch.Data != nil {
		o.Data = *patch.Data
	}
	if patch.CompatibleWith != nil {
		o.CompatibleWith = *patch.CompatibleWith
	}
}
