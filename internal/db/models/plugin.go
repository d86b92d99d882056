// Package models - plugin.go defines the Plugin entry and the allow-listed patch applied on update.
package models

// Plugin is a versioned, publisher-owned community plugin.
type Plugin struct {
	Listing
	// Plugin is the opaque plugin code/manifest
	Plugin string `json:"plugin" db:"plugin" validate:"required"`
}

// PluginPatch lists the fields a publisher may change on update. Nil fields are left untouched.
type PluginPatch struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Plugin         *string `json:"plugin"`
	CompatibleWith *string `json:"compatibleWith"`
}

// Apply merges the patch onto p.
func (patch *PluginPatch) Apply(p *Plugin) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Plugin != nil {
		p.Plugin = *patch.Plugin
	}
	if patch.CompatibleWith != nil {
		p.CompatibleWith = *patch.CompatibleWith
	}
}
