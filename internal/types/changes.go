package types

import "fmt"

type ChangeOp string

const (
	OpUpdateSettings ChangeOp = "update_settings"
	OpSetPreset      ChangeOp = "set_preset"
	OpAddPlace       ChangeOp = "add_place"
	OpReplacePlace   ChangeOp = "replace_place"
	OpRemovePlace    ChangeOp = "remove_place"
	OpAddWishMessage ChangeOp = "add_wish_message"
)

type Placement string

const (
	PlacementAuto   Placement = "auto"
	PlacementInSlot Placement = "in_slot"
	PlacementAtTime Placement = "at_time"
)

type UpdateSettingsChange struct {
	Pace        *Pace       `json:"pace,omitempty"`
	StartMinute *int        `json:"start_minute,omitempty"`
	EndMinute   *int        `json:"end_minute,omitempty"`
	BudgetTier  *BudgetTier `json:"budget_tier,omitempty"`
}

type SetPresetChange struct {
	Preset string `json:"preset"`
}

type AddPlaceChange struct {
	Place     POICandidate `json:"place"`
	Placement Placement    `json:"placement"`
	SlotIndex int          `json:"slot_index,omitempty"` // for in_slot
	AtMinute  int          `json:"at_minute,omitempty"`  // for at_time
}

type ReplacePlaceChange struct {
	FromID string       `json:"from_id"`
	To     POICandidate `json:"to"`
}

type RemovePlaceChange struct {
	PlaceID string `json:"place_id"`
}

type AddWishMessageChange struct {
	Message string `json:"message"`
}

// Change is a tagged union: Op names the variant and exactly the matching
// payload pointer must be populated.
type Change struct {
	Op             ChangeOp              `json:"op"`
	UpdateSettings *UpdateSettingsChange `json:"update_settings,omitempty"`
	SetPreset      *SetPresetChange      `json:"set_preset,omitempty"`
	AddPlace       *AddPlaceChange       `json:"add_place,omitempty"`
	ReplacePlace   *ReplacePlaceChange   `json:"replace_place,omitempty"`
	RemovePlace    *RemovePlaceChange    `json:"remove_place,omitempty"`
	AddWishMessage *AddWishMessageChange `json:"add_wish_message,omitempty"`
}

// Validate checks the tag/payload pairing before any change is applied.
func (c Change) Validate() error {
	missing := false
	switch c.Op {
	case OpUpdateSettings:
		missing = c.UpdateSettings == nil
	case OpSetPreset:
		missing = c.SetPreset == nil
	case OpAddPlace:
		missing = c.AddPlace == nil
	case OpReplacePlace:
		missing = c.ReplacePlace == nil
	case OpRemovePlace:
		missing = c.RemovePlace == nil
	case OpAddWishMessage:
		missing = c.AddWishMessage == nil
	default:
		return fmt.Errorf("%w: unknown change op %q", ErrValidation, c.Op)
	}
	if missing {
		return fmt.Errorf("%w: missing payload for %s", ErrValidation, c.Op)
	}
	return nil
}
