package item

import "github.com/google/uuid"

// Slot is one addressable position of an inventory or storage list.
// A slot with DataID 0 or a non-positive Amount is the empty sentinel.
type Slot struct {
	ID                  string  `json:"id"`
	DataID              int     `json:"data_id"`
	Amount              int     `json:"amount"`
	Level               int     `json:"level"`
	Durability          float32 `json:"durability"`
	Exp                 int     `json:"exp"`
	LockRemainsDuration float32 `json:"lock_remains_duration"`
	Ammo                int     `json:"ammo"`
}

// Empty returns the empty sentinel slot.
func Empty() Slot {
	return Slot{}
}

// NewSlot creates a stack of amount items with a fresh slot id.
func NewSlot(dataID, amount int) Slot {
	return Slot{ID: NewSlotID(), DataID: dataID, Amount: amount, Level: 1}
}

// NewSlotID returns a unique slot identity.
func NewSlotID() string {
	return uuid.NewString()
}

// IsEmpty reports whether s is the empty sentinel.
func (s Slot) IsEmpty() bool {
	return s.DataID == 0 || s.Amount <= 0
}

// IsFull reports whether the stack reached its maximum size.
func (s Slot) IsFull(c Catalog) bool {
	return !s.IsEmpty() && s.Amount >= c.MaxStack(s.DataID)
}

// WithAmount returns a copy of s holding amount items under a new slot id.
func (s Slot) WithAmount(amount int) Slot {
	s.ID = NewSlotID()
	s.Amount = amount
	return s
}

// Limits are the capacity constraints of a slot list. Zero means unlimited.
type Limits struct {
	WeightLimit int `json:"weight_limit" mapstructure:"weight_limit"`
	SlotLimit   int `json:"slot_limit" mapstructure:"slot_limit"`
}

// LimitWeight reports whether the weight limit is enforced.
func (l Limits) LimitWeight() bool { return l.WeightLimit > 0 }

// LimitSlot reports whether the slot limit is enforced.
func (l Limits) LimitSlot() bool { return l.SlotLimit > 0 }
