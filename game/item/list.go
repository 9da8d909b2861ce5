package item

// List is an ordered slot list. Mutating methods change the receiver in
// place; callers that need all-or-nothing behavior work on a Clone and only
// publish it once the operation succeeded.
type List []Slot

// Clone returns a deep copy of l. A nil list clones to an empty list.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// TotalWeight sums unit weight × amount over every non-empty slot.
func (l List) TotalWeight(c Catalog) float64 {
	var w float64
	for _, s := range l {
		if s.IsEmpty() {
			continue
		}
		w += c.Weight(s.DataID) * float64(s.Amount)
	}
	return w
}

// UsedSlots counts non-empty slots.
func (l List) UsedSlots() int {
	n := 0
	for _, s := range l {
		if !s.IsEmpty() {
			n++
		}
	}
	return n
}

// CountItem returns the total amount held for dataID.
func (l List) CountItem(dataID int) int {
	n := 0
	for _, s := range l {
		if !s.IsEmpty() && s.DataID == dataID {
			n += s.Amount
		}
	}
	return n
}

// WillOverwhelm reports whether adding amount of dataID would break lim.
// Unknown items and non-positive amounts always overwhelm.
func (l List) WillOverwhelm(c Catalog, dataID, amount int, lim Limits) bool {
	if amount <= 0 || !c.Exists(dataID) {
		return true
	}
	if lim.LimitWeight() {
		if l.TotalWeight(c)+c.Weight(dataID)*float64(amount) > float64(lim.WeightLimit) {
			return true
		}
	}
	if !lim.LimitSlot() {
		return false
	}
	maxStack := c.MaxStack(dataID)
	remain := amount
	used := 0
	for _, s := range l {
		if s.IsEmpty() {
			continue
		}
		used++
		if s.DataID == dataID && s.Amount < maxStack {
			remain -= maxStack - s.Amount
		}
	}
	if remain <= 0 {
		return false
	}
	need := (remain + maxStack - 1) / maxStack
	return need > lim.SlotLimit-used
}

// Increase merges in into partial stacks of the same item (lowest index
// first), then overwrites empty slots, then appends new slots. It returns
// false without touching l when in is empty or unknown.
func (l *List) Increase(c Catalog, in Slot) bool {
	if in.IsEmpty() || !c.Exists(in.DataID) {
		return false
	}
	s := *l
	maxStack := c.MaxStack(in.DataID)
	remain := in.Amount
	for i := range s {
		if remain == 0 {
			break
		}
		if s[i].IsEmpty() || s[i].DataID != in.DataID || s[i].Amount >= maxStack {
			continue
		}
		add := min(maxStack-s[i].Amount, remain)
		s[i].Amount += add
		remain -= add
	}
	for i := range s {
		if remain == 0 {
			break
		}
		if !s[i].IsEmpty() {
			continue
		}
		n := min(maxStack, remain)
		s[i] = in.WithAmount(n)
		remain -= n
	}
	for remain > 0 {
		n := min(maxStack, remain)
		s = append(s, in.WithAmount(n))
		remain -= n
	}
	*l = s
	return true
}

// IncreaseAt fills the slot at index first and spills whatever does not fit
// through Increase. The target must be empty or hold the same item; an index
// outside the list falls back to Increase.
func (l *List) IncreaseAt(c Catalog, index int, in Slot) bool {
	if in.IsEmpty() || !c.Exists(in.DataID) {
		return false
	}
	s := *l
	if index < 0 || index >= len(s) {
		return l.Increase(c, in)
	}
	maxStack := c.MaxStack(in.DataID)
	target := s[index]
	remain := in.Amount
	switch {
	case target.IsEmpty():
		n := min(maxStack, remain)
		s[index] = in.WithAmount(n)
		remain -= n
	case target.DataID == in.DataID:
		n := max(0, min(maxStack-target.Amount, remain))
		s[index].Amount += n
		remain -= n
	default:
		return false
	}
	if remain == 0 {
		return true
	}
	return l.Increase(c, in.WithAmount(remain))
}

// Decrease consumes amount of dataID from the lowest matching index upward.
// Fully consumed slots become empty. It returns the amount taken per index,
// or ok=false with l untouched when fewer than amount are held.
func (l *List) Decrease(dataID, amount int) (decreased map[int]int, ok bool) {
	if amount <= 0 || l.CountItem(dataID) < amount {
		return nil, false
	}
	s := *l
	decreased = make(map[int]int)
	remain := amount
	for i := range s {
		if remain == 0 {
			break
		}
		if s[i].IsEmpty() || s[i].DataID != dataID {
			continue
		}
		take := min(s[i].Amount, remain)
		s[i].Amount -= take
		if s[i].Amount == 0 {
			s[i] = Empty()
		}
		decreased[i] = take
		remain -= take
	}
	return decreased, true
}

// DecreaseAt consumes amount from the slot at index.
func (l *List) DecreaseAt(index, amount int) bool {
	s := *l
	if index < 0 || index >= len(s) || s[index].IsEmpty() {
		return false
	}
	if amount <= 0 || amount > s[index].Amount {
		return false
	}
	s[index].Amount -= amount
	if s[index].Amount == 0 {
		s[index] = Empty()
	}
	return true
}

// SwapOrMerge merges the stack at from into the stack at to when both hold
// the same item and neither is full; the remainder stays at from. Any other
// combination swaps the two slots. It returns false for out-of-range indexes.
func (l *List) SwapOrMerge(c Catalog, from, to int) bool {
	s := *l
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return false
	}
	if from == to {
		return true
	}
	f, t := s[from], s[to]
	if !f.IsEmpty() {
		f.ID = NewSlotID()
	}
	if !t.IsEmpty() {
		t.ID = NewSlotID()
	}
	if !f.IsEmpty() && !t.IsEmpty() && f.DataID == t.DataID && !f.IsFull(c) && !t.IsFull(c) {
		maxStack := c.MaxStack(t.DataID)
		if t.Amount+f.Amount <= maxStack {
			t.Amount += f.Amount
			s[from] = Empty()
			s[to] = t
			return true
		}
		f.Amount = t.Amount + f.Amount - maxStack
		t.Amount = maxStack
		s[from] = f
		s[to] = t
		return true
	}
	s[from], s[to] = t, f
	return true
}

// FillEmptySlots normalizes the list shape. With a slot limit the list is
// padded with empty slots up to the limit, or trimmed of trailing empty slots
// while it is longer; occupied slots are never dropped or moved. Without a slot
// limit every empty slot is removed.
func (l *List) FillEmptySlots(lim Limits) {
	s := *l
	if !lim.LimitSlot() {
		out := s[:0]
		for _, slot := range s {
			if !slot.IsEmpty() {
				out = append(out, slot)
			}
		}
		*l = out
		return
	}
	for len(s) < lim.SlotLimit {
		s = append(s, Empty())
	}
	// Only trailing empties go, so occupied slots keep their indexes.
	for len(s) > lim.SlotLimit && s[len(s)-1].IsEmpty() {
		s = s[:len(s)-1]
	}
	for i := range s {
		if s[i].IsEmpty() {
			s[i] = Empty()
		}
	}
	*l = s
}
