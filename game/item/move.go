package item

// MoveResult classifies the outcome of MoveBetween.
type MoveResult int

const (
	MoveOK MoveResult = iota
	MoveInvalidSource
	MoveInvalidDestination
	MoveDestinationOverwhelm
)

// AnySlot as destination index lets the destination place the stack freely.
const AnySlot = -1

// MoveBetween moves amount items from src[srcIdx] into dst[dstIdx].
//
// An empty destination slot, a destination holding the same item, or AnySlot
// merges the moving stack into dst and decreases the source slot. A
// destination holding a different item swaps the two whole slots; both slots
// get new identities. Capacity is checked against dstLim before anything is
// changed, so on any result other than MoveOK neither list is modified.
func MoveBetween(c Catalog, src *List, srcIdx, amount int, dst *List, dstIdx int, dstLim Limits) MoveResult {
	s, d := *src, *dst
	if srcIdx < 0 || srcIdx >= len(s) || s[srcIdx].IsEmpty() {
		return MoveInvalidSource
	}
	if amount <= 0 || amount > s[srcIdx].Amount {
		return MoveInvalidSource
	}
	if dstIdx < AnySlot || dstIdx >= len(d) {
		return MoveInvalidDestination
	}

	moving := s[srcIdx].WithAmount(amount)
	if dstIdx == AnySlot || d[dstIdx].IsEmpty() || d[dstIdx].DataID == moving.DataID {
		if d.WillOverwhelm(c, moving.DataID, moving.Amount, dstLim) {
			return MoveDestinationOverwhelm
		}
		var ok bool
		if dstIdx == AnySlot {
			ok = d.Increase(c, moving)
		} else {
			ok = d.IncreaseAt(c, dstIdx, moving)
		}
		if !ok {
			return MoveDestinationOverwhelm
		}
		s.DecreaseAt(srcIdx, amount)
		*src, *dst = s, d
		return MoveOK
	}

	incoming, outgoing := s[srcIdx], d[dstIdx]
	if dstLim.LimitWeight() {
		after := d.TotalWeight(c) - c.Weight(outgoing.DataID)*float64(outgoing.Amount) +
			c.Weight(incoming.DataID)*float64(incoming.Amount)
		if after > float64(dstLim.WeightLimit) {
			return MoveDestinationOverwhelm
		}
	}
	incoming.ID = NewSlotID()
	outgoing.ID = NewSlotID()
	s[srcIdx] = outgoing
	d[dstIdx] = incoming
	*src, *dst = s, d
	return MoveOK
}
