package entity

// Building is a placed structure persisted per map.
type Building struct {
	ID           string  `json:"id"`
	ParentID     string  `json:"parent_id"`
	EntityID     int     `json:"entity_id"`
	MapName      string  `json:"map_name"`
	CreatorID    string  `json:"creator_id"`
	CreatorName  string  `json:"creator_name"`
	Position     Vector3 `json:"position"`
	Rotation     Vector3 `json:"rotation"`
	CurrentHP    int     `json:"current_hp"`
	IsLocked     bool    `json:"is_locked"`
	LockPassword string  `json:"lock_password"`
	ExtraData    string  `json:"extra_data"`
}

// CloneBuildings copies a building list.
func CloneBuildings(in []Building) []Building {
	out := make([]Building, len(in))
	copy(out, in)
	return out
}
