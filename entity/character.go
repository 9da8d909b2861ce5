package entity

import "github.com/kasuganosora/mmocache/game/item"

// Character is a player character. NonEquipItems is the ordered inventory
// slot list.
type Character struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Name          string    `json:"name"`
	DataID        int       `json:"data_id"`
	EntityID      int       `json:"entity_id"`
	Level         int       `json:"level"`
	Exp           int64     `json:"exp"`
	CurrentHP     int       `json:"current_hp"`
	CurrentMP     int       `json:"current_mp"`
	StatPoint     float32   `json:"stat_point"`
	SkillPoint    float32   `json:"skill_point"`
	Gold          int64     `json:"gold"`
	PartyID       int       `json:"party_id"`
	GuildID       int       `json:"guild_id"`
	GuildRole     uint8     `json:"guild_role"`
	MapName       string    `json:"map_name"`
	Position      Vector3   `json:"position"`
	RespawnMap    string    `json:"respawn_map"`
	NonEquipItems item.List `json:"non_equip_items"`
}

// Vector3 is a world position.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Clone returns a deep copy of c.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cp := *c
	cp.NonEquipItems = c.NonEquipItems.Clone()
	return &cp
}

// Social projects c for list display.
func (c *Character) Social() SocialCharacter {
	return SocialCharacter{
		ID:        c.ID,
		AccountID: c.AccountID,
		Name:      c.Name,
		DataID:    c.DataID,
		Level:     c.Level,
		PartyID:   c.PartyID,
		GuildID:   c.GuildID,
		GuildRole: c.GuildRole,
	}
}

// SocialCharacter is the lightweight projection of a Character used by
// friend lists, party and guild member sets.
type SocialCharacter struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	DataID    int    `json:"data_id"`
	Level     int    `json:"level"`
	PartyID   int    `json:"party_id"`
	GuildID   int    `json:"guild_id"`
	GuildRole uint8  `json:"guild_role"`
}

// CloneSocial copies a social list.
func CloneSocial(in []SocialCharacter) []SocialCharacter {
	out := make([]SocialCharacter, len(in))
	copy(out, in)
	return out
}
