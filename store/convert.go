package store

import (
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/model"
	"gorm.io/datatypes"
)

func characterRow(accountID string, c *entity.Character) model.Character {
	return model.Character{
		ID:         c.ID,
		AccountID:  accountID,
		Name:       c.Name,
		DataID:     c.DataID,
		EntityID:   c.EntityID,
		Level:      c.Level,
		Exp:        c.Exp,
		CurrentHP:  c.CurrentHP,
		CurrentMP:  c.CurrentMP,
		StatPoint:  c.StatPoint,
		SkillPoint: c.SkillPoint,
		Gold:       c.Gold,
		PartyID:    c.PartyID,
		GuildID:    c.GuildID,
		GuildRole:  c.GuildRole,
		MapName:    c.MapName,
		PosX:       c.Position.X,
		PosY:       c.Position.Y,
		PosZ:       c.Position.Z,
		RespawnMap: c.RespawnMap,
		Items:      datatypes.JSONSlice[item.Slot](c.NonEquipItems.Clone()),
	}
}

func characterEntity(r *model.Character) *entity.Character {
	return &entity.Character{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Name:          r.Name,
		DataID:        r.DataID,
		EntityID:      r.EntityID,
		Level:         r.Level,
		Exp:           r.Exp,
		CurrentHP:     r.CurrentHP,
		CurrentMP:     r.CurrentMP,
		StatPoint:     r.StatPoint,
		SkillPoint:    r.SkillPoint,
		Gold:          r.Gold,
		PartyID:       r.PartyID,
		GuildID:       r.GuildID,
		GuildRole:     r.GuildRole,
		MapName:       r.MapName,
		Position:      entity.Vector3{X: r.PosX, Y: r.PosY, Z: r.PosZ},
		RespawnMap:    r.RespawnMap,
		NonEquipItems: item.List(r.Items).Clone(),
	}
}

func socialEntity(r *model.Character) entity.SocialCharacter {
	return entity.SocialCharacter{
		ID:        r.ID,
		AccountID: r.AccountID,
		Name:      r.Name,
		DataID:    r.DataID,
		Level:     r.Level,
		PartyID:   r.PartyID,
		GuildID:   r.GuildID,
		GuildRole: r.GuildRole,
	}
}

func buildingRow(mapName string, b entity.Building) model.Building {
	return model.Building{
		ID:           b.ID,
		MapName:      mapName,
		ParentID:     b.ParentID,
		EntityID:     b.EntityID,
		CreatorID:    b.CreatorID,
		CreatorName:  b.CreatorName,
		Position:     datatypes.NewJSONType(b.Position),
		Rotation:     datatypes.NewJSONType(b.Rotation),
		CurrentHP:    b.CurrentHP,
		IsLocked:     b.IsLocked,
		LockPassword: b.LockPassword,
		ExtraData:    b.ExtraData,
	}
}

func buildingEntity(r *model.Building) entity.Building {
	return entity.Building{
		ID:           r.ID,
		ParentID:     r.ParentID,
		EntityID:     r.EntityID,
		MapName:      r.MapName,
		CreatorID:    r.CreatorID,
		CreatorName:  r.CreatorName,
		Position:     r.Position.Data(),
		Rotation:     r.Rotation.Data(),
		CurrentHP:    r.CurrentHP,
		IsLocked:     r.IsLocked,
		LockPassword: r.LockPassword,
		ExtraData:    r.ExtraData,
	}
}
