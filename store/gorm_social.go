package store

import (
	"context"
	"fmt"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ---- friends ----

func (s *GormStore) CreateFriend(ctx context.Context, characterID, friendID string) error {
	row := model.Friendship{CharID: characterID, FriendID: friendID}
	return wrap("create friend", s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error)
}

func (s *GormStore) DeleteFriend(ctx context.Context, characterID, friendID string) error {
	return wrap("delete friend", s.conn(ctx).
		Where("char_id = ? AND friend_id = ?", characterID, friendID).
		Delete(&model.Friendship{}).Error)
}

func (s *GormStore) ReadFriends(ctx context.Context, characterID string) ([]entity.SocialCharacter, error) {
	var rows []model.Character
	err := s.conn(ctx).
		Joins("JOIN friendships ON friendships.friend_id = characters.id").
		Where("friendships.char_id = ?", characterID).
		Order("friendships.created_at").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("read friends", err)
	}
	return socialList(rows), nil
}

// ---- parties ----

func (s *GormStore) CreateParty(ctx context.Context, shareExp, shareItem bool, leaderID string) (int, error) {
	row := model.Party{ShareExp: shareExp, ShareItem: shareItem, LeaderID: leaderID}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return 0, wrap("create party", err)
	}
	return row.ID, nil
}

func (s *GormStore) ReadParty(ctx context.Context, id int) (*entity.Party, error) {
	var row model.Party
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return nil, wrap("read party", err)
	}
	var members []model.Character
	if err := s.conn(ctx).Where("party_id = ?", id).Find(&members).Error; err != nil {
		return nil, wrap("read party members", err)
	}
	p := &entity.Party{
		ID:        row.ID,
		ShareExp:  row.ShareExp,
		ShareItem: row.ShareItem,
		LeaderID:  row.LeaderID,
		Members:   make(map[string]entity.SocialCharacter, len(members)),
	}
	for i := range members {
		p.AddMember(socialEntity(&members[i]))
	}
	return p, nil
}

func (s *GormStore) UpdateParty(ctx context.Context, id int, shareExp, shareItem bool) error {
	return wrap("update party", s.conn(ctx).Model(&model.Party{}).Where("id = ?", id).
		Updates(map[string]any{"share_exp": shareExp, "share_item": shareItem}).Error)
}

func (s *GormStore) UpdatePartyLeader(ctx context.Context, id int, leaderID string) error {
	return wrap("update party leader", s.conn(ctx).Model(&model.Party{}).
		Where("id = ?", id).Update("leader_id", leaderID).Error)
}

func (s *GormStore) DeleteParty(ctx context.Context, id int) error {
	return wrap("delete party", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Party{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&model.Character{}).Where("party_id = ?", id).Update("party_id", 0).Error
	}))
}

func (s *GormStore) UpdateCharacterParty(ctx context.Context, characterID string, partyID int) error {
	return wrap("update character party", s.conn(ctx).Model(&model.Character{}).
		Where("id = ?", characterID).Update("party_id", partyID).Error)
}

// ---- guilds ----

func (s *GormStore) CreateGuild(ctx context.Context, name, leaderID string, roles []entity.GuildRole) (int, error) {
	row := model.Guild{
		Name:     name,
		LeaderID: leaderID,
		Level:    1,
		Roles:    datatypes.JSONSlice[entity.GuildRole](append([]entity.GuildRole(nil), roles...)),
		Skills:   datatypes.NewJSONType(map[int]int{}),
	}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return 0, wrap("create guild", err)
	}
	return row.ID, nil
}

func (s *GormStore) ReadGuild(ctx context.Context, id int) (*entity.Guild, error) {
	var row model.Guild
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		return nil, wrap("read guild", err)
	}
	var members []model.Character
	if err := s.conn(ctx).Where("guild_id = ?", id).Find(&members).Error; err != nil {
		return nil, wrap("read guild members", err)
	}
	g := &entity.Guild{
		ID:          row.ID,
		Name:        row.Name,
		LeaderID:    row.LeaderID,
		Message:     row.Message,
		Gold:        row.Gold,
		Level:       row.Level,
		Exp:         row.Exp,
		SkillPoints: row.SkillPoints,
		Skills:      make(map[int]int),
		Roles:       append([]entity.GuildRole(nil), row.Roles...),
		Members:     make(map[string]entity.SocialCharacter, len(members)),
		MemberRoles: make(map[string]uint8, len(members)),
	}
	for k, v := range row.Skills.Data() {
		g.Skills[k] = v
	}
	for i := range members {
		g.AddMember(socialEntity(&members[i]), members[i].GuildRole)
	}
	return g, nil
}

func (s *GormStore) updateGuild(ctx context.Context, op string, id int, values map[string]any) error {
	return wrap(op, s.conn(ctx).Model(&model.Guild{}).Where("id = ?", id).Updates(values).Error)
}

func (s *GormStore) UpdateGuildLeader(ctx context.Context, id int, leaderID string) error {
	return wrap("update guild leader", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Guild
		if err := tx.Select("id", "leader_id", "roles").First(&row, id).Error; err != nil {
			return err
		}
		if row.LeaderID != leaderID {
			err := tx.Model(&model.Character{}).
				Where("id = ? AND guild_id = ?", row.LeaderID, id).
				Update("guild_role", lowestMemberRole(len(row.Roles))).Error
			if err != nil {
				return err
			}
		}
		if err := tx.Model(&model.Guild{}).Where("id = ?", id).Update("leader_id", leaderID).Error; err != nil {
			return err
		}
		return tx.Model(&model.Character{}).
			Where("id = ? AND guild_id = ?", leaderID, id).Update("guild_role", 0).Error
	}))
}

// lowestMemberRole mirrors entity.Guild.LowestMemberRole for a role count.
func lowestMemberRole(roles int) uint8 {
	if roles < 2 {
		return 1
	}
	return uint8(roles - 1)
}

func (s *GormStore) UpdateGuildMessage(ctx context.Context, id int, message string) error {
	return s.updateGuild(ctx, "update guild message", id, map[string]any{"message": message})
}

func (s *GormStore) UpdateGuildRole(ctx context.Context, id int, index uint8, role entity.GuildRole) error {
	return wrap("update guild role", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Guild
		if err := tx.Select("id", "roles").First(&row, id).Error; err != nil {
			return err
		}
		if int(index) >= len(row.Roles) {
			return fmt.Errorf("role index %d out of range", index)
		}
		row.Roles[index] = role
		return tx.Model(&model.Guild{}).Where("id = ?", id).Update("roles", row.Roles).Error
	}))
}

func (s *GormStore) UpdateGuildMemberRole(ctx context.Context, characterID string, role uint8) error {
	return wrap("update guild member role", s.conn(ctx).Model(&model.Character{}).
		Where("id = ?", characterID).Update("guild_role", role).Error)
}

func (s *GormStore) UpdateGuildLevel(ctx context.Context, id, level int, exp int64, skillPoints int) error {
	return s.updateGuild(ctx, "update guild level", id, map[string]any{
		"level":        level,
		"exp":          exp,
		"skill_points": skillPoints,
	})
}

func (s *GormStore) UpdateGuildSkillLevel(ctx context.Context, id, skillID, level, skillPoints int) error {
	return wrap("update guild skill level", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Guild
		if err := tx.Select("id", "skills").First(&row, id).Error; err != nil {
			return err
		}
		skills := make(map[int]int, len(row.Skills.Data())+1)
		for k, v := range row.Skills.Data() {
			skills[k] = v
		}
		skills[skillID] = level
		return tx.Model(&model.Guild{}).Where("id = ?", id).Updates(map[string]any{
			"skills":       datatypes.NewJSONType(skills),
			"skill_points": skillPoints,
		}).Error
	}))
}

func (s *GormStore) UpdateGuildGold(ctx context.Context, id int, gold int64) error {
	return s.updateGuild(ctx, "update guild gold", id, map[string]any{"gold": gold})
}

func (s *GormStore) DeleteGuild(ctx context.Context, id int) error {
	return wrap("delete guild", s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Guild{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&model.Character{}).Where("guild_id = ?", id).
			Updates(map[string]any{"guild_id": 0, "guild_role": 0}).Error
	}))
}

func (s *GormStore) UpdateCharacterGuild(ctx context.Context, characterID string, guildID int, role uint8) error {
	return wrap("update character guild", s.conn(ctx).Model(&model.Character{}).
		Where("id = ?", characterID).
		Updates(map[string]any{"guild_id": guildID, "guild_role": role}).Error)
}

func (s *GormStore) FindGuildName(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&model.Guild{}).Where("name = ?", name).Count(&n).Error
	return n, wrap("find guild name", err)
}
