package facade

import (
	"context"
	"maps"
	"slices"

	"github.com/kasuganosora/mmocache/entity"
)

// CreateGuild stores a new guild with the configured roles, caches it and
// joins the leader with the leader role.
func (svc *Service) CreateGuild(ctx context.Context, name, leaderID string) (*entity.Guild, error) {
	unlockName := svc.guildNames.lock(name)
	id, err := svc.store.CreateGuild(ctx, name, leaderID, svc.roles)
	if err != nil {
		unlockName()
		return nil, err
	}
	svc.guildNames.set(name, struct{}{})
	unlockName()

	g := &entity.Guild{
		ID:          id,
		Name:        name,
		LeaderID:    leaderID,
		Level:       1,
		Skills:      make(map[int]int),
		Roles:       append([]entity.GuildRole(nil), svc.roles...),
		Members:     make(map[string]entity.SocialCharacter),
		MemberRoles: make(map[string]uint8),
	}
	svc.guilds.set(id, g)

	leader, ok, err := svc.readSocial(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return g, nil
	}
	joined, _, err := svc.UpdateCharacterGuild(ctx, leader, id, g.LeaderRole())
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (svc *Service) ReadGuild(ctx context.Context, id int) (*entity.Guild, bool, error) {
	unlock := svc.guilds.lock(id)
	defer unlock()
	return svc.fetchGuild(ctx, id)
}

func (svc *Service) fetchGuild(ctx context.Context, id int) (*entity.Guild, bool, error) {
	return svc.guilds.fetch(ctx, id, func(ctx context.Context) (*entity.Guild, error) {
		g, err := svc.store.ReadGuild(ctx, id)
		if err == nil {
			svc.guildNames.set(g.Name, struct{}{})
			svc.cacheSocials(g.Members)
		}
		return g, err
	})
}

// modifyGuild runs a read-modify-write on a cached guild. fn mutates the
// guild and returns false to skip the write; write persists the mutated
// guild.
func (svc *Service) modifyGuild(ctx context.Context, id int, fn func(*entity.Guild) bool, write func(*entity.Guild) error) (*entity.Guild, bool, error) {
	unlock := svc.guilds.lock(id)
	defer unlock()
	g, ok, err := svc.fetchGuild(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	if !fn(g) {
		return g, true, nil
	}
	if err := svc.guilds.put(id, g, func() error { return write(g) }); err != nil {
		return nil, true, err
	}
	return g, true, nil
}

// UpdateGuildLeader hands the leader role to leaderID. The previous leader
// drops to the lowest member role. Both characters stay locked until their
// cached roles are patched.
func (svc *Service) UpdateGuildLeader(ctx context.Context, id int, leaderID string) (*entity.Guild, bool, error) {
	for {
		current, ok, err := svc.ReadGuild(ctx, id)
		if err != nil || !ok {
			return nil, ok, err
		}
		previous := current.LeaderID
		unlockChars := svc.lockCharacters(previous, leaderID)

		var stale, changed bool
		g, ok, err := svc.modifyGuild(ctx, id,
			func(g *entity.Guild) bool {
				if g.LeaderID != previous {
					stale = true
					return false
				}
				if !g.IsMember(leaderID) {
					return false
				}
				g.SetLeader(leaderID)
				changed = true
				return true
			},
			func(*entity.Guild) error { return svc.store.UpdateGuildLeader(ctx, id, leaderID) })
		if stale {
			unlockChars()
			continue
		}
		if err == nil && changed {
			for _, memberID := range []string{previous, leaderID} {
				if role, isMember := g.MemberRole(memberID); isMember {
					svc.patchCharacter(memberID, func(c *entity.Character) { c.GuildRole = role })
				}
			}
		}
		unlockChars()
		return g, ok, err
	}
}

func (svc *Service) UpdateGuildMessage(ctx context.Context, id int, message string) (*entity.Guild, bool, error) {
	return svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool { g.Message = message; return true },
		func(*entity.Guild) error { return svc.store.UpdateGuildMessage(ctx, id, message) })
}

// UpdateGuildRole replaces the definition of role index. Unknown indexes
// are ignored.
func (svc *Service) UpdateGuildRole(ctx context.Context, id int, index uint8, role entity.GuildRole) (*entity.Guild, bool, error) {
	return svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool {
			if int(index) >= len(g.Roles) {
				return false
			}
			g.SetRole(index, role)
			return true
		},
		func(*entity.Guild) error { return svc.store.UpdateGuildRole(ctx, id, index, role) })
}

// UpdateGuildMemberRole sets a member's role. The leader role cannot be
// granted this way.
func (svc *Service) UpdateGuildMemberRole(ctx context.Context, id int, memberID string, role uint8) (*entity.Guild, bool, error) {
	unlockChar := svc.characters.lock(memberID)
	defer unlockChar()
	var applied uint8
	g, ok, err := svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool {
			if !g.IsMember(memberID) || g.IsLeader(memberID) {
				return false
			}
			g.SetMemberRole(memberID, role)
			applied, _ = g.MemberRole(memberID)
			return true
		},
		func(*entity.Guild) error { return svc.store.UpdateGuildMemberRole(ctx, memberID, applied) })
	if err != nil || !ok {
		return g, ok, err
	}
	if r, isMember := g.MemberRole(memberID); isMember {
		svc.patchCharacter(memberID, func(c *entity.Character) { c.GuildRole = r })
	}
	return g, true, nil
}

// DeleteGuild removes the guild, releases its name and clears the guild of
// its cached members. The members' characters are locked first; when the
// member list grows meanwhile the locks are taken again.
func (svc *Service) DeleteGuild(ctx context.Context, id int) error {
	for {
		g, _, err := svc.ReadGuild(ctx, id)
		if err != nil {
			return err
		}
		var members []string
		if g != nil {
			members = slices.Collect(maps.Keys(g.Members))
		}
		unlockChars := svc.lockCharacters(members...)
		done, err := svc.deleteGuild(ctx, id, members)
		unlockChars()
		if done {
			return err
		}
	}
}

// deleteGuild runs with the characters in locked held. It reports false
// without deleting when the guild has a member outside locked.
func (svc *Service) deleteGuild(ctx context.Context, id int, locked []string) (bool, error) {
	unlock := svc.guilds.lock(id)
	defer unlock()
	g, _, err := svc.fetchGuild(ctx, id)
	if err != nil {
		return true, err
	}
	if g != nil && !coversMembers(locked, g.Members) {
		return false, nil
	}
	if err := svc.store.DeleteGuild(ctx, id); err != nil {
		return true, err
	}
	svc.guilds.del(id)
	if g == nil {
		return true, nil
	}
	svc.guildNames.del(g.Name)
	for memberID := range g.Members {
		svc.patchCharacter(memberID, func(c *entity.Character) {
			if c.GuildID == id {
				c.GuildID, c.GuildRole = 0, 0
			}
		})
	}
	return true, nil
}

// UpdateCharacterGuild joins member to guild id with role.
func (svc *Service) UpdateCharacterGuild(ctx context.Context, member entity.SocialCharacter, id int, role uint8) (*entity.Guild, bool, error) {
	unlockChar := svc.characters.lock(member.ID)
	defer unlockChar()
	g, ok, err := svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool { g.AddMember(member, role); return true },
		func(*entity.Guild) error { return svc.store.UpdateCharacterGuild(ctx, member.ID, id, role) })
	if err != nil || !ok {
		return nil, ok, err
	}
	svc.patchCharacter(member.ID, func(c *entity.Character) { c.GuildID, c.GuildRole = id, role })
	return g, true, nil
}

// ClearCharacterGuild removes the character from its guild. It reports
// false when the character does not exist.
func (svc *Service) ClearCharacterGuild(ctx context.Context, characterID string) (bool, error) {
	unlockChar := svc.characters.lock(characterID)
	defer unlockChar()
	c, ok, err := svc.fetchCharacter(ctx, characterID)
	if err != nil || !ok {
		return ok, err
	}
	guildID := c.GuildID
	if guildID == 0 {
		return true, nil
	}
	c.GuildID, c.GuildRole = 0, 0
	if err := svc.characters.put(characterID, c, func() error {
		return svc.store.UpdateCharacterGuild(ctx, characterID, 0, 0)
	}); err != nil {
		return true, err
	}
	svc.patchCharacter(characterID, func(c *entity.Character) { c.GuildID, c.GuildRole = 0, 0 })

	unlock := svc.guilds.lock(guildID)
	defer unlock()
	svc.guilds.update(guildID, func(g *entity.Guild) *entity.Guild {
		g.RemoveMember(characterID)
		return g
	})
	return true, nil
}

func (svc *Service) FindGuildName(ctx context.Context, name string) (int64, error) {
	return svc.findName(ctx, svc.guildNames, name, svc.store.FindGuildName)
}

// IncreaseGuildExp adds exp through the guild rules and persists the
// resulting level, exp and skill points.
func (svc *Service) IncreaseGuildExp(ctx context.Context, id int, exp int64) (*entity.Guild, bool, error) {
	unlock := svc.guilds.lock(id)
	defer unlock()
	g, ok, err := svc.fetchGuild(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	next := svc.rules.IncreaseExp(g, exp)
	if err := svc.guilds.put(id, next, func() error {
		return svc.store.UpdateGuildLevel(ctx, id, next.Level, next.Exp, next.SkillPoints)
	}); err != nil {
		return nil, true, err
	}
	return next, true, nil
}

// AddGuildSkill spends one skill point on skillID. Without points or at the
// skill's max level the guild is returned unchanged.
func (svc *Service) AddGuildSkill(ctx context.Context, id, skillID int) (*entity.Guild, bool, error) {
	return svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool { return g.AddSkillLevel(skillID, svc.rules.MaxSkillLevel(skillID)) },
		func(g *entity.Guild) error {
			return svc.store.UpdateGuildSkillLevel(ctx, id, skillID, g.SkillLevel(skillID), g.SkillPoints)
		})
}

func (svc *Service) GetGuildGold(ctx context.Context, id int) (int64, bool, error) {
	g, ok, err := svc.ReadGuild(ctx, id)
	if err != nil || !ok {
		return 0, ok, err
	}
	return g.Gold, true, nil
}

// ChangeGuildGold adds delta to the guild gold under the balance policy.
func (svc *Service) ChangeGuildGold(ctx context.Context, id int, delta int64) (int64, bool, error) {
	var policyErr error
	g, ok, err := svc.modifyGuild(ctx, id,
		func(g *entity.Guild) bool {
			next, err := svc.policy.apply(g.Gold, delta)
			if err != nil {
				policyErr = err
				return false
			}
			g.Gold = next
			return true
		},
		func(g *entity.Guild) error { return svc.store.UpdateGuildGold(ctx, id, g.Gold) })
	if err != nil || !ok {
		return 0, ok, err
	}
	return g.Gold, true, policyErr
}
