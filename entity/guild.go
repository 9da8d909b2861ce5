package entity

// GuildRole is one entry of a guild's fixed role table. Role 0 is the
// leader role; the last role is the one new members receive.
type GuildRole struct {
	Name               string `json:"name" mapstructure:"name"`
	CanInvite          bool   `json:"can_invite" mapstructure:"can_invite"`
	CanKick            bool   `json:"can_kick" mapstructure:"can_kick"`
	ShareExpPercentage uint8  `json:"share_exp_percentage" mapstructure:"share_exp_percentage"`
}

// Guild is a persistent player organisation.
type Guild struct {
	ID          int                        `json:"id"`
	Name        string                     `json:"name"`
	LeaderID    string                     `json:"leader_id"`
	Message     string                     `json:"message"`
	Gold        int64                      `json:"gold"`
	Level       int                        `json:"level"`
	Exp         int64                      `json:"exp"`
	SkillPoints int                        `json:"skill_points"`
	Skills      map[int]int                `json:"skills"`
	Roles       []GuildRole                `json:"roles"`
	Members     map[string]SocialCharacter `json:"members"`
	MemberRoles map[string]uint8           `json:"member_roles"`
}

// NewGuild creates a level 1 guild led by leader with a copy of roles.
func NewGuild(id int, name string, leader SocialCharacter, roles []GuildRole) *Guild {
	g := &Guild{
		ID:          id,
		Name:        name,
		LeaderID:    leader.ID,
		Level:       1,
		Skills:      make(map[int]int),
		Roles:       append([]GuildRole(nil), roles...),
		Members:     make(map[string]SocialCharacter),
		MemberRoles: make(map[string]uint8),
	}
	g.AddMember(leader, g.LeaderRole())
	return g
}

func (g *Guild) LeaderRole() uint8 { return 0 }

// LowestMemberRole is the role given to newly joined members.
func (g *Guild) LowestMemberRole() uint8 {
	if len(g.Roles) < 2 {
		return 1
	}
	return uint8(len(g.Roles) - 1)
}

// IsLeader reports whether characterID leads the guild.
func (g *Guild) IsLeader(characterID string) bool {
	return g.LeaderID == characterID
}

func (g *Guild) IsMember(characterID string) bool {
	_, ok := g.Members[characterID]
	return ok
}

func (g *Guild) AddMember(m SocialCharacter, role uint8) {
	if g.Members == nil {
		g.Members = make(map[string]SocialCharacter)
	}
	if g.MemberRoles == nil {
		g.MemberRoles = make(map[string]uint8)
	}
	m.GuildID = g.ID
	m.GuildRole = role
	g.Members[m.ID] = m
	g.MemberRoles[m.ID] = role
}

func (g *Guild) RemoveMember(characterID string) {
	delete(g.Members, characterID)
	delete(g.MemberRoles, characterID)
}

// MemberRole returns the role of characterID and whether it is a member.
func (g *Guild) MemberRole(characterID string) (uint8, bool) {
	r, ok := g.MemberRoles[characterID]
	return r, ok
}

// SetLeader hands leadership to characterID. The previous leader drops to
// the lowest member role. Non-members are ignored.
func (g *Guild) SetLeader(characterID string) {
	if !g.IsMember(characterID) || g.LeaderID == characterID {
		return
	}
	if g.IsMember(g.LeaderID) {
		g.SetMemberRole(g.LeaderID, g.LowestMemberRole())
	}
	g.LeaderID = characterID
	g.SetMemberRole(characterID, g.LeaderRole())
}

// SetRole replaces the definition of role index. Out-of-range indexes are
// ignored.
func (g *Guild) SetRole(index uint8, role GuildRole) {
	if int(index) >= len(g.Roles) {
		return
	}
	g.Roles[index] = role
}

// SetMemberRole changes a member's role. The leader role can only be
// assigned through SetLeader.
func (g *Guild) SetMemberRole(characterID string, role uint8) {
	m, ok := g.Members[characterID]
	if !ok {
		return
	}
	if role == g.LeaderRole() && characterID != g.LeaderID {
		role = g.LowestMemberRole()
	}
	m.GuildRole = role
	g.Members[characterID] = m
	g.MemberRoles[characterID] = role
}

// SkillLevel returns the learned level of skillID.
func (g *Guild) SkillLevel(skillID int) int {
	return g.Skills[skillID]
}

// AddSkillLevel spends one skill point on skillID. It returns false when no
// point is left or the skill is already at maxLevel.
func (g *Guild) AddSkillLevel(skillID, maxLevel int) bool {
	if g.SkillPoints <= 0 {
		return false
	}
	if maxLevel > 0 && g.Skills[skillID] >= maxLevel {
		return false
	}
	if g.Skills == nil {
		g.Skills = make(map[int]int)
	}
	g.Skills[skillID]++
	g.SkillPoints--
	return true
}

// Clone returns a deep copy of g.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Skills = make(map[int]int, len(g.Skills))
	for k, v := range g.Skills {
		cp.Skills[k] = v
	}
	cp.Roles = append([]GuildRole(nil), g.Roles...)
	cp.Members = make(map[string]SocialCharacter, len(g.Members))
	for k, v := range g.Members {
		cp.Members[k] = v
	}
	cp.MemberRoles = make(map[string]uint8, len(g.MemberRoles))
	for k, v := range g.MemberRoles {
		cp.MemberRoles[k] = v
	}
	return &cp
}
