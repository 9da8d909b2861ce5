package entity

// Party is a group of characters sharing exp and loot.
type Party struct {
	ID        int                        `json:"id"`
	ShareExp  bool                       `json:"share_exp"`
	ShareItem bool                       `json:"share_item"`
	LeaderID  string                     `json:"leader_id"`
	Members   map[string]SocialCharacter `json:"members"`
}

// NewParty creates a party led by leader.
func NewParty(id int, shareExp, shareItem bool, leader SocialCharacter) *Party {
	p := &Party{
		ID:        id,
		ShareExp:  shareExp,
		ShareItem: shareItem,
		LeaderID:  leader.ID,
		Members:   make(map[string]SocialCharacter),
	}
	p.AddMember(leader)
	return p
}

func (p *Party) AddMember(m SocialCharacter) {
	if p.Members == nil {
		p.Members = make(map[string]SocialCharacter)
	}
	m.PartyID = p.ID
	p.Members[m.ID] = m
}

func (p *Party) RemoveMember(characterID string) {
	delete(p.Members, characterID)
}

func (p *Party) IsMember(characterID string) bool {
	_, ok := p.Members[characterID]
	return ok
}

// SetLeader makes characterID the leader. Non-members are ignored.
func (p *Party) SetLeader(characterID string) {
	if p.IsMember(characterID) {
		p.LeaderID = characterID
	}
}

// Clone returns a deep copy of p.
func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Members = make(map[string]SocialCharacter, len(p.Members))
	for k, v := range p.Members {
		cp.Members[k] = v
	}
	return &cp
}
