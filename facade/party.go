package facade

import (
	"context"
	"maps"
	"slices"

	"github.com/kasuganosora/mmocache/entity"
)

// CreateParty stores a new party, caches it and joins the leader to it.
func (svc *Service) CreateParty(ctx context.Context, shareExp, shareItem bool, leaderID string) (*entity.Party, error) {
	id, err := svc.store.CreateParty(ctx, shareExp, shareItem, leaderID)
	if err != nil {
		return nil, err
	}
	p := &entity.Party{
		ID:        id,
		ShareExp:  shareExp,
		ShareItem: shareItem,
		LeaderID:  leaderID,
		Members:   make(map[string]entity.SocialCharacter),
	}
	svc.parties.set(id, p)

	leader, ok, err := svc.readSocial(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p, nil
	}
	joined, _, err := svc.UpdateCharacterParty(ctx, leader, id)
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (svc *Service) ReadParty(ctx context.Context, id int) (*entity.Party, bool, error) {
	unlock := svc.parties.lock(id)
	defer unlock()
	return svc.fetchParty(ctx, id)
}

func (svc *Service) fetchParty(ctx context.Context, id int) (*entity.Party, bool, error) {
	return svc.parties.fetch(ctx, id, func(ctx context.Context) (*entity.Party, error) {
		p, err := svc.store.ReadParty(ctx, id)
		if err == nil {
			svc.cacheSocials(p.Members)
		}
		return p, err
	})
}

// modifyParty runs a read-modify-write on a cached party. fn mutates the
// party; write persists it.
func (svc *Service) modifyParty(ctx context.Context, id int, fn func(*entity.Party), write func() error) (*entity.Party, bool, error) {
	unlock := svc.parties.lock(id)
	defer unlock()
	p, ok, err := svc.fetchParty(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	fn(p)
	if err := svc.parties.put(id, p, write); err != nil {
		return nil, true, err
	}
	return p, true, nil
}

func (svc *Service) UpdateParty(ctx context.Context, id int, shareExp, shareItem bool) (*entity.Party, bool, error) {
	return svc.modifyParty(ctx, id,
		func(p *entity.Party) { p.ShareExp, p.ShareItem = shareExp, shareItem },
		func() error { return svc.store.UpdateParty(ctx, id, shareExp, shareItem) })
}

func (svc *Service) UpdatePartyLeader(ctx context.Context, id int, leaderID string) (*entity.Party, bool, error) {
	return svc.modifyParty(ctx, id,
		func(p *entity.Party) { p.SetLeader(leaderID) },
		func() error { return svc.store.UpdatePartyLeader(ctx, id, leaderID) })
}

// DeleteParty removes the party and clears the party id of its members,
// locking their characters first like DeleteGuild.
func (svc *Service) DeleteParty(ctx context.Context, id int) error {
	for {
		p, _, err := svc.ReadParty(ctx, id)
		if err != nil {
			return err
		}
		var members []string
		if p != nil {
			members = slices.Collect(maps.Keys(p.Members))
		}
		unlockChars := svc.lockCharacters(members...)
		done, err := svc.deleteParty(ctx, id, members)
		unlockChars()
		if done {
			return err
		}
	}
}

func (svc *Service) deleteParty(ctx context.Context, id int, locked []string) (bool, error) {
	unlock := svc.parties.lock(id)
	defer unlock()
	p, _, err := svc.fetchParty(ctx, id)
	if err != nil {
		return true, err
	}
	if p != nil && !coversMembers(locked, p.Members) {
		return false, nil
	}
	if err := svc.store.DeleteParty(ctx, id); err != nil {
		return true, err
	}
	svc.parties.del(id)
	if p == nil {
		return true, nil
	}
	for memberID := range p.Members {
		svc.patchCharacter(memberID, func(c *entity.Character) {
			if c.PartyID == id {
				c.PartyID = 0
			}
		})
	}
	return true, nil
}

// UpdateCharacterParty joins member to party id.
func (svc *Service) UpdateCharacterParty(ctx context.Context, member entity.SocialCharacter, id int) (*entity.Party, bool, error) {
	unlockChar := svc.characters.lock(member.ID)
	defer unlockChar()
	p, ok, err := svc.modifyParty(ctx, id,
		func(p *entity.Party) { p.AddMember(member) },
		func() error { return svc.store.UpdateCharacterParty(ctx, member.ID, id) })
	if err != nil || !ok {
		return nil, ok, err
	}
	svc.patchCharacter(member.ID, func(c *entity.Character) { c.PartyID = id })
	return p, true, nil
}

// ClearCharacterParty removes the character from its party. It reports
// false when the character does not exist.
func (svc *Service) ClearCharacterParty(ctx context.Context, characterID string) (bool, error) {
	unlockChar := svc.characters.lock(characterID)
	defer unlockChar()
	c, ok, err := svc.fetchCharacter(ctx, characterID)
	if err != nil || !ok {
		return ok, err
	}
	partyID := c.PartyID
	if partyID == 0 {
		return true, nil
	}
	c.PartyID = 0
	if err := svc.characters.put(characterID, c, func() error {
		return svc.store.UpdateCharacterParty(ctx, characterID, 0)
	}); err != nil {
		return true, err
	}
	svc.patchCharacter(characterID, func(c *entity.Character) { c.PartyID = 0 })

	unlock := svc.parties.lock(partyID)
	defer unlock()
	svc.parties.update(partyID, func(p *entity.Party) *entity.Party {
		p.RemoveMember(characterID)
		return p
	})
	return true, nil
}
