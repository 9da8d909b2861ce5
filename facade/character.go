package facade

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/kasuganosora/mmocache/entity"
	"go.uber.org/zap"
)

// CreateCharacter stores c for accountID and caches it. An empty id is
// assigned here.
func (svc *Service) CreateCharacter(ctx context.Context, accountID string, c *entity.Character) (*entity.Character, error) {
	c = c.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.AccountID = accountID
	unlock := svc.characters.lock(c.ID)
	defer unlock()
	err := svc.characters.put(c.ID, c, func() error {
		return svc.store.CreateCharacter(ctx, accountID, c)
	})
	if err != nil {
		return nil, err
	}
	svc.characterNames.set(c.Name, struct{}{})
	svc.socials.set(c.ID, c.Social())
	return c.Clone(), nil
}

func (svc *Service) ReadCharacter(ctx context.Context, id string) (*entity.Character, bool, error) {
	unlock := svc.characters.lock(id)
	defer unlock()
	return svc.fetchCharacter(ctx, id)
}

// fetchCharacter is the read-through path; the caller holds the lock.
func (svc *Service) fetchCharacter(ctx context.Context, id string) (*entity.Character, bool, error) {
	if c, ok := svc.characters.get(id); ok {
		return c, true, nil
	}
	c, err := svc.store.ReadCharacter(ctx, id)
	c, ok, err := absent(c, err)
	if !ok {
		return nil, false, err
	}
	svc.characters.set(id, c)
	svc.characterNames.set(c.Name, struct{}{})
	return c, true, nil
}

// ReadCharacters lists an account's characters straight from the store.
func (svc *Service) ReadCharacters(ctx context.Context, accountID string) ([]*entity.Character, error) {
	return svc.store.ReadCharacters(ctx, accountID)
}

// UpdateCharacter replaces the cached character and writes it through.
func (svc *Service) UpdateCharacter(ctx context.Context, c *entity.Character) (*entity.Character, error) {
	c = c.Clone()
	unlock := svc.characters.lock(c.ID)
	defer unlock()
	if err := svc.characters.put(c.ID, c, func() error {
		return svc.store.UpdateCharacter(ctx, c)
	}); err != nil {
		svc.logger.Error("character write failed", zap.String("character_id", c.ID), zap.Error(err))
		return nil, err
	}
	svc.socials.set(c.ID, c.Social())
	return c.Clone(), nil
}

// DeleteCharacter removes the character from the store and drops it and its
// name from the cache.
func (svc *Service) DeleteCharacter(ctx context.Context, accountID, id string) error {
	unlock := svc.characters.lock(id)
	defer unlock()
	if err := svc.store.DeleteCharacter(ctx, accountID, id); err != nil {
		return err
	}
	if c, ok := svc.characters.get(id); ok {
		if c.AccountID != accountID {
			return nil
		}
		svc.characterNames.del(c.Name)
	}
	svc.characters.del(id)
	svc.socials.del(id)
	svc.friends.del(id)
	return nil
}

func (svc *Service) FindCharacterName(ctx context.Context, name string) (int64, error) {
	return svc.findName(ctx, svc.characterNames, name, svc.store.FindCharacterName)
}

// FindCharacters searches character names. Results are not cached.
func (svc *Service) FindCharacters(ctx context.Context, name string) ([]entity.SocialCharacter, error) {
	return svc.store.FindCharacters(ctx, name)
}

func (svc *Service) GetIDByCharacterName(ctx context.Context, name string) (string, bool, error) {
	id, err := svc.store.GetIDByCharacterName(ctx, name)
	return absent(id, err)
}

func (svc *Service) GetUserIDByCharacterName(ctx context.Context, name string) (string, bool, error) {
	id, err := svc.store.GetAccountIDByCharacterName(ctx, name)
	return absent(id, err)
}

// readSocial resolves the list projection of a character from the social
// table, then the character table, then the store.
func (svc *Service) readSocial(ctx context.Context, id string) (entity.SocialCharacter, bool, error) {
	if s, ok := svc.socials.get(id); ok {
		return s, true, nil
	}
	if c, ok := svc.characters.get(id); ok {
		s := c.Social()
		svc.socials.set(id, s)
		return s, true, nil
	}
	c, err := svc.store.ReadCharacter(ctx, id)
	c, ok, err := absent(c, err)
	if !ok {
		return entity.SocialCharacter{}, false, err
	}
	s := c.Social()
	svc.socials.set(id, s)
	return s, true, nil
}

func (svc *Service) cacheSocials(members map[string]entity.SocialCharacter) {
	for id, m := range members {
		svc.socials.set(id, m)
	}
}

// lockCharacters takes the locks of ids in sorted order so that two callers
// locking overlapping sets cannot deadlock. Empty and repeated ids are
// skipped. Character locks are always taken before party or guild locks.
func (svc *Service) lockCharacters(ids ...string) func() {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	unlocks := make([]func(), 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		unlocks = append(unlocks, svc.characters.lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// coversMembers reports whether every member id is in locked.
func coversMembers(locked []string, members map[string]entity.SocialCharacter) bool {
	for id := range members {
		if !slices.Contains(locked, id) {
			return false
		}
	}
	return true
}

// patchCharacter applies fn to the cached character and its social entry
// when cached. The caller holds the character lock and issues the narrow
// store write itself.
func (svc *Service) patchCharacter(id string, fn func(*entity.Character)) {
	svc.characters.update(id, func(c *entity.Character) *entity.Character {
		fn(c)
		return c
	})
	svc.socials.update(id, func(s entity.SocialCharacter) entity.SocialCharacter {
		c := entity.Character{PartyID: s.PartyID, GuildID: s.GuildID, GuildRole: s.GuildRole}
		fn(&c)
		s.PartyID, s.GuildID, s.GuildRole = c.PartyID, c.GuildID, c.GuildRole
		return s
	})
}
