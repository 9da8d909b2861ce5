package facade

import (
	"context"
	"sort"

	"github.com/kasuganosora/mmocache/entity"
)

// CreateFriend adds friendID to characterID's friend list and returns the
// list. An unknown friend leaves the list unchanged.
func (svc *Service) CreateFriend(ctx context.Context, characterID, friendID string) ([]entity.SocialCharacter, error) {
	unlock := svc.friends.lock(characterID)
	defer unlock()
	friends, _, err := svc.fetchFriends(ctx, characterID)
	if err != nil {
		return nil, err
	}
	friend, ok, err := svc.readSocial(ctx, friendID)
	if err != nil || !ok {
		return friends, err
	}
	next := entity.CloneSocial(friends)
	replaced := false
	for i := range next {
		if next[i].ID == friendID {
			next[i] = friend
			replaced = true
		}
	}
	if !replaced {
		next = append(next, friend)
	}
	if err := svc.friends.put(characterID, next, func() error {
		return svc.store.CreateFriend(ctx, characterID, friendID)
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteFriend removes friendID from characterID's friend list and returns
// the list.
func (svc *Service) DeleteFriend(ctx context.Context, characterID, friendID string) ([]entity.SocialCharacter, error) {
	unlock := svc.friends.lock(characterID)
	defer unlock()
	friends, _, err := svc.fetchFriends(ctx, characterID)
	if err != nil {
		return nil, err
	}
	next := make([]entity.SocialCharacter, 0, len(friends))
	for _, f := range friends {
		if f.ID != friendID {
			next = append(next, f)
		}
	}
	if err := svc.friends.put(characterID, next, func() error {
		return svc.store.DeleteFriend(ctx, characterID, friendID)
	}); err != nil {
		return nil, err
	}
	return next, nil
}

func (svc *Service) ReadFriends(ctx context.Context, characterID string) ([]entity.SocialCharacter, error) {
	unlock := svc.friends.lock(characterID)
	defer unlock()
	friends, _, err := svc.fetchFriends(ctx, characterID)
	return friends, err
}

func (svc *Service) fetchFriends(ctx context.Context, characterID string) ([]entity.SocialCharacter, bool, error) {
	if friends, ok := svc.friends.get(characterID); ok {
		return friends, true, nil
	}
	friends, err := svc.store.ReadFriends(ctx, characterID)
	if err != nil {
		return nil, false, err
	}
	if friends == nil {
		friends = []entity.SocialCharacter{}
	}
	svc.friends.set(characterID, friends)
	for _, f := range friends {
		svc.socials.set(f.ID, f)
	}
	return entity.CloneSocial(friends), true, nil
}

// CreateBuilding stores b on mapName. The per-map cache is patched only
// when that map is already cached.
func (svc *Service) CreateBuilding(ctx context.Context, mapName string, b entity.Building) (entity.Building, error) {
	b.MapName = mapName
	if err := svc.writeBuilding(mapName, b.ID, &b, func() error {
		return svc.store.CreateBuilding(ctx, mapName, b)
	}); err != nil {
		return entity.Building{}, err
	}
	return b, nil
}

func (svc *Service) UpdateBuilding(ctx context.Context, mapName string, b entity.Building) (entity.Building, error) {
	b.MapName = mapName
	if err := svc.writeBuilding(mapName, b.ID, &b, func() error {
		return svc.store.UpdateBuilding(ctx, mapName, b)
	}); err != nil {
		return entity.Building{}, err
	}
	return b, nil
}

func (svc *Service) DeleteBuilding(ctx context.Context, mapName, id string) error {
	return svc.writeBuilding(mapName, id, nil, func() error {
		return svc.store.DeleteBuilding(ctx, mapName, id)
	})
}

// writeBuilding sets (b != nil) or removes building id in the cached map
// and issues write.
func (svc *Service) writeBuilding(mapName, id string, b *entity.Building, write func() error) error {
	unlock := svc.buildings.lock(mapName)
	defer unlock()
	cached, ok := svc.buildings.get(mapName)
	if !ok {
		return write()
	}
	if b != nil {
		cached[id] = *b
	} else {
		delete(cached, id)
	}
	return svc.buildings.put(mapName, cached, write)
}

// ReadBuildings returns every building on mapName ordered by id.
func (svc *Service) ReadBuildings(ctx context.Context, mapName string) ([]entity.Building, error) {
	m, _, err := svc.buildings.read(ctx, mapName, func(ctx context.Context) (map[string]entity.Building, error) {
		list, err := svc.store.ReadBuildings(ctx, mapName)
		if err != nil {
			return nil, err
		}
		m := make(map[string]entity.Building, len(list))
		for _, b := range list {
			m[b.ID] = b
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]entity.Building, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
