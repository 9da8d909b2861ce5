package store_test

import (
	"context"
	"testing"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/store"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.GormStore {
	return store.NewGormStore(testutil.SetupTestDB(t))
}

func createCharacter(t *testing.T, s *store.GormStore, accountID, name string) *entity.Character {
	t.Helper()
	c := &entity.Character{Name: name, DataID: 1, Level: 1}
	require.NoError(t, s.CreateCharacter(context.Background(), accountID, c))
	require.NotEmpty(t, c.ID)
	return c
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateUserLogin(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = s.CreateUserLogin(ctx, "alice", "other")
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.ValidateUserLogin(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	got, err = s.ValidateUserLogin(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = s.ValidateUserLogin(ctx, "nobody", "secret")
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.FindUsername(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := s.ValidateAccessToken(ctx, id, "tok")
	require.NoError(t, err)
	assert.False(t, ok, "no token issued yet")
	require.NoError(t, s.UpdateAccessToken(ctx, id, "tok"))
	ok, err = s.ValidateAccessToken(ctx, id, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.UpdateGold(ctx, id, 500))
	require.NoError(t, s.UpdateCash(ctx, id, 20))
	gold, err := s.GetGold(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 500, gold)
	cash, err := s.GetCash(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 20, cash)

	_, err = s.GetGold(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCharacters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c := createCharacter(t, s, "acc-1", "Hero")
	createCharacter(t, s, "acc-1", "Heroine")

	c.Level = 7
	c.NonEquipItems = item.List{item.NewSlot(100, 4)}
	c.Position = entity.Vector3{X: 1, Y: 2, Z: 3}
	require.NoError(t, s.UpdateCharacter(ctx, c))

	got, err := s.ReadCharacter(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Level)
	assert.Equal(t, "acc-1", got.AccountID)
	assert.Equal(t, entity.Vector3{X: 1, Y: 2, Z: 3}, got.Position)
	require.Len(t, got.NonEquipItems, 1)
	assert.Equal(t, 4, got.NonEquipItems[0].Amount)

	list, err := s.ReadCharacters(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	found, err := s.FindCharacters(ctx, "Hero")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	id, err := s.GetIDByCharacterName(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)
	accountID, err := s.GetAccountIDByCharacterName(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)

	require.NoError(t, s.DeleteCharacter(ctx, "someone-else", c.ID))
	_, err = s.ReadCharacter(ctx, c.ID)
	require.NoError(t, err, "delete is scoped to the owning account")

	require.NoError(t, s.DeleteCharacter(ctx, "acc-1", c.ID))
	_, err = s.ReadCharacter(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	n, err := s.FindCharacterName(ctx, "Hero")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFriends(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createCharacter(t, s, "acc-1", "A")
	b := createCharacter(t, s, "acc-2", "B")

	require.NoError(t, s.CreateFriend(ctx, a.ID, b.ID))
	require.NoError(t, s.CreateFriend(ctx, a.ID, b.ID), "duplicate friend is ignored")

	friends, err := s.ReadFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "B", friends[0].Name)

	friends, err = s.ReadFriends(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	require.NoError(t, s.DeleteFriend(ctx, a.ID, b.ID))
	friends, err = s.ReadFriends(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestParty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	leader := createCharacter(t, s, "acc-1", "Leader")
	member := createCharacter(t, s, "acc-2", "Member")

	id, err := s.CreateParty(ctx, true, false, leader.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCharacterParty(ctx, leader.ID, id))
	require.NoError(t, s.UpdateCharacterParty(ctx, member.ID, id))

	p, err := s.ReadParty(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.ShareExp)
	assert.Len(t, p.Members, 2)

	require.NoError(t, s.UpdateParty(ctx, id, false, true))
	require.NoError(t, s.UpdatePartyLeader(ctx, id, member.ID))
	p, err = s.ReadParty(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.ShareExp)
	assert.True(t, p.ShareItem)
	assert.Equal(t, member.ID, p.LeaderID)

	require.NoError(t, s.DeleteParty(ctx, id))
	_, err = s.ReadParty(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	c, err := s.ReadCharacter(ctx, member.ID)
	require.NoError(t, err)
	assert.Zero(t, c.PartyID)
}

func TestGuild(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	leader := createCharacter(t, s, "acc-1", "Leader")
	member := createCharacter(t, s, "acc-2", "Member")
	roles := []entity.GuildRole{{Name: "Master"}, {Name: "Officer"}, {Name: "Member"}}

	id, err := s.CreateGuild(ctx, "Knights", leader.ID, roles)
	require.NoError(t, err)
	_, err = s.CreateGuild(ctx, "Knights", member.ID, roles)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, s.UpdateCharacterGuild(ctx, leader.ID, id, 0))
	require.NoError(t, s.UpdateCharacterGuild(ctx, member.ID, id, 2))
	require.NoError(t, s.UpdateGuildMessage(ctx, id, "hello"))
	require.NoError(t, s.UpdateGuildRole(ctx, id, 1, entity.GuildRole{Name: "Captain", CanInvite: true}))
	assert.Error(t, s.UpdateGuildRole(ctx, id, 9, entity.GuildRole{}))
	require.NoError(t, s.UpdateGuildLevel(ctx, id, 3, 150, 2))
	require.NoError(t, s.UpdateGuildSkillLevel(ctx, id, 11, 1, 1))
	require.NoError(t, s.UpdateGuildGold(ctx, id, 900))

	g, err := s.ReadGuild(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Message)
	assert.Equal(t, "Captain", g.Roles[1].Name)
	assert.True(t, g.Roles[1].CanInvite)
	assert.Equal(t, 3, g.Level)
	assert.EqualValues(t, 150, g.Exp)
	assert.Equal(t, 1, g.SkillPoints)
	assert.Equal(t, 1, g.SkillLevel(11))
	assert.EqualValues(t, 900, g.Gold)
	assert.Len(t, g.Members, 2)
	role, _ := g.MemberRole(member.ID)
	assert.EqualValues(t, 2, role)

	require.NoError(t, s.UpdateGuildLeader(ctx, id, member.ID))
	g, err = s.ReadGuild(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, member.ID, g.LeaderID)
	role, ok := g.MemberRole(member.ID)
	require.True(t, ok)
	assert.EqualValues(t, 0, role)
	role, _ = g.MemberRole(leader.ID)
	assert.EqualValues(t, 2, role, "previous leader drops to the lowest role")

	n, err := s.FindGuildName(ctx, "Knights")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.DeleteGuild(ctx, id))
	_, err = s.ReadGuild(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	c, err := s.ReadCharacter(ctx, member.ID)
	require.NoError(t, err)
	assert.Zero(t, c.GuildID)
}

func TestBuildings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	b := entity.Building{ID: "b-1", EntityID: 5, CreatorID: "char-1", Position: entity.Vector3{X: 4}}

	require.NoError(t, s.CreateBuilding(ctx, "map1", b))
	b.CurrentHP = 80
	require.NoError(t, s.UpdateBuilding(ctx, "map1", b))

	list, err := s.ReadBuildings(ctx, "map1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 80, list[0].CurrentHP)
	assert.Equal(t, float32(4), list[0].Position.X)
	assert.Equal(t, "map1", list[0].MapName)

	require.NoError(t, s.DeleteBuilding(ctx, "map1", "b-1"))
	list, err = s.ReadBuildings(ctx, "map1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStorageItems(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	id := entity.StorageID{Type: entity.StorageGuild, OwnerID: "7"}

	items, err := s.ReadStorageItems(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.UpdateStorageItems(ctx, id, item.List{item.NewSlot(100, 3)}))
	require.NoError(t, s.UpdateStorageItems(ctx, id, item.List{item.NewSlot(100, 5), item.NewSlot(200, 1)}))

	items, err = s.ReadStorageItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].Amount)

	other, err := s.ReadStorageItems(ctx, entity.StorageID{Type: entity.StoragePlayer, OwnerID: "7"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
