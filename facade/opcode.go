package facade

import "strconv"

// OpCode numbers every remote operation.
type OpCode int

const (
	OpValidateUserLogin OpCode = iota + 1
	OpValidateAccessToken
	OpGetUserLevel
	OpGetGold
	OpChangeGold
	OpGetCash
	OpChangeCash
	OpUpdateAccessToken
	OpCreateUserLogin
	OpFindUsername
	OpCreateCharacter
	OpReadCharacter
	OpReadCharacters
	OpUpdateCharacter
	OpDeleteCharacter
	OpFindCharacterName
	OpFindCharacters
	OpCreateFriend
	OpDeleteFriend
	OpReadFriends
	OpCreateBuilding
	OpUpdateBuilding
	OpDeleteBuilding
	OpReadBuildings
	OpCreateParty
	OpUpdateParty
	OpUpdatePartyLeader
	OpDeleteParty
	OpUpdateCharacterParty
	OpClearCharacterParty
	OpReadParty
	OpCreateGuild
	OpUpdateGuildLeader
	OpUpdateGuildMessage
	OpUpdateGuildRole
	OpUpdateGuildMemberRole
	OpDeleteGuild
	OpUpdateCharacterGuild
	OpClearCharacterGuild
	OpFindGuildName
	OpReadGuild
	OpIncreaseGuildExp
	OpAddGuildSkill
	OpGetGuildGold
	OpChangeGuildGold
	OpReadStorageItems
	OpMoveItemToStorage
	OpMoveItemFromStorage
	OpSwapOrMergeStorageItem
	OpIncreaseStorageItems
	OpDecreaseStorageItems
)

const (
	OpGetIDByCharacterName     OpCode = 58
	OpGetUserIDByCharacterName OpCode = 59
	OpCustom                   OpCode = 100
)

var opNames = map[OpCode]string{
	OpValidateUserLogin:        "validate_user_login",
	OpValidateAccessToken:      "validate_access_token",
	OpGetUserLevel:             "get_user_level",
	OpGetGold:                  "get_gold",
	OpChangeGold:               "change_gold",
	OpGetCash:                  "get_cash",
	OpChangeCash:               "change_cash",
	OpUpdateAccessToken:        "update_access_token",
	OpCreateUserLogin:          "create_user_login",
	OpFindUsername:             "find_username",
	OpCreateCharacter:          "create_character",
	OpReadCharacter:            "read_character",
	OpReadCharacters:           "read_characters",
	OpUpdateCharacter:          "update_character",
	OpDeleteCharacter:          "delete_character",
	OpFindCharacterName:        "find_character_name",
	OpFindCharacters:           "find_characters",
	OpCreateFriend:             "create_friend",
	OpDeleteFriend:             "delete_friend",
	OpReadFriends:              "read_friends",
	OpCreateBuilding:           "create_building",
	OpUpdateBuilding:           "update_building",
	OpDeleteBuilding:           "delete_building",
	OpReadBuildings:            "read_buildings",
	OpCreateParty:              "create_party",
	OpUpdateParty:              "update_party",
	OpUpdatePartyLeader:        "update_party_leader",
	OpDeleteParty:              "delete_party",
	OpUpdateCharacterParty:     "update_character_party",
	OpClearCharacterParty:      "clear_character_party",
	OpReadParty:                "read_party",
	OpCreateGuild:              "create_guild",
	OpUpdateGuildLeader:        "update_guild_leader",
	OpUpdateGuildMessage:       "update_guild_message",
	OpUpdateGuildRole:          "update_guild_role",
	OpUpdateGuildMemberRole:    "update_guild_member_role",
	OpDeleteGuild:              "delete_guild",
	OpUpdateCharacterGuild:     "update_character_guild",
	OpClearCharacterGuild:      "clear_character_guild",
	OpFindGuildName:            "find_guild_name",
	OpReadGuild:                "read_guild",
	OpIncreaseGuildExp:         "increase_guild_exp",
	OpAddGuildSkill:            "add_guild_skill",
	OpGetGuildGold:             "get_guild_gold",
	OpChangeGuildGold:          "change_guild_gold",
	OpReadStorageItems:         "read_storage_items",
	OpMoveItemToStorage:        "move_item_to_storage",
	OpMoveItemFromStorage:      "move_item_from_storage",
	OpSwapOrMergeStorageItem:   "swap_or_merge_storage_item",
	OpIncreaseStorageItems:     "increase_storage_items",
	OpDecreaseStorageItems:     "decrease_storage_items",
	OpGetIDByCharacterName:     "get_id_by_character_name",
	OpGetUserIDByCharacterName: "get_user_id_by_character_name",
	OpCustom:                   "custom",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "op_" + strconv.Itoa(int(op))
}

// Known reports whether op is a defined operation.
func (op OpCode) Known() bool {
	_, ok := opNames[op]
	return ok
}
