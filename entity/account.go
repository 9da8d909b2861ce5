package entity

// Account is a player login account.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	Gold        int64  `json:"gold"`
	Cash        int64  `json:"cash"`
	UserLevel   uint8  `json:"user_level"`
}
