package models

const (
	RoleAthlete = "athlete"
	RoleCoach   = "coach"
)

// User represents a registered user of the application. The messaging core
// reads users only: identity resolution for connections, display names on
// typing events and push tokens for fan-out.
type User struct {
	Model
	Fullname  string `json:"fullname" gorm:"not null" conform:"trim"`
	Username  string `json:"username" gorm:"unique;not null" conform:"trim,lower"`
	Email     string `json:"email" gorm:"unique;not null" conform:"trim,lower"`
	Role      string `json:"role" gorm:"not null;default:athlete"`
	AvatarURL string `json:"avatar_url,omitempty"`
	PushToken string `json:"-"`
}

// UserBrief is the wire form of a user embedded in conversation payloads.
type UserBrief struct {
	ID        uint   `json:"id"`
	Fullname  string `json:"fullname"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) Brief() UserBrief {
	return UserBrief{
		ID:        u.ID,
		Fullname:  u.Fullname,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}
