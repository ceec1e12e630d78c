package users

import (
	"strings"
	"time"
)

// Identity maps a provider login to a canonical owner id and carries the
// profile used to prefill personal information.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	OwnerID     string    `gorm:"column:owner_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	AvatarURL   string    `gorm:"column:user_avatar_url;size:512"`
	Phone       string    `gorm:"column:phone;size:64"`
	Location    string    `gorm:"column:location;size:200"`
	Website     string    `gorm:"column:website;size:512"`
	LinkedIn    string    `gorm:"column:linkedin;size:512"`
	GitHub      string    `gorm:"column:github;size:512"`
	Bio         string    `gorm:"column:bio;type:text"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// ProfileUpdate overwrites only the non-nil profile fields.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Phone       *string `json:"phone"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
	LinkedIn    *string `json:"linkedin"`
	GitHub      *string `json:"github"`
	Bio         *string `json:"bio"`
}

func (u ProfileUpdate) columns() map[string]any {
	columns := map[string]any{}
	assign := func(column string, value *string) {
		if value != nil {
			columns[column] = normalize(*value)
		}
	}
	assign("user_display_name", u.DisplayName)
	assign("phone", u.Phone)
	assign("location", u.Location)
	assign("website", u.Website)
	assign("linkedin", u.LinkedIn)
	assign("github", u.GitHub)
	assign("bio", u.Bio)
	return columns
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
