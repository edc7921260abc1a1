package models

import "time"

// User roles recognised by the API.
const (
	UserRoleStudent = "student"
	UserRoleTeacher = "teacher"
	UserRoleAdmin   = "admin"
)

// UsageWindow tracks evaluation attempts inside the current hourly window.
type UsageWindow struct {
	WindowStart *time.Time `gorm:"column:window_start" json:"window_start"`
	Count       int        `gorm:"column:count;not null;default:0" json:"count"`
}

// User is an account able to upload documents or own classrooms.
type User struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Email     string      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName string      `gorm:"size:255;not null" json:"first_name"`
	LastName  string      `gorm:"size:255;not null" json:"last_name"`
	Role      string      `gorm:"size:32;not null;default:student" json:"role"`
	Usage     UsageWindow `gorm:"embedded;embeddedPrefix:evaluation_" json:"usage"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DisplayName joins the first and last name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
