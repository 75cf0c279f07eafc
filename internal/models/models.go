package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null"  json:"username"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null"             json:"-"`
	Wins         int       `gorm:"not null;default:0"            json:"wins"`
	Losses       int       `gorm:"not null;default:0"            json:"losses"`
	Draws        int       `gorm:"not null;default:0"            json:"draws"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	ResultPlayer1 = "player1"
	ResultPlayer2 = "player2"
	ResultDraw    = "draw"
)

type Game struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Player1ID    uint      `gorm:"index;not null"           json:"player1_id"`
	Player2ID    uint      `gorm:"index;not null"           json:"player2_id"`
	Player1Score int       `gorm:"not null;default:0"       json:"player1_score"`
	Player2Score int       `gorm:"not null;default:0"       json:"player2_score"`
	Result       string    `gorm:"size:50;not null"         json:"result"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken stores the sha256 of the issued token, never the token itself.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                    json:"id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"  json:"-"`
	JTI       string    `gorm:"size:36;uniqueIndex;not null"  json:"jti"`
	SessionID string    `gorm:"size:36;index;not null"        json:"session_id"`
	UserID    uint      `gorm:"index;not null"                json:"user_id"`
	CreatedAt time.Time `gorm:"not null"                      json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null"                json:"expires_at"`
}

// RevokedToken marks an access token jti that must not be honored again.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"                   json:"id"`
	JTI       string    `gorm:"size:36;uniqueIndex;not null" json:"jti"`
	SessionID string    `gorm:"size:36;index"                json:"session_id"`
	CreatedAt time.Time `gorm:"not null"                     json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null"               json:"expires_at"`
}

func All() []any {
	return []any{&User{}, &Game{}, &RefreshToken{}, &RevokedToken{}}
}
