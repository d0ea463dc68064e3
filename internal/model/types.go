package model

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Preferences  []string
	CreatedAt    int64
}

// Session is a refresh-token session. A user has one per logged-in device.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	ExpiresAt    int64
	CreatedAt    int64
}

type Recipe struct {
	ID           int64
	UserID       string
	Title        string
	Description  string
	Ingredients  []string
	Instructions string
	Tags         []string
	IsPublic     bool
	CreatedAt    int64
	UpdatedAt    int64
}

type Review struct {
	ID        int64
	RecipeID  int64
	UserID    string
	Rating    int
	Comment   string
	CreatedAt int64
}

type Device struct {
	DeviceID      string
	UserID        string
	FirebaseToken string
	UpdatedAt     int64
}

type HydrationReminder struct {
	UserID   string
	Timezone string
	// StartHour and EndHour bound the local-time window, both inclusive.
	StartHour      int
	EndHour        int
	IntervalHours  float64
	LastNotifiedAt int64
}
