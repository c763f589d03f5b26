package notifications

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Notification struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Settings is the single-row email configuration. ReportRecipients is
// a comma-separated address list for the monthly report mail.
type Settings struct {
	EmailEnabled     bool   `json:"emailEnabled"`
	EmailFrom        string `json:"emailFrom"`
	ReportRecipients string `json:"reportRecipients"`
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)
