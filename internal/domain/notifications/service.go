package notifications

import (
	"context"
	"log/slog"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Create records an in-app notification and, when email is enabled,
// mirrors it to the user's address. Mail failures are logged, never
// surfaced to the caller.
func (s *Service) Create(ctx context.Context, userID int64, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}

	settings, err := s.store.Settings(ctx)
	if err != nil || !settings.EmailEnabled {
		return nil
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}

	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, from, email, title, body); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID int64) (int, error) {
	return s.store.CountNotifications(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	return s.store.Settings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	return s.store.UpdateSettings(ctx, settings)
}

// ReportRecipients splits the configured comma-separated address list.
func (s *Service) ReportRecipients(ctx context.Context) ([]string, string, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}
	if !settings.EmailEnabled {
		return nil, from, nil
	}

	var recipients []string
	for _, addr := range strings.Split(settings.ReportRecipients, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients, from, nil
}
