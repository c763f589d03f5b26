package notifications

import "context"

func (s *Store) CreateNotification(ctx context.Context, userID int64, ntype, title, body string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (user_id, type, title, body)
    VALUES ($1,$2,$3,$4)
  `, userID, ntype, title, body)
	return err
}

func (s *Store) UserEmail(ctx context.Context, userID int64) (string, error) {
	var email string
	if err := s.DB.QueryRow(ctx, "SELECT email FROM users WHERE id = $1", userID).Scan(&email); err != nil {
		return "", err
	}
	return email, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, title, body, read_at, created_at
    FROM notifications
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID int64) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications WHERE user_id = $1", userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID int64) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE user_id = $1 AND id = $2
  `, userID, notificationID)
	return err
}

func (s *Store) Settings(ctx context.Context) (*Settings, error) {
	var settings Settings
	err := s.DB.QueryRow(ctx, `
    SELECT email_enabled, email_from, report_recipients
    FROM notification_settings
    WHERE id = 1
  `).Scan(&settings.EmailEnabled, &settings.EmailFrom, &settings.ReportRecipients)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings Settings) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notification_settings (id, email_enabled, email_from, report_recipients)
    VALUES (1,$1,$2,$3)
    ON CONFLICT (id) DO UPDATE
      SET email_enabled = EXCLUDED.email_enabled,
          email_from = EXCLUDED.email_from,
          report_recipients = EXCLUDED.report_recipients
  `, settings.EmailEnabled, settings.EmailFrom, settings.ReportRecipients)
	return err
}
