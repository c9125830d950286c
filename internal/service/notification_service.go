package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationServiceImpl implements ports.NotificationService.
type NotificationServiceImpl struct {
	repo       ports.NotificationRepository
	profiles   ports.ProfileRepository
	email      ports.EmailSender
	adminEmail string
	log        zerolog.Logger
	now        func() time.Time

	disabledOnce sync.Once
}

func NewNotificationService(
	repo ports.NotificationRepository,
	profiles ports.ProfileRepository,
	email ports.EmailSender,
	adminEmail string,
	log zerolog.Logger,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		repo:       repo,
		profiles:   profiles,
		email:      email,
		adminEmail: adminEmail,
		log:        log,
		now:        time.Now,
	}
}

// Notify renders notice.Template, stores an in-app row for notice.UserID and
// emails the recipient. Email failures are logged, not returned.
func (s *NotificationServiceImpl) Notify(ctx context.Context, notice ports.Notice) error {
	if notice.UserID != uuid.Nil && (notice.Email == "" || notice.Name == "") {
		s.fillRecipient(ctx, &notice)
	}
	data := withDefault(notice.Data, "Name", displayName(notice))

	msg, err := renderTemplate(notice.Template, data)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("render %s: %w", notice.Template, err))
	}

	if notice.UserID != uuid.Nil {
		n := &domain.Notification{
			ID:        uuid.New(),
			UserID:    notice.UserID,
			Type:      msg.Kind,
			Title:     msg.Subject,
			Message:   msg.Text,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return apperror.InternalError(fmt.Errorf("create notification: %w", err))
		}
	}

	s.sendEmail(ctx, notice, msg)
	return nil
}

// NotifyAdmin emails the operations inbox. No in-app row is written unless
// the notice names a user.
func (s *NotificationServiceImpl) NotifyAdmin(ctx context.Context, notice ports.Notice) error {
	if notice.Email == "" {
		notice.Email = s.adminEmail
	}
	if notice.Name == "" {
		notice.Name = "ReBooked Admin"
	}
	if notice.Email == "" && notice.UserID == uuid.Nil {
		s.log.Warn().Str("template", notice.Template).Msg("admin email not configured, dropping admin notice")
		return nil
	}
	return s.Notify(ctx, notice)
}

func (s *NotificationServiceImpl) sendEmail(ctx context.Context, notice ports.Notice, msg *renderedEmail) {
	if !s.email.Enabled() {
		s.disabledOnce.Do(func() {
			s.log.Warn().Msg("email provider not configured, emails are disabled")
		})
		return
	}
	if notice.Email == "" {
		s.log.Debug().Str("template", notice.Template).Str("user_id", notice.UserID.String()).Msg("no email address, skipping email")
		return
	}

	err := s.email.Send(ctx, ports.Email{
		ToEmail: notice.Email,
		ToName:  notice.Name,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Tags:    []string{notice.Template},
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("template", notice.Template).
			Str("to", notice.Email).
			Msg("failed to send email")
	}
}

func (s *NotificationServiceImpl) fillRecipient(ctx context.Context, notice *ports.Notice) {
	p, err := s.profiles.GetByID(ctx, notice.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", notice.UserID.String()).Msg("profile lookup failed for notification")
		return
	}
	if p == nil {
		return
	}
	if notice.Email == "" {
		notice.Email = p.Email
	}
	if notice.Name == "" {
		notice.Name = p.Name
	}
}

// Broadcast writes one in-app notification per recipient. Returns how many
// rows were written.
func (s *NotificationServiceImpl) Broadcast(ctx context.Context, req ports.BroadcastRequest) (int64, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if title == "" || message == "" {
		return 0, apperror.Validation("title and message are required")
	}

	ids := req.UserIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.profiles.ListIDs(ctx)
		if err != nil {
			return 0, apperror.InternalError(fmt.Errorf("list profiles: %w", err))
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	rows := make([]domain.Notification, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, domain.Notification{
			ID:        uuid.New(),
			UserID:    id,
			Type:      domain.NotificationBroadcast,
			Title:     title,
			Message:   message,
			CreatedAt: now,
		})
	}

	n, err := s.repo.CreateMany(ctx, rows)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("create broadcast notifications: %w", err))
	}
	s.log.Info().Int64("recipients", n).Str("title", title).Msg("broadcast sent")
	return n, nil
}

func (s *NotificationServiceImpl) List(ctx context.Context, userID uuid.UUID, page int, pageSize int) ([]domain.Notification, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.repo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list notifications: %w", err))
	}
	return items, total, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("mark notification read: %w", err))
	}
	if !ok {
		return apperror.ErrNotFound("Notification")
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func displayName(n ports.Notice) string {
	if n.Name != "" {
		return n.Name
	}
	if at := strings.Index(n.Email, "@"); at > 0 {
		return n.Email[:at]
	}
	return "there"
}

func withDefault(data map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	if _, ok := out[key]; !ok {
		out[key] = value
	}
	return out
}
