package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"insurance-backend/internal/mailer"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
)

// drainBatchSize caps how many outbox entries one drain pass processes.
const drainBatchSize = 50

// notificationTemplate is one renderable message; {{field}} markers are
// substituted from the outbox payload.
type notificationTemplate struct {
	Title   string
	Message string
	Subject string
	HTML    string
	Text    string
}

// templates is the event catalog. Missing keys fall back to a generic entry
// so an unknown event never blocks the drain.
var templates = map[string]notificationTemplate{
	"proposal.submitted": {
		Title:   "Proposal submitted",
		Message: "Your {{kind}} proposal has been received. Premium payable: {{premium}}. It is reserved for 7 days pending payment.",
		Subject: "Proposal received — payment pending",
		HTML:    "<p>Your <b>{{kind}}</b> proposal has been received.</p><p>Premium payable: <b>{{premium}}</b>. Please complete payment within 7 days.</p>",
		Text:    "Your {{kind}} proposal has been received. Premium payable: {{premium}}. Please complete payment within 7 days.",
	},
	"payment.received": {
		Title:   "Payment received",
		Message: "Payment of {{amount}} received for your {{kind}} proposal. It is now queued for review.",
		Subject: "Payment received",
		HTML:    "<p>We received your payment of <b>{{amount}}</b>.</p><p>Your {{kind}} proposal is now queued for review.</p>",
		Text:    "We received your payment of {{amount}}. Your {{kind}} proposal is now queued for review.",
	},
	"proposal.approved": {
		Title:   "Proposal approved",
		Message: "Your {{kind}} proposal has been approved. Your policy will be issued shortly.",
		Subject: "Proposal approved",
		HTML:    "<p>Your <b>{{kind}}</b> proposal has been approved. Your policy will be issued shortly.</p>",
		Text:    "Your {{kind}} proposal has been approved. Your policy will be issued shortly.",
	},
	"proposal.rejected": {
		Title:   "Proposal rejected",
		Message: "Your {{kind}} proposal was rejected: {{reason}}. A refund of your premium has been initiated.",
		Subject: "Proposal rejected — refund initiated",
		HTML:    "<p>Your <b>{{kind}}</b> proposal was rejected: {{reason}}.</p><p>A refund of your premium has been initiated.</p>",
		Text:    "Your {{kind}} proposal was rejected: {{reason}}. A refund of your premium has been initiated.",
	},
	"proposal.reupload_required": {
		Title:   "Documents required",
		Message: "Your {{kind}} proposal needs additional documents: {{notes}}",
		Subject: "Additional documents required",
		HTML:    "<p>Your <b>{{kind}}</b> proposal needs additional documents:</p><p>{{notes}}</p>",
		Text:    "Your {{kind}} proposal needs additional documents: {{notes}}",
	},
	"proposal.resubmitted": {
		Title:   "Documents resubmitted",
		Message: "A {{kind}} proposal has fresh documents and is back in the review queue.",
	},
	"refund.pending": {
		Title:   "Refund needs processing",
		Message: "A {{kind}} proposal was rejected; its premium refund needs manual processing.",
	},
	"refund.processed": {
		Title:   "Refund processed",
		Message: "Your refund of {{amount}} has been processed.",
		Subject: "Refund processed",
		HTML:    "<p>Your refund of <b>{{amount}}</b> has been processed.</p>",
		Text:    "Your refund of {{amount}} has been processed.",
	},
	"policy.issued": {
		Title:   "Policy issued",
		Message: "Policy {{policy_no}} is now active until {{end_date}}.",
		Subject: "Your policy {{policy_no}}",
		HTML:    "<p>Your policy <b>{{policy_no}}</b> is now active until {{end_date}}.</p>",
		Text:    "Your policy {{policy_no}} is now active until {{end_date}}.",
	},
	"policy.renewed": {
		Title:   "Policy renewed",
		Message: "Policy {{policy_no}} has been renewed until {{end_date}}.",
		Subject: "Policy renewed — {{policy_no}}",
		HTML:    "<p>Your policy <b>{{policy_no}}</b> has been renewed until {{end_date}}.</p>",
		Text:    "Your policy {{policy_no}} has been renewed until {{end_date}}.",
	},
	"proposal.lapsed": {
		Title:   "Proposal lapsed",
		Message: "Your {{kind}} proposal lapsed because payment was not completed within the reservation window.",
		Subject: "Proposal lapsed",
		HTML:    "<p>Your <b>{{kind}}</b> proposal lapsed because payment was not completed within the reservation window.</p>",
		Text:    "Your {{kind}} proposal lapsed because payment was not completed within the reservation window.",
	},
	"payment.reminder": {
		Title:   "Payment reminder",
		Message: "Your {{kind}} proposal is still unpaid and will lapse on {{expires_at}}.",
		Subject: "Complete your payment",
		HTML:    "<p>Your <b>{{kind}}</b> proposal is still unpaid and will lapse on {{expires_at}}.</p>",
		Text:    "Your {{kind}} proposal is still unpaid and will lapse on {{expires_at}}.",
	},
	"policy.expiring": {
		Title:   "Policy expiring soon",
		Message: "Policy {{policy_no}} expires on {{end_date}}. Renew to stay covered.",
		Subject: "Policy {{policy_no}} expires soon",
		HTML:    "<p>Policy <b>{{policy_no}}</b> expires on {{end_date}}. Renew to stay covered.</p>",
		Text:    "Policy {{policy_no}} expires on {{end_date}}. Renew to stay covered.",
	},
	"policy.expired": {
		Title:   "Policy expired",
		Message: "Policy {{policy_no}} has expired. Renew now to restore cover.",
		Subject: "Policy {{policy_no}} has expired",
		HTML:    "<p>Policy <b>{{policy_no}}</b> has expired. Renew now to restore cover.</p>",
		Text:    "Policy {{policy_no}} has expired. Renew now to restore cover.",
	},
}

var genericTemplate = notificationTemplate{
	Title:   "Update",
	Message: "There is an update on your application.",
}

// --- DTOs ---

type NotificationResponse struct {
	ID         string `json:"id"`
	EventKey   string `json:"event_key"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Read       bool   `json:"read"`
	CreatedAt  string `json:"created_at"`
}

// --- Interfaces ---

// Pusher delivers an in-app notification to a connected websocket client.
type Pusher interface {
	SendToUser(userID string, message []byte)
}

type NotificationService interface {
	// DrainOutbox delivers pending outbox entries. Each entry is deduped
	// against the send log per channel; delivery failures are recorded on
	// the entry and never propagate. Failed entries are retried on later
	// passes until they exhaust their attempt budget.
	DrainOutbox(ctx context.Context) (delivered int, err error)
	// StartDrainLoop drains on a fixed interval until ctx is cancelled.
	StartDrainLoop(ctx context.Context, interval time.Duration)
	ListMyNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]NotificationResponse, int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	userRepo  repository.UserRepository
	mail      mailer.Mailer
	pusher    Pusher
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	mail mailer.Mailer,
	pusher Pusher,
) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		userRepo:  userRepo,
		mail:      mail,
		pusher:    pusher,
	}
}

// --- Implementation ---

func (s *notificationService) StartDrainLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.DrainOutbox(ctx); err != nil {
				log.Printf("outbox drain failed: %v", err)
			}
		}
	}
}

func (s *notificationService) DrainOutbox(ctx context.Context) (int, error) {
	entries, err := s.notifRepo.ListPendingOutbox(ctx, drainBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending outbox: %w", err)
	}

	delivered := 0
	for i := range entries {
		entry := &entries[i]
		if dispatchErr := s.dispatch(ctx, entry); dispatchErr != nil {
			log.Printf("notification %s (%s) failed: %v", entry.ID, entry.EventKey, dispatchErr)
			if markErr := s.notifRepo.MarkOutboxFailed(ctx, entry.ID, dispatchErr.Error()); markErr != nil {
				log.Printf("failed to mark outbox entry %s failed: %v", entry.ID, markErr)
			}
			continue
		}
		if markErr := s.notifRepo.MarkOutboxSent(ctx, entry.ID); markErr != nil {
			log.Printf("failed to mark outbox entry %s sent: %v", entry.ID, markErr)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (s *notificationService) dispatch(ctx context.Context, entry *model.NotificationOutbox) error {
	recipients, err := s.resolveRecipients(ctx, entry)
	if err != nil {
		return err
	}

	data := payloadData(entry.Payload)
	tmpl, ok := templates[entry.TemplateCode]
	if !ok {
		tmpl = genericTemplate
	}

	for _, channel := range strings.Split(entry.Channels, ",") {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}

		key := repository.SendLogKey{
			Audience:   entry.Audience,
			EventKey:   entry.EventKey,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Milestone:  entry.Milestone,
			Channel:    channel,
		}
		alreadySent, logErr := s.notifRepo.HasSendLog(ctx, key)
		if logErr != nil {
			return logErr
		}
		if alreadySent {
			continue
		}

		switch channel {
		case model.ChannelInApp:
			if sendErr := s.sendInApp(ctx, entry, tmpl, data, recipients); sendErr != nil {
				return sendErr
			}
		case model.ChannelEmail:
			s.sendEmail(entry, tmpl, data, recipients)
		default:
			return apperr.Validationf("unknown notification channel %q", channel)
		}

		if _, recErr := s.notifRepo.RecordSend(ctx, key); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *notificationService) resolveRecipients(ctx context.Context, entry *model.NotificationOutbox) ([]model.User, error) {
	switch entry.Audience {
	case model.AudienceUser:
		if entry.RecipientUserID == nil {
			return nil, apperr.Validationf("outbox entry %s has no recipient user", entry.ID)
		}
		user, err := s.userRepo.GetByID(ctx, entry.RecipientUserID.String())
		if err != nil {
			return nil, apperr.NotFoundf("recipient %s not found: %w", entry.RecipientUserID, err)
		}
		return []model.User{*user}, nil
	case model.AudienceStaff:
		role := entry.RecipientRole
		if role == "" {
			role = model.RoleReviewer
		}
		return s.userRepo.ListByRole(ctx, role)
	default:
		return nil, apperr.Validationf("unknown audience %q", entry.Audience)
	}
}

func (s *notificationService) sendInApp(ctx context.Context, entry *model.NotificationOutbox, tmpl notificationTemplate, data map[string]string, recipients []model.User) error {
	for _, user := range recipients {
		n := model.Notification{
			UserID:     user.ID,
			EventKey:   entry.EventKey,
			Title:      render(tmpl.Title, data),
			Message:    render(tmpl.Message, data),
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
		}
		if err := s.notifRepo.CreateNotification(ctx, &n); err != nil {
			return fmt.Errorf("failed to persist notification: %w", err)
		}
		if s.pusher != nil {
			if payload, err := json.Marshal(toNotificationResponse(n)); err == nil {
				s.pusher.SendToUser(user.ID.String(), payload)
			}
		}
	}
	return nil
}

// sendEmail is fire-and-forget: a failing mail transport is logged and never
// fails the dispatch.
func (s *notificationService) sendEmail(entry *model.NotificationOutbox, tmpl notificationTemplate, data map[string]string, recipients []model.User) {
	if s.mail == nil || tmpl.Subject == "" {
		return
	}
	msg := mailer.Template{
		Subject: render(tmpl.Subject, data),
		HTML:    render(tmpl.HTML, data),
		Text:    render(tmpl.Text, data),
	}
	for _, user := range recipients {
		if err := s.mail.Send(user.Email, msg); err != nil {
			log.Printf("email for %s (%s) failed: %v", user.Email, entry.EventKey, err)
		}
	}
}

func (s *notificationService) ListMyNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]NotificationResponse, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, apperr.Validationf("invalid user id: %w", err)
	}
	notifications, total, err := s.notifRepo.ListByUser(ctx, uid, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	result := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		result = append(result, toNotificationResponse(n))
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return apperr.Validationf("invalid user id: %w", err)
	}
	nid, err := uuid.Parse(notificationID)
	if err != nil {
		return apperr.Validationf("invalid notification id: %w", err)
	}
	return s.notifRepo.MarkRead(ctx, uid, nid)
}

// --- Helpers ---

// render substitutes {{field}} markers from data.
func render(tmpl string, data map[string]string) string {
	out := tmpl
	for k, v := range data {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

func payloadData(raw []byte) map[string]string {
	data := map[string]string{}
	if len(raw) == 0 {
		return data
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return data
	}
	for k, v := range decoded {
		data[k] = fmt.Sprintf("%v", v)
	}
	return data
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID.String(),
		EventKey:   n.EventKey,
		Title:      n.Title,
		Message:    n.Message,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt.Format(time.RFC3339),
	}
}
