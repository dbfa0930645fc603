package service

import (
	"context"
	"encoding/json"
	"fmt"

	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Outbox enqueue helpers. Intent rows are appended inside the same
// transaction as the lifecycle change; the dispatcher drains them after
// commit, so enqueueing here can never be lost with a committed transition
// nor survive a rolled-back one.

func enqueueOwnerEvent(ctx context.Context, repo repository.NotificationRepository, p *model.Proposal, eventKey string, payload map[string]interface{}) error {
	return enqueue(ctx, repo, model.NotificationOutbox{
		EventKey:        eventKey,
		Audience:        model.AudienceUser,
		RecipientUserID: ptrUUID(p.OwnerUserID),
		EntityType:      "proposal",
		EntityID:        p.ID.String(),
		Channels:        model.ChannelInApp + "," + model.ChannelEmail,
		TemplateCode:    eventKey,
	}, payload)
}

func enqueueStaffEvent(ctx context.Context, repo repository.NotificationRepository, p *model.Proposal, eventKey string, payload map[string]interface{}) error {
	return enqueue(ctx, repo, model.NotificationOutbox{
		EventKey:      eventKey,
		Audience:      model.AudienceStaff,
		RecipientRole: model.RoleReviewer,
		EntityType:    "proposal",
		EntityID:      p.ID.String(),
		Channels:      model.ChannelInApp,
		TemplateCode:  eventKey,
	}, payload)
}

// enqueueProposalEvent notifies both the owner and the reviewer staff set.
func enqueueProposalEvent(ctx context.Context, repo repository.NotificationRepository, p *model.Proposal, eventKey string, payload map[string]interface{}) error {
	if err := enqueueOwnerEvent(ctx, repo, p, eventKey, payload); err != nil {
		return err
	}
	return enqueueStaffEvent(ctx, repo, p, eventKey, payload)
}

func enqueuePolicyEvent(ctx context.Context, repo repository.NotificationRepository, ownerID uuid.UUID, policyID string, eventKey, milestone string, payload map[string]interface{}) error {
	return enqueue(ctx, repo, model.NotificationOutbox{
		EventKey:        eventKey,
		Audience:        model.AudienceUser,
		RecipientUserID: ptrUUID(ownerID),
		EntityType:      "policy",
		EntityID:        policyID,
		Milestone:       milestone,
		Channels:        model.ChannelInApp + "," + model.ChannelEmail,
		TemplateCode:    eventKey,
	}, payload)
}

func enqueue(ctx context.Context, repo repository.NotificationRepository, entry model.NotificationOutbox, payload map[string]interface{}) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode notification payload: %w", err)
		}
		entry.Payload = datatypes.JSON(raw)
	}
	if err := repo.Enqueue(ctx, &entry); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }
