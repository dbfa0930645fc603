package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"insurance-backend/internal/mailer"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// In-memory fakes backing the service tests. They reproduce the conditional
// UPDATE semantics of the real repositories (RowsAffected guards), which is
// what the idempotency tests exercise.

var errNotFound = errors.New("record not found")

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- audit ---

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, action, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

func (f *fakeAuditRepo) countAction(action string) int {
	n := 0
	for _, e := range f.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// --- notifications ---

type fakeNotifRepo struct {
	outbox        []model.NotificationOutbox
	notifications []model.Notification
	sendLogs      map[repository.SendLogKey]bool
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{sendLogs: map[repository.SendLogKey]bool{}}
}

func (f *fakeNotifRepo) CreateNotification(_ context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeNotifRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error) {
	var out []model.Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotifRepo) MarkRead(_ context.Context, userID, notificationID uuid.UUID) error {
	for i := range f.notifications {
		if f.notifications[i].ID == notificationID && f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
		}
	}
	return nil
}

func (f *fakeNotifRepo) HasSendLog(_ context.Context, key repository.SendLogKey) (bool, error) {
	return f.sendLogs[key], nil
}

func (f *fakeNotifRepo) RecordSend(_ context.Context, key repository.SendLogKey) (bool, error) {
	if f.sendLogs[key] {
		return true, nil
	}
	f.sendLogs[key] = true
	return false, nil
}

func (f *fakeNotifRepo) Enqueue(_ context.Context, entry *model.NotificationOutbox) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = model.OutboxPending
	}
	f.outbox = append(f.outbox, *entry)
	return nil
}

func (f *fakeNotifRepo) ListPendingOutbox(_ context.Context, limit int) ([]model.NotificationOutbox, error) {
	var out []model.NotificationOutbox
	for _, e := range f.outbox {
		retryable := e.Status == model.OutboxFailed && e.Attempts < repository.MaxOutboxAttempts
		if e.Status != model.OutboxPending && !retryable {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNotifRepo) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	for i := range f.outbox {
		if f.outbox[i].ID == id {
			now := time.Now()
			f.outbox[i].Status = model.OutboxSent
			f.outbox[i].SentAt = &now
		}
	}
	return nil
}

func (f *fakeNotifRepo) MarkOutboxFailed(_ context.Context, id uuid.UUID, reason string) error {
	for i := range f.outbox {
		if f.outbox[i].ID == id {
			f.outbox[i].Status = model.OutboxFailed
			f.outbox[i].Attempts++
			f.outbox[i].LastError = reason
		}
	}
	return nil
}

// hasMilestoneLog mirrors the NOT EXISTS subquery the scan list queries use:
// any send-log row matching entity+milestone+channel suppresses the row.
func (f *fakeNotifRepo) hasMilestoneLog(entityType, entityID, milestone, channel string) bool {
	for k := range f.sendLogs {
		if k.EntityType == entityType && k.EntityID == entityID &&
			k.Milestone == milestone && k.Channel == channel {
			return true
		}
	}
	return false
}

func (f *fakeNotifRepo) countEvent(eventKey string) int {
	n := 0
	for _, e := range f.outbox {
		if e.EventKey == eventKey {
			n++
		}
	}
	return n
}

// --- proposals ---

type fakeProposalRepo struct {
	proposals map[uuid.UUID]*model.Proposal
	notif     *fakeNotifRepo // send-log visibility for the scan list filters
}

func newFakeProposalRepo(notif *fakeNotifRepo) *fakeProposalRepo {
	return &fakeProposalRepo{proposals: map[uuid.UUID]*model.Proposal{}, notif: notif}
}

func (f *fakeProposalRepo) put(p model.Proposal) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.proposals[p.ID] = &p
	return p.ID
}

func (f *fakeProposalRepo) get(id uuid.UUID) *model.Proposal {
	return f.proposals[id]
}

func (f *fakeProposalRepo) Create(_ context.Context, p *model.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	f.proposals[p.ID] = &cp
	return nil
}

func (f *fakeProposalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProposalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeProposalRepo) Save(_ context.Context, p *model.Proposal) error {
	cp := *p
	f.proposals[p.ID] = &cp
	return nil
}

func (f *fakeProposalRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, filter repository.ProposalFilter) ([]model.Proposal, int64, error) {
	var out []model.Proposal
	for _, p := range f.proposals {
		if p.OwnerUserID == ownerID {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeProposalRepo) ListPendingReview(_ context.Context, filter repository.ProposalFilter) ([]model.Proposal, int64, error) {
	var out []model.Proposal
	for _, p := range f.proposals {
		if p.PaymentStatus != model.PaymentPaid {
			continue
		}
		if p.ReviewStatus != model.ReviewPendingReview && p.ReviewStatus != model.ReviewReuploadRequired {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProposalRepo) ApplyPaymentSuccess(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.proposals[id]
	if !ok {
		return false, nil
	}
	if p.PaymentStatus != model.PaymentUnpaid || p.SubmissionStatus != model.SubmissionSubmitted {
		return false, nil
	}
	p.PaymentStatus = model.PaymentPaid
	p.ReviewStatus = model.ReviewPendingReview
	return true, nil
}

func (f *fakeProposalRepo) ListUnpaidOlderThan(_ context.Context, cutoff time.Time, milestone string, limit int) ([]model.Proposal, error) {
	now := time.Now()
	var out []model.Proposal
	for _, p := range f.proposals {
		if p.PaymentStatus != model.PaymentUnpaid || p.SubmissionStatus != model.SubmissionSubmitted {
			continue
		}
		if p.SubmittedAt.After(cutoff) || !p.ExpiresAt.After(now) {
			continue
		}
		if f.notif != nil && f.notif.hasMilestoneLog("proposal", p.ID.String(), milestone, model.ChannelInApp) {
			continue
		}
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProposalRepo) ListUnpaidExpired(_ context.Context, now time.Time, limit int) ([]model.Proposal, error) {
	var out []model.Proposal
	for _, p := range f.proposals {
		if p.PaymentStatus != model.PaymentUnpaid || p.SubmissionStatus != model.SubmissionSubmitted {
			continue
		}
		if p.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProposalRepo) MarkLapsed(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.proposals[id]
	if !ok {
		return false, nil
	}
	if p.PaymentStatus != model.PaymentUnpaid || p.SubmissionStatus != model.SubmissionSubmitted {
		return false, nil
	}
	p.SubmissionStatus = model.SubmissionLapsed
	return true, nil
}

func (f *fakeProposalRepo) MarkPolicyExpired(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.proposals[id]
	if !ok {
		return false, nil
	}
	if p.PolicyStatus != model.PolicyActive {
		return false, nil
	}
	p.PolicyStatus = model.PolicyExpired
	return true, nil
}

// --- payments ---

type fakePaymentRepo struct {
	payments map[uuid.UUID]*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uuid.UUID]*model.Payment{}}
}

func (f *fakePaymentRepo) get(id uuid.UUID) *model.Payment {
	return f.payments[id]
}

func (f *fakePaymentRepo) Create(_ context.Context, p *model.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) FindByGatewayOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	for _, p := range f.payments {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakePaymentRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range f.payments {
		if p.ApplicationID == applicationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) MarkSuccess(_ context.Context, id uuid.UUID, gatewayTxnID string, rawPayload datatypes.JSON) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusSuccess
	p.GatewayTxnID = gatewayTxnID
	p.RawCallbackPayload = rawPayload
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(_ context.Context, id uuid.UUID, rawPayload datatypes.JSON) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.RawCallbackPayload = rawPayload
	return true, nil
}

// --- policies ---

type fakePolicyRepo struct {
	policies map[uint]*model.Policy
	nextID   uint
	notif    *fakeNotifRepo
}

func newFakePolicyRepo(notif *fakeNotifRepo) *fakePolicyRepo {
	return &fakePolicyRepo{policies: map[uint]*model.Policy{}, notif: notif}
}

func (f *fakePolicyRepo) get(id uint) *model.Policy {
	return f.policies[id]
}

func (f *fakePolicyRepo) Create(_ context.Context, p *model.Policy) error {
	if p.ID == 0 {
		f.nextID++
		p.ID = f.nextID
	}
	cp := *p
	f.policies[p.ID] = &cp
	return nil
}

func (f *fakePolicyRepo) SetPolicyNo(_ context.Context, id uint, policyNo string) error {
	p, ok := f.policies[id]
	if !ok {
		return errNotFound
	}
	p.PolicyNo = policyNo
	return nil
}

func (f *fakePolicyRepo) FindByID(_ context.Context, id uint) (*model.Policy, error) {
	p, ok := f.policies[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePolicyRepo) FindByIDForUpdate(ctx context.Context, id uint) (*model.Policy, error) {
	return f.FindByID(ctx, id)
}

func (f *fakePolicyRepo) FindActiveByProposal(_ context.Context, kind string, proposalID uuid.UUID) (*model.Policy, error) {
	for _, p := range f.policies {
		if p.ProposalKind == kind && p.ProposalID == proposalID && p.Status == model.PolicyActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakePolicyRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, page, limit int) ([]model.Policy, int64, error) {
	var out []model.Policy
	for _, p := range f.policies {
		if p.OwnerUserID == ownerID {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakePolicyRepo) ListExpiringOn(_ context.Context, day time.Time, milestone string, limit int) ([]model.Policy, error) {
	var out []model.Policy
	for _, p := range f.policies {
		if p.Status != model.PolicyActive {
			continue
		}
		y1, m1, d1 := p.EndDate.Date()
		y2, m2, d2 := day.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			continue
		}
		if f.notif != nil && f.notif.hasMilestoneLog("policy", policyEntityID(p.ID), milestone, model.ChannelInApp) {
			continue
		}
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Policy, error) {
	var out []model.Policy
	for _, p := range f.policies {
		if p.Status != model.PolicyActive || !p.EndDate.Before(now) {
			continue
		}
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) MarkExpired(_ context.Context, id uint) (bool, error) {
	p, ok := f.policies[id]
	if !ok || p.Status != model.PolicyActive {
		return false, nil
	}
	p.Status = model.PolicyExpired
	return true, nil
}

// --- users ---

type fakeUserRepo struct {
	users  map[string]*model.User
	tokens map[string]*model.RefreshToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}, tokens: map[string]*model.RefreshToken{}}
}

func (f *fakeUserRepo) put(u model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID.String()] = &u
	return &u
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	f.users[user.ID.String()] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeUserRepo) ListByRole(_ context.Context, role string) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) List(_ context.Context, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	cp := *user
	f.users[user.ID.String()] = &cp
	return nil
}

func (f *fakeUserRepo) CreateRefreshToken(_ context.Context, token *model.RefreshToken) error {
	cp := *token
	f.tokens[token.Token] = &cp
	return nil
}

func (f *fakeUserRepo) GetRefreshToken(_ context.Context, token string) (*model.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, errNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeUserRepo) DeleteRefreshToken(_ context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

// --- storage / mail ---

type fakeStorage struct {
	removed []string
}

func (f *fakeStorage) Save(key string, _ io.Reader) (string, error) { return key, nil }
func (f *fakeStorage) Open(key string) (io.ReadCloser, error)       { return nil, errNotFound }
func (f *fakeStorage) Remove(key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeMailer struct {
	sent []string // recipient addresses
}

func (f *fakeMailer) Send(to string, _ mailer.Template) error {
	f.sent = append(f.sent, to)
	return nil
}

func policyEntityID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
