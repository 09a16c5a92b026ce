package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	"advisor-chat/internal/domain/message"
	"advisor-chat/internal/events"
	"advisor-chat/internal/notify"
	"advisor-chat/internal/repository"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
)

// memConversationRepo is an in-memory ConversationRepository honoring the same
// contract as the Postgres implementation.
type memConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*conversation.Conversation
	participants  map[uuid.UUID]map[uuid.UUID]*conversation.Participant
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		participants:  make(map[uuid.UUID]map[uuid.UUID]*conversation.Participant),
	}
}

func (r *memConversationRepo) Create(_ context.Context, c *conversation.Conversation, participants []*conversation.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cc := *c
	r.conversations[c.ID] = &cc
	r.participants[c.ID] = make(map[uuid.UUID]*conversation.Participant)
	for _, p := range participants {
		pp := *p
		r.participants[c.ID][p.UserID] = &pp
	}
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, chat_errors.ErrNotFound
	}
	out := *c
	out.Participants = nil
	for _, p := range r.participants[id] {
		out.Participants = append(out.Participants, *p)
	}
	sort.Slice(out.Participants, func(i, j int) bool {
		return out.Participants[i].UserID.String() < out.Participants[j].UserID.String()
	})
	return out, nil
}

func (r *memConversationRepo) ListForUser(_ context.Context, userID uuid.UUID, f repository.ConversationFilter) ([]conversation.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []conversation.Conversation
	for id, c := range r.conversations {
		p, ok := r.participants[id][userID]
		if !ok || !p.IsActive {
			continue
		}
		if f.Purpose != "" && c.Purpose != f.Purpose {
			continue
		}
		if f.Type != "" && c.Type != f.Type {
			continue
		}
		if f.Archived != nil && c.Archived != *f.Archived {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *memConversationRepo) UpdateDetails(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if v, ok := updates["name"].(string); ok {
		c.Name = &v
	}
	if v, ok := updates["settings"].(map[string]interface{}); ok {
		c.Settings = v
	}
	if v, ok := updates["metadata"].(map[string]interface{}); ok {
		c.Metadata = v
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memConversationRepo) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	c.Archived = archived
	return nil
}

func (r *memConversationRepo) FindDirectBetween(_ context.Context, purpose conversation.Purpose, userA, userB uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.conversations {
		if c.Purpose != purpose || c.Type != conversation.TypeDirect {
			continue
		}
		ps := r.participants[id]
		if len(ps) == 2 {
			if _, okA := ps[userA]; okA {
				if _, okB := ps[userB]; okB {
					return *c, nil
				}
			}
		}
	}
	return conversation.Conversation{}, chat_errors.ErrNotFound
}

func (r *memConversationRepo) AddParticipant(_ context.Context, p *conversation.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participants[p.ConversationID] == nil {
		r.participants[p.ConversationID] = make(map[uuid.UUID]*conversation.Participant)
	}
	pp := *p
	r.participants[p.ConversationID][p.UserID] = &pp
	return nil
}

func (r *memConversationRepo) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[conversationID][userID]
	if !ok {
		return conversation.Participant{}, chat_errors.ErrNotFound
	}
	return *p, nil
}

func (r *memConversationRepo) GetActiveParticipants(_ context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []conversation.Participant
	for _, p := range r.participants[conversationID] {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memConversationRepo) DeactivateParticipant(_ context.Context, conversationID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[conversationID][userID]
	if !ok || !p.IsActive {
		return chat_errors.ErrNotFound
	}
	now := time.Now()
	p.IsActive = false
	p.LeftAt = &now
	return nil
}

func (r *memConversationRepo) ReactivateParticipant(_ context.Context, conversationID, userID uuid.UUID, addedBy *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[conversationID][userID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	p.IsActive = true
	p.LeftAt = nil
	p.AddedBy = addedBy
	return nil
}

func (r *memConversationRepo) SetMuted(_ context.Context, conversationID, userID uuid.UUID, muted bool) error {
	return r.setFlag(conversationID, userID, func(p *conversation.Participant) { p.IsMuted = muted })
}

func (r *memConversationRepo) SetPinned(_ context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	return r.setFlag(conversationID, userID, func(p *conversation.Participant) { p.IsPinned = pinned })
}

func (r *memConversationRepo) UpdateLastSeen(_ context.Context, conversationID, userID uuid.UUID) error {
	now := time.Now()
	return r.setFlag(conversationID, userID, func(p *conversation.Participant) { p.LastSeenAt = &now })
}

func (r *memConversationRepo) setFlag(conversationID, userID uuid.UUID, fn func(*conversation.Participant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[conversationID][userID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	fn(p)
	return nil
}

func (r *memConversationRepo) AccessibleConversationIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uuid.UUID
	for id, ps := range r.participants {
		if p, ok := ps[userID]; ok && p.IsActive {
			out = append(out, id)
		}
	}
	return out, nil
}

// memMessageRepo is an in-memory MessageRepository honoring the transactional
// contract of the Postgres implementation: unread counters move with the
// message insert, guards evaluate against stored state.
type memMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*message.Message
	convs    *memConversationRepo
}

func newMemMessageRepo(convs *memConversationRepo) *memMessageRepo {
	return &memMessageRepo{
		messages: make(map[uuid.UUID]*message.Message),
		convs:    convs,
	}
}

func (r *memMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mm := *m
	r.messages[m.ID] = &mm

	r.convs.mu.Lock()
	defer r.convs.mu.Unlock()

	if c, ok := r.convs.conversations[m.ConversationID]; ok {
		now := m.CreatedAt
		c.LastMessageID = &mm.ID
		c.LastMessageAt = &now
		c.UpdatedAt = now
	}
	for userID, p := range r.convs.participants[m.ConversationID] {
		if userID != m.SenderID && p.IsActive {
			p.UnreadCount++
		}
	}
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}
	return *m, nil
}

func (r *memMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) EditContent(_ context.Context, id, senderID uuid.UUID, content string, window time.Duration) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}
	if m.DeletedAt != nil {
		return message.Message{}, chat_errors.ErrMessageDeleted
	}
	if m.SenderID != senderID {
		return message.Message{}, chat_errors.ErrForbidden
	}
	if time.Since(m.CreatedAt) > window {
		return message.Message{}, chat_errors.ErrEditWindowExpired
	}

	now := time.Now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return *m, nil
}

func (r *memMessageRepo) SoftDelete(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}
	if m.DeletedAt != nil {
		return message.Message{}, chat_errors.ErrMessageDeleted
	}

	now := time.Now()
	m.Content = message.DeletedPlaceholder
	m.DeletedAt = &now
	if m.Metadata == nil {
		m.Metadata = map[string]interface{}{}
	}
	m.Metadata["deleted"] = true
	return *m, nil
}

func (r *memMessageRepo) MarkRead(_ context.Context, messageID, userID uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}

	r.convs.mu.Lock()
	p, ok := r.convs.participants[m.ConversationID][userID]
	if !ok || !p.IsActive {
		r.convs.mu.Unlock()
		return message.Message{}, chat_errors.ErrNotParticipant
	}
	now := time.Now()
	p.LastReadAt = &now
	p.UnreadCount = 0
	r.convs.mu.Unlock()

	if m.SenderID != userID && m.ReadAt == nil {
		m.ReadAt = &now
	}
	return *m, nil
}

func (r *memMessageRepo) BulkMarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) ([]message.Message, error) {
	var out []message.Message
	for _, id := range messageIDs {
		m, err := r.MarkRead(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memMessageRepo) MarkConversationRead(_ context.Context, conversationID, userID uuid.UUID) error {
	r.convs.mu.Lock()
	defer r.convs.mu.Unlock()

	p, ok := r.convs.participants[conversationID][userID]
	if !ok || !p.IsActive {
		return chat_errors.ErrNotParticipant
	}
	now := time.Now()
	p.LastReadAt = &now
	p.UnreadCount = 0
	return nil
}

func (r *memMessageRepo) Search(_ context.Context, f repository.SearchFilter) ([]message.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(f.ConversationIDs) == 0 {
		return nil, 0, nil
	}
	scope := make(map[uuid.UUID]bool, len(f.ConversationIDs))
	for _, id := range f.ConversationIDs {
		scope[id] = true
	}

	var out []message.Message
	for _, m := range r.messages {
		if !scope[m.ConversationID] || m.DeletedAt != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.Query)) {
			continue
		}
		if f.SenderID != nil && m.SenderID != *f.SenderID {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

// memDirectory backs the service tests with a static user set.
type memDirectory struct {
	users       map[uuid.UUID]dirdomain.User
	assignments map[[2]uuid.UUID]dirdomain.Assignment
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:       make(map[uuid.UUID]dirdomain.User),
		assignments: make(map[[2]uuid.UUID]dirdomain.Assignment),
	}
}

func (d *memDirectory) addUser(role dirdomain.Role, officeID *uuid.UUID) dirdomain.User {
	u := dirdomain.User{ID: uuid.New(), Role: role, OfficeID: officeID, FullName: "User " + uuid.NewString()[:8]}
	d.users[u.ID] = u
	return u
}

func (d *memDirectory) GetUser(_ context.Context, id uuid.UUID) (dirdomain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return dirdomain.User{}, chat_errors.ErrNotFound
	}
	return u, nil
}

func (d *memDirectory) assign(student, consultant dirdomain.User) {
	d.assignments[[2]uuid.UUID{student.ID, consultant.ID}] = dirdomain.Assignment{
		ID: uuid.New(), StudentID: student.ID, ConsultantID: consultant.ID, IsActive: true,
	}
}

func (d *memDirectory) GetAssignment(_ context.Context, studentID, consultantID uuid.UUID) (dirdomain.Assignment, error) {
	a, ok := d.assignments[[2]uuid.UUID{studentID, consultantID}]
	if !ok {
		return dirdomain.Assignment{}, chat_errors.ErrNotFound
	}
	return a, nil
}

func (d *memDirectory) GetOfficeLead(_ context.Context, _, _ uuid.UUID) (dirdomain.Lead, error) {
	return dirdomain.Lead{}, chat_errors.ErrNotFound
}

// recordingPusher captures live pushes.
type recordingPusher struct {
	mu     sync.Mutex
	pushes map[uuid.UUID][]events.Event
	online map[uuid.UUID]bool
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{
		pushes: make(map[uuid.UUID][]events.Event),
		online: make(map[uuid.UUID]bool),
	}
}

func (p *recordingPusher) PushToUser(userID uuid.UUID, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes[userID] = append(p.pushes[userID], event)
}

func (p *recordingPusher) IsOnline(userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *recordingPusher) pushCount(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes[userID])
}

// recordingNotifier captures offline envelopes; fails on demand.
type recordingNotifier struct {
	mu        sync.Mutex
	envelopes []notify.Envelope
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, env notify.Envelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.envelopes = append(n.envelopes, env)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.envelopes)
}
