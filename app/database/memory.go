package database

import (
	"context"
	"sync"
	"time"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

type ipHit struct {
	userID string
	at     time.Time
}

// Memory is an in-process Store, used in tests and for running without a
// database.
type Memory struct {
	mu          sync.Mutex
	sessions    map[string]models.VerifySession
	logChannels map[string]string
	records     []models.VerifyRecord
	ipHits      map[string][]ipHit
}

func NewMemory() *Memory {
	return &Memory{
		sessions:    map[string]models.VerifySession{},
		logChannels: map[string]string{},
		ipHits:      map[string][]ipHit{},
	}
}

func (m *Memory) PutSession(ctx context.Context, s models.VerifySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *Memory) ConsumeSession(ctx context.Context, token string) (models.VerifySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return models.VerifySession{}, ErrSessionNotFound
	}
	delete(m.sessions, token)
	return s, nil
}

func (m *Memory) SetLogChannel(ctx context.Context, guildID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existing := m.logChannels[guildID]
	m.logChannels[guildID] = channelID
	return existing, nil
}

func (m *Memory) UnsetLogChannel(ctx context.Context, guildID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existing := m.logChannels[guildID]
	delete(m.logChannels, guildID)
	return existing, nil
}

func (m *Memory) LogChannel(ctx context.Context, guildID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logChannels[guildID], nil
}

func (m *Memory) AddRecord(ctx context.Context, rec models.VerifyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []models.VerifyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.VerifyRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) RecordIPUsage(ctx context.Context, ip, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipHits[ip] = append(m.ipHits[ip], ipHit{userID: userID, at: at})
	return nil
}

func (m *Memory) RecentIPUsers(ctx context.Context, ip, userID string, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	var users []string
	for _, hit := range m.ipHits[ip] {
		if hit.userID == userID || hit.at.Before(since) || seen[hit.userID] {
			continue
		}
		seen[hit.userID] = true
		users = append(users, hit.userID)
	}
	return users, nil
}
