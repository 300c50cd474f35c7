package calendar

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DefaultMeetingDuration is used when a request omits the duration.
const DefaultMeetingDuration = 60

// MeetingRequest asks for a video meeting link.
type MeetingRequest struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time,omitempty"`
	Duration  int    `json:"duration,omitempty"`
}

// Meeting is a video meeting that can be attached to an event.
type Meeting struct {
	ID        string `json:"id"`
	JoinURL   string `json:"join_url"`
	Password  string `json:"password"`
	Topic     string `json:"topic"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone"`
}

// MeetingProvider creates video meetings.
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error)
}

// LocalMeetingProvider generates placeholder meetings without calling any
// conferencing service.
type LocalMeetingProvider struct {
	BaseURL  string
	Location *time.Location
	Now      func() time.Time
}

// NewLocalMeetingProvider returns a provider issuing links under baseURL.
func NewLocalMeetingProvider(baseURL string) *LocalMeetingProvider {
	return &LocalMeetingProvider{BaseURL: baseURL, Location: time.Local, Now: time.Now}
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// CreateMeeting returns a meeting with an 11 digit id and a 6 character password.
func (p *LocalMeetingProvider) CreateMeeting(_ context.Context, req MeetingRequest) (*Meeting, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90_000_000_000))
	if err != nil {
		return nil, fmt.Errorf("failed to generate meeting id: %w", err)
	}
	id := fmt.Sprintf("%d", 10_000_000_000+n.Int64())

	password := make([]byte, 6)
	for i := range password {
		k, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return nil, fmt.Errorf("failed to generate meeting password: %w", err)
		}
		password[i] = passwordAlphabet[k.Int64()]
	}

	m := &Meeting{
		ID:        id,
		JoinURL:   fmt.Sprintf("%s/j/%s?pwd=%s", p.BaseURL, id, password),
		Password:  string(password),
		Topic:     req.Title,
		StartTime: req.StartTime,
		Duration:  req.Duration,
		Timezone:  p.Location.String(),
	}
	if m.Topic == "" {
		m.Topic = "Meeting"
	}
	if m.StartTime == "" {
		m.StartTime = p.Now().UTC().Format(time.RFC3339)
	}
	if m.Duration <= 0 {
		m.Duration = DefaultMeetingDuration
	}
	return m, nil
}
