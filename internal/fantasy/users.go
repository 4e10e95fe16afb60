package fantasy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// CreateUserRequest is the JSON body for POST /users.
type CreateUserRequest struct {
	ID       string `json:"id,omitempty"` // optional; generated when empty
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// LessonResult is returned when a lesson is marked complete.
type LessonResult struct {
	User *model.User `json:"user"`
	// Newly is false when the lesson was already complete; no reward is paid twice.
	Newly         bool `json:"newly"`
	RewardedCount int  `json:"rewardedPortfolios"`
}

// CreateUser registers a user.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}

	u := &model.User{
		ID:               id,
		Username:         username,
		Name:             name,
		Avatar:           req.Avatar,
		CompletedLessons: []string{},
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", id, err)
	}
	slog.Info("user created", "id", id, "username", username)
	return u, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// CompleteLesson records a finished lesson. The first completion unlocks
// assets requiring it and credits the lesson reward to every portfolio
// the user holds.
func (s *Service) CompleteLesson(ctx context.Context, userID, lessonID string) (*LessonResult, error) {
	if strings.TrimSpace(lessonID) == "" {
		return nil, fmt.Errorf("%w: lessonId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CompleteLesson(lessonID) {
		return &LessonResult{User: u}, nil
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", userID, err)
	}
	metrics.LessonsCompleted.Inc()

	rewarded := 0
	if s.lessonReward.IsPositive() {
		portfolios, err := s.store.ListPortfoliosByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for i := range portfolios {
			p := &portfolios[i]
			if err := portfolio.AwardLessonReward(p, s.lessonReward); err != nil {
				return nil, err
			}
			p.UpdatedAt = s.now().UTC()
			if err := s.store.SavePortfolio(ctx, p); err != nil {
				return nil, fmt.Errorf("save portfolio %s: %w", p.ID, err)
			}
			rewarded++
		}
	}

	slog.Info("lesson completed",
		"user", userID,
		"lesson", lessonID,
		"reward", s.lessonReward.String(),
		"portfolios", rewarded,
	)
	return &LessonResult{User: u, Newly: true, RewardedCount: rewarded}, nil
}

// IssueToken signs a bearer token for an existing user. Only available
// when auth is configured.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	if s.tokens == nil {
		return "", ErrAuthDisabled
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return "", err
	}
	return s.tokens.Generate(userID, s.now())
}
