package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"quiz-tournament-client/internal/domain"
)

type tournamentPayload struct {
	ID                  string           `json:"id"`
	LegacyID            string           `json:"_id,omitempty"`
	Name                string           `json:"name"`
	Category            string           `json:"category"`
	Difficulty          string           `json:"difficulty"`
	StartDate           string           `json:"startDate"`
	EndDate             string           `json:"endDate"`
	MinimumPassingScore *int             `json:"minimumPassingScore,omitempty"`
	TimeLimitSeconds    int              `json:"timeLimitSeconds,omitempty"`
	Likes               int              `json:"likes"`
	Attempts            []attemptPayload `json:"attempts,omitempty"`
}

type attemptPayload struct {
	ID             string   `json:"id"`
	User           string   `json:"user"`
	Answers        []string `json:"answers"`
	Score          int      `json:"score"`
	TotalQuestions int      `json:"totalQuestions"`
	Passed         bool     `json:"passed"`
	CompletedAt    string   `json:"completedAt"`
}

type questionPayload struct {
	ID            string   `json:"id"`
	LegacyID      string   `json:"_id,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type likeCountResponse struct {
	Count int `json:"count"`
}

func (p tournamentPayload) toDomain() (domain.Tournament, error) {
	id := p.ID
	if id == "" {
		id = p.LegacyID
	}
	start, err := parseTimestamp(p.StartDate)
	if err != nil {
		return domain.Tournament{}, fmt.Errorf("%w: tournament %s start date: %v", domain.ErrConfiguration, id, err)
	}
	end, err := parseTimestamp(p.EndDate)
	if err != nil {
		return domain.Tournament{}, fmt.Errorf("%w: tournament %s end date: %v", domain.ErrConfiguration, id, err)
	}
	t := domain.Tournament{
		ID:                  id,
		Name:                p.Name,
		Category:            p.Category,
		Difficulty:          domain.Difficulty(p.Difficulty),
		StartDate:           start,
		EndDate:             end,
		MinimumPassingScore: p.MinimumPassingScore,
		TimeLimit:           time.Duration(p.TimeLimitSeconds) * time.Second,
		Likes:               p.Likes,
	}
	for _, a := range p.Attempts {
		completed, err := parseTimestamp(a.CompletedAt)
		if err != nil {
			completed = time.Time{}
		}
		t.Attempts = append(t.Attempts, domain.Attempt{
			ID:             a.ID,
			TournamentID:   id,
			UserID:         a.User,
			Answers:        a.Answers,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
			Passed:         a.Passed,
			CompletedAt:    completed,
		})
	}
	return t, nil
}

func (p questionPayload) toDomain() domain.Question {
	id := p.ID
	if id == "" {
		id = p.LegacyID
	}
	return domain.Question{ID: id, Question: p.Question, Options: p.Options, CorrectAnswer: p.CorrectAnswer}
}

// parseTimestamp accepts RFC 3339 timestamps and plain dates.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func tournamentPath(id string, rest ...string) string {
	p := "/tournaments/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *Client) LoadTournament(ctx context.Context, id string) (domain.Tournament, error) {
	var payload tournamentPayload
	if err := c.do(ctx, http.MethodGet, tournamentPath(id), nil, &payload); err != nil {
		return domain.Tournament{}, err
	}
	return payload.toDomain()
}

func (c *Client) LoadQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error) {
	var payload []questionPayload
	if err := c.do(ctx, http.MethodGet, tournamentPath(tournamentID, "questions"), nil, &payload); err != nil {
		return nil, err
	}
	questions := make([]domain.Question, len(payload))
	for i, q := range payload {
		questions[i] = q.toDomain()
	}
	return questions, nil
}

// SubmitAttempt posts the ordered answers; unanswered questions are sent as "".
func (c *Client) SubmitAttempt(ctx context.Context, tournamentID string, answers []string) (domain.SubmitResult, error) {
	body := struct {
		Answers []string `json:"answers"`
	}{Answers: answers}
	var result domain.SubmitResult
	if err := c.do(ctx, http.MethodPost, tournamentPath(tournamentID, "attempts"), body, &result); err != nil {
		return domain.SubmitResult{}, err
	}
	return result, nil
}

func (c *Client) ListTournaments(ctx context.Context) ([]domain.Tournament, error) {
	var payload []tournamentPayload
	if err := c.do(ctx, http.MethodGet, "/tournaments", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Tournament, 0, len(payload))
	for _, p := range payload {
		t, err := p.toDomain()
		if err != nil {
			c.logger.Warn("skipping malformed tournament", "tournament_id", p.ID, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type draftPayload struct {
	Name                string `json:"name"`
	Category            string `json:"category,omitempty"`
	Difficulty          string `json:"difficulty"`
	StartDate           string `json:"startDate"`
	EndDate             string `json:"endDate"`
	MinimumPassingScore *int   `json:"minimumPassingScore,omitempty"`
}

type updatePayload struct {
	Name      *string `json:"name,omitempty"`
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (c *Client) CreateTournament(ctx context.Context, draft domain.TournamentDraft) (domain.Tournament, error) {
	body := draftPayload{
		Name:                draft.Name,
		Category:            draft.Category,
		Difficulty:          string(draft.Difficulty),
		StartDate:           formatTimestamp(draft.StartDate),
		EndDate:             formatTimestamp(draft.EndDate),
		MinimumPassingScore: draft.MinimumPassingScore,
	}
	var payload tournamentPayload
	if err := c.do(ctx, http.MethodPost, "/tournaments", body, &payload); err != nil {
		return domain.Tournament{}, err
	}
	return payload.toDomain()
}

func (c *Client) UpdateTournament(ctx context.Context, id string, update domain.TournamentUpdate) (domain.Tournament, error) {
	body := updatePayload{Name: update.Name}
	if update.StartDate != nil {
		s := formatTimestamp(*update.StartDate)
		body.StartDate = &s
	}
	if update.EndDate != nil {
		s := formatTimestamp(*update.EndDate)
		body.EndDate = &s
	}
	var payload tournamentPayload
	if err := c.do(ctx, http.MethodPut, tournamentPath(id), body, &payload); err != nil {
		return domain.Tournament{}, err
	}
	return payload.toDomain()
}

func (c *Client) LikeTournament(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, tournamentPath(id, "like"), nil, nil)
}

func (c *Client) GetLikeCount(ctx context.Context, id string) (int, error) {
	var resp likeCountResponse
	if err := c.do(ctx, http.MethodGet, tournamentPath(id, "likes"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Login authenticates and stores the returned token in the session.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body)
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.authenticate(ctx, "/auth/register", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (domain.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return domain.User{}, err
	}
	if resp.Token == "" {
		return domain.User{}, fmt.Errorf("%w: %s returned no token", domain.ErrUnauthorized, path)
	}
	if err := c.session.SetToken(resp.Token); err != nil {
		return domain.User{}, err
	}
	if resp.User.ID == "" {
		resp.User.ID = c.session.UserID()
	}
	if resp.User.Role == "" {
		resp.User.Role = c.session.Role()
	}
	return resp.User, nil
}

// Logout forgets the session token.
func (c *Client) Logout() {
	c.session.Clear()
}
