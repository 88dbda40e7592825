package domain

import "time"

// TournamentStatus is the temporal status of a tournament derived from the clock.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
)

// Difficulty of a tournament.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Tournament is a time-boxed quiz competition.
type Tournament struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    time.Time  `json:"endDate"`
	// MinimumPassingScore is a percentage; nil when the record does not carry it.
	MinimumPassingScore *int          `json:"minimumPassingScore,omitempty"`
	TimeLimit           time.Duration `json:"timeLimit,omitempty"`
	Likes               int           `json:"likes"`
	Attempts            []Attempt     `json:"attempts,omitempty"`
}

// Question models a multiple choice question. CorrectAnswer is only populated
// server-side and is never used for scoring on the client.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Attempt is one player's completed submission for a tournament.
type Attempt struct {
	ID             string    `json:"id"`
	TournamentID   string    `json:"tournamentId"`
	UserID         string    `json:"userId"`
	Answers        []string  `json:"answers"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Passed         bool      `json:"passed"`
	CompletedAt    time.Time `json:"completedAt"`
}

// SubmitResult is what the remote API returns for a submitted attempt.
type SubmitResult struct {
	Score          int  `json:"score"`
	Passed         bool `json:"passed"`
	TotalQuestions int  `json:"totalQuestions"`
}

// Evaluation is the client-side pass/fail verdict and its display values.
type Evaluation struct {
	Passed        bool    `json:"passed"`
	Percentage    float64 `json:"percentage"`
	RequiredScore int     `json:"requiredScore"`
}

// AttemptOutcome pairs the server result with the client evaluation of it.
type AttemptOutcome struct {
	Result     SubmitResult `json:"result"`
	Evaluation Evaluation   `json:"evaluation"`
}

// TournamentDraft carries the fields an administrator fills in to create a tournament.
type TournamentDraft struct {
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	Difficulty          Difficulty `json:"difficulty"`
	StartDate           time.Time  `json:"startDate"`
	EndDate             time.Time  `json:"endDate"`
	MinimumPassingScore *int       `json:"minimumPassingScore,omitempty"`
}

// TournamentUpdate is the editable subset of a tournament. Nil fields are left unchanged.
type TournamentUpdate struct {
	Name      *string    `json:"name,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// User is the authenticated account as reported by the API.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Phase is the state of a quiz session.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseDiscarded  Phase = "discarded"
)

// SessionSnapshot is a read-only view of a quiz session for rendering.
type SessionSnapshot struct {
	Version       uint64          `json:"version"`
	TournamentID  string          `json:"tournamentId"`
	Phase         Phase           `json:"phase"`
	CurrentIndex  int             `json:"currentIndex"`
	Total         int             `json:"total"`
	Question      *Question       `json:"question,omitempty"`
	Pending       string          `json:"pending"`
	Answers       map[int]string  `json:"answers"`
	AnsweredCount int             `json:"answeredCount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	Submitted     []string        `json:"submitted,omitempty"`
	Outcome       *AttemptOutcome `json:"outcome,omitempty"`
	Error         string          `json:"error,omitempty"`
}
