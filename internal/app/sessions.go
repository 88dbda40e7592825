package app

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(sessionID string, controller *QuizController)
	Get(sessionID string) (*QuizController, bool)
	Delete(sessionID string)
	Len() int
}
