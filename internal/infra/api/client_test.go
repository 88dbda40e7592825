package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-tournament-client/internal/domain"
	"quiz-tournament-client/internal/infra/api"
)

func newClient(t *testing.T, handler http.Handler) (*api.Client, *api.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	session := api.NewSession()
	client := api.NewClient(api.Config{
		BaseURL:        srv.URL + "/",
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	}, session, nil)
	return client, session
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoadTournamentDecodesPayload(t *testing.T) {
	var auth string
	client, session := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/tournaments/t%201", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, map[string]any{
			"_id":                 "t 1",
			"name":                "Capital Cities Cup",
			"difficulty":          "easy",
			"startDate":           "2026-05-01T09:00:00Z",
			"endDate":             "2026-05-02",
			"minimumPassingScore": 60,
			"timeLimitSeconds":    90,
			"likes":               4,
		})
	}))
	token := signedToken(t, jwt.MapClaims{"sub": "u1"})
	require.NoError(t, session.SetToken(token))

	tournament, err := client.LoadTournament(context.Background(), "t 1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+token, auth)
	assert.Equal(t, "t 1", tournament.ID)
	assert.Equal(t, domain.DifficultyEasy, tournament.Difficulty)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), tournament.StartDate)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), tournament.EndDate)
	require.NotNil(t, tournament.MinimumPassingScore)
	assert.Equal(t, 60, *tournament.MinimumPassingScore)
	assert.Equal(t, 90*time.Second, tournament.TimeLimit)
	assert.Equal(t, 4, tournament.Likes)
}

func TestMalformedTimestampIsConfigurationError(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "t1", "startDate": "yesterday", "endDate": "2026-05-02"})
	}))

	_, err := client.LoadTournament(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIdempotentRequestsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "q1", "question": "Capital of France?", "options": []string{"Paris", "Berlin"}},
		})
	}))

	questions, err := client.LoadQuestions(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, questions, 1)
	assert.Equal(t, []string{"Paris", "Berlin"}, questions[0].Options)
}

func TestSubmitIsNotRetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.SubmitAttempt(context.Background(), "t1", []string{"Paris", ""})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, api.IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitIsRetriedWhenUnavailable(t *testing.T) {
	var calls atomic.Int32
	var got []string
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Answers []string `json:"answers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = body.Answers
		writeJSON(w, http.StatusCreated, domain.SubmitResult{Score: 1, Passed: false, TotalQuestions: 2})
	}))

	result, err := client.SubmitAttempt(context.Background(), "t1", []string{"Paris", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", ""}, got)
	assert.Equal(t, domain.SubmitResult{Score: 1, TotalQuestions: 2}, result)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnprocessableEntity, domain.ErrRequestRejected},
		{http.StatusConflict, domain.ErrRequestRejected},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]string{"message": "nope"})
			}))
			err := client.LikeTournament(context.Background(), "t1")
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestLoginStoresSession(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	token := signedToken(t, jwt.MapClaims{"userId": "admin-1", "role": "admin", "exp": expires.Unix()})
	client, session := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": map[string]string{"name": "Ada", "email": "ada@example.com"}})
	}))

	user, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, "admin-1", user.ID)
	assert.Equal(t, "admin", user.Role)
	assert.True(t, session.IsAdmin())
	assert.True(t, session.Authenticated(time.Now()))
	assert.False(t, session.Authenticated(expires.Add(time.Second)))

	client.Logout()
	assert.Empty(t, session.Token())
	assert.False(t, session.Authenticated(time.Now()))
}

func TestLoginRejectsMalformedToken(t *testing.T) {
	client, session := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "not-a-jwt"})
	}))

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, session.Token())
}

func TestLikeCount(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tournaments/t1/likes", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]int{"count": 7})
	}))

	count, err := client.GetLikeCount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
