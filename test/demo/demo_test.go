//go:build integration_test

// Package demo drives a server started with local.yaml. It expects the HTTP API on
// localhost:8080, Postgres on localhost:5432 and Redis on localhost:6379,
// with auth.secret and redis.pubsub.prefix set to the values below.
package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/orgquiz/internal/api"
	"github.com/victornm/orgquiz/internal/auth"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/server"
	"github.com/victornm/orgquiz/internal/store/postgres"
)

const (
	baseURL      = "http://localhost:8080/v1"
	secret       = "local-secret"
	pubsubPrefix = "local:pubsub"
)

type client struct {
	t     *testing.T
	token string
}

func (c client) do(method, path string, body, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, baseURL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if out != nil && len(b) > 0 {
		require.NoError(c.t, json.Unmarshal(b, out), string(b))
	}
	return resp.StatusCode
}

func TestMembershipAndQuiz(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := makeUsers(t, ctx, "owner", "alice", "bob")
	owner, alice, bob := users["owner"], users["alice"], users["bob"]

	var co api.Company
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/companies", map[string]any{
		"name":  "Demo",
		"email": fmt.Sprintf("demo-%s@orgquiz.test", uuid.NewString()),
	}, &co))
	base := "/companies/" + co.ID.String()

	// Alice listens to her notifications before being invited.
	wg := new(sync.WaitGroup)
	subscribeAsUser(t, makeRedis(t), wg, alice.user.ID)

	var inv api.Invitation
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, base+"/invitations", map[string]any{"email": alice.user.Email}, &inv))
	require.Equal(t, http.StatusOK, alice.do(http.MethodPost, "/invitations/"+inv.ID.String()+"/accept", nil, &inv))
	assert.Equal(t, domain.InvitationStatusAccepted, inv.Status)

	// Bob asks to join while the owner both accepts and cancels: exactly one wins.
	require.Equal(t, http.StatusCreated, bob.do(http.MethodPost, base+"/requests", nil, &inv))
	var (
		eg    errgroup.Group
		codes = make([]int, 2)
	)
	eg.Go(func() error {
		codes[0] = owner.do(http.MethodPost, "/invitations/"+inv.ID.String()+"/accept", nil, nil)
		return nil
	})
	eg.Go(func() error {
		codes[1] = bob.do(http.MethodPost, "/invitations/"+inv.ID.String()+"/cancel", nil, nil)
		return nil
	})
	require.NoError(t, eg.Wait())
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
	t.Logf("request race: accept=%d cancel=%d", codes[0], codes[1])

	var q api.Quiz
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, base+"/quizzes", map[string]any{
		"title": "Demo quiz",
		"questions": []map[string]any{
			{"question_text": "2+2", "answers": []map[string]any{{"answer_text": "4", "is_correct": true}, {"answer_text": "5"}}},
			{"question_text": "primes", "answers": []map[string]any{{"answer_text": "2", "is_correct": true}, {"answer_text": "3", "is_correct": true}, {"answer_text": "4"}}},
		},
	}, &q))
	quizPath := base + "/quizzes/" + q.ID.String()

	var at api.Attempt
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, quizPath+"/attempts", map[string]any{
		"questions": []map[string]any{
			{"question_text": "2+2", "answers": []map[string]any{{"answer_text": "4", "is_correct": true}}},
			{"question_text": "primes", "answers": []map[string]any{{"answer_text": "2", "is_correct": true}}},
		},
	}, &at))
	assert.Equal(t, "50.00", at.Score)

	var latest api.AttemptDetail
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, quizPath+"/attempts/latest", nil, &latest))
	t.Logf("alice latest attempt: score=%s correct=%d/%d", latest.Score, latest.CorrectAnswersCount, latest.TotalQuestions)

	require.Equal(t, http.StatusNoContent, owner.do(http.MethodDelete, base+"/members/"+alice.user.ID.String(), nil, nil))

	time.Sleep(2 * time.Second)
	wg.Wait()
}

type demoUser struct {
	client
	user *domain.User
}

// makeUsers creates fresh users directly in the database and signs tokens for them.
func makeUsers(t *testing.T, ctx context.Context, names ...string) map[string]demoUser {
	var pc server.PostgresConfig
	pc.Addr, pc.User, pc.Pass, pc.Name = "localhost:5432", "orgquiz", "orgquiz", "orgquiz"

	db, err := server.ConnectPostgres(ctx, pc)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, postgres.Migrate(ctx, db))

	s := postgres.New(postgres.Config{DB: db})
	a := auth.NewAuthenticator(auth.Config{Users: s, Secret: secret, Issuer: "orgquiz"})

	out := make(map[string]demoUser, len(names))
	for _, n := range names {
		u := &domain.User{Email: fmt.Sprintf("%s-%s@orgquiz.test", n, uuid.NewString()), FirstName: n}
		require.NoError(t, s.CreateUser(ctx, u))

		token, err := a.Issue(u)
		require.NoError(t, err)
		out[n] = demoUser{client: client{t: t, token: token}, user: u}
	}
	return out
}

func subscribeAsUser(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, id uuid.UUID) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("%s:user:%s", pubsubPrefix, id))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			t.Logf("%s got %s: %s", id, n.Event, n.Data)
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() {
		cancel()
		sub.Close()
	})

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}
