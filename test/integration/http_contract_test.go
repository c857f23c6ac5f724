package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"collab-notes-be/internal/bootstrap"
	"collab-notes-be/internal/config"
	"collab-notes-be/internal/server"
	"collab-notes-be/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	os.Setenv("DB_DRIVER", "sqlite")
	os.Setenv("DB_CONNECTION_STRING", ":memory:")
	os.Setenv("JWT_SECRET", "integration_secret")
	os.Setenv("NATS_URL", "")
	os.Setenv("REDIS_URL", "")
	os.Setenv("LOCK_BACKEND", "memory")
	os.Setenv("LOG_FILE_PATH", filepath.Join(t.TempDir(), "test.log"))

	cfg := config.Load()

	db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.Connection)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	container := bootstrap.NewContainer(db, cfg)
	return server.New(cfg, container).GetApp()
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp.StatusCode, env
}

func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	status, _ := doJSON(t, app, "POST", "/register", "", fiber.Map{
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, 201, status)

	status, env := doJSON(t, app, "POST", "/login", "", fiber.Map{
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, 200, status)

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)
	return login.AccessToken
}

func createNote(t *testing.T, app *fiber.App, token, title, visibility string) string {
	t.Helper()

	status, env := doJSON(t, app, "POST", "/notes", token, fiber.Map{
		"title":      title,
		"content":    "content",
		"visibility": visibility,
	})
	require.Equal(t, 201, status)

	var created struct {
		Id string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created.Id
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)

	// Protected routes demand a token.
	status, _ := doJSON(t, app, "GET", "/notes", "", nil)
	assert.Equal(t, 401, status)
	status, _ = doJSON(t, app, "GET", "/protected", "", nil)
	assert.Equal(t, 401, status)

	token := registerAndLogin(t, app, "alice")

	status, env := doJSON(t, app, "GET", "/protected", token, nil)
	require.Equal(t, 200, status)
	var profile struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "alice", profile.Username)

	// Logout invalidates the token for good.
	status, _ = doJSON(t, app, "POST", "/logout", token, nil)
	require.Equal(t, 200, status)
	status, _ = doJSON(t, app, "GET", "/protected", token, nil)
	assert.Equal(t, 401, status)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	// Username too short.
	status, _ := doJSON(t, app, "POST", "/register", "", fiber.Map{
		"username": "ab",
		"password": "secret123",
	})
	assert.Equal(t, 400, status)

	// Password too short.
	status, _ = doJSON(t, app, "POST", "/register", "", fiber.Map{
		"username": "alice",
		"password": "123",
	})
	assert.Equal(t, 400, status)

	// Duplicate username.
	registerAndLogin(t, app, "alice")
	status, _ = doJSON(t, app, "POST", "/register", "", fiber.Map{
		"username": "alice",
		"password": "secret123",
	})
	assert.Equal(t, 409, status)
}

func TestNoteVisibilityOverHTTP(t *testing.T) {
	app := newTestApp(t)
	aliceToken := registerAndLogin(t, app, "alice")
	bobToken := registerAndLogin(t, app, "bob")

	privateId := createNote(t, app, aliceToken, "private note", "private")
	readId := createNote(t, app, aliceToken, "readable note", "read")

	// Owner sees everything.
	status, _ := doJSON(t, app, "GET", "/notes/"+privateId, aliceToken, nil)
	assert.Equal(t, 200, status)

	// A private note is a 404 for everyone else, never a 403.
	status, _ = doJSON(t, app, "GET", "/notes/"+privateId, bobToken, nil)
	assert.Equal(t, 404, status)

	// Garbage ids get the same answer.
	status, _ = doJSON(t, app, "GET", "/notes/not-a-uuid", bobToken, nil)
	assert.Equal(t, 404, status)

	// Read visibility opens viewing but not editing.
	status, _ = doJSON(t, app, "GET", "/notes/"+readId, bobToken, nil)
	assert.Equal(t, 200, status)
	status, _ = doJSON(t, app, "GET", "/notes/"+readId+"/edit", bobToken, nil)
	assert.Equal(t, 403, status)
}

func TestEditLockFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	aliceToken := registerAndLogin(t, app, "alice")
	bobToken := registerAndLogin(t, app, "bob")

	noteId := createNote(t, app, aliceToken, "shared note", "write")

	// Alice opens an edit session.
	status, env := doJSON(t, app, "GET", "/notes/"+noteId+"/edit", aliceToken, nil)
	require.Equal(t, 200, status)
	var edit struct {
		Note struct {
			Lock struct {
				Locked bool `json:"locked"`
				IsMe   bool `json:"is_me"`
			} `json:"lock"`
		} `json:"note"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &edit))
	assert.True(t, edit.Note.Lock.Locked)
	assert.True(t, edit.Note.Lock.IsMe)

	// Bob collides and learns who holds the lock.
	status, env = doJSON(t, app, "GET", "/notes/"+noteId+"/edit", bobToken, nil)
	require.Equal(t, 409, status)
	var conflict struct {
		LockedBy string `json:"locked_by_user_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &conflict))
	assert.NotEmpty(t, conflict.LockedBy)

	// Bob cannot save or end a session he does not hold.
	status, _ = doJSON(t, app, "PUT", "/notes/"+noteId+"/edit", bobToken, fiber.Map{
		"title":   "hijacked",
		"content": "x",
	})
	assert.Equal(t, 409, status)
	status, _ = doJSON(t, app, "DELETE", "/notes/"+noteId+"/edit", bobToken, nil)
	assert.Equal(t, 409, status)

	// Alice saves; the session survives the save.
	status, env = doJSON(t, app, "PUT", "/notes/"+noteId+"/edit", aliceToken, fiber.Map{
		"title":   "shared note v2",
		"content": "updated",
	})
	require.Equal(t, 200, status)
	var saved struct {
		Note struct {
			Title string `json:"title"`
			Lock  struct {
				Locked bool `json:"locked"`
				IsMe   bool `json:"is_me"`
			} `json:"lock"`
		} `json:"note"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "shared note v2", saved.Note.Title)
	assert.True(t, saved.Note.Lock.Locked)
	assert.True(t, saved.Note.Lock.IsMe)

	// Alice exits; bob can now take the lock.
	status, _ = doJSON(t, app, "DELETE", "/notes/"+noteId+"/edit", aliceToken, nil)
	require.Equal(t, 200, status)
	status, _ = doJSON(t, app, "GET", "/notes/"+noteId+"/edit", bobToken, nil)
	assert.Equal(t, 200, status)
}

func TestSaveValidationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	aliceToken := registerAndLogin(t, app, "alice")
	noteId := createNote(t, app, aliceToken, "note", "private")

	status, _ := doJSON(t, app, "GET", "/notes/"+noteId+"/edit", aliceToken, nil)
	require.Equal(t, 200, status)

	// Title is required and capped.
	status, _ = doJSON(t, app, "PUT", "/notes/"+noteId+"/edit", aliceToken, fiber.Map{
		"title":   "",
		"content": "x",
	})
	assert.Equal(t, 400, status)

	// Whitespace-only titles trim to nothing and are rejected too.
	status, _ = doJSON(t, app, "PUT", "/notes/"+noteId+"/edit", aliceToken, fiber.Map{
		"title":   "   ",
		"content": "x",
	})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, app, "POST", "/notes", aliceToken, fiber.Map{
		"title":   "   ",
		"content": "x",
	})
	assert.Equal(t, 400, status)

	longTitle := make([]byte, 201)
	for i := range longTitle {
		longTitle[i] = 'a'
	}
	status, _ = doJSON(t, app, "PUT", "/notes/"+noteId+"/edit", aliceToken, fiber.Map{
		"title":   string(longTitle),
		"content": "x",
	})
	assert.Equal(t, 400, status)
}

func TestListNotesOverHTTP(t *testing.T) {
	app := newTestApp(t)
	aliceToken := registerAndLogin(t, app, "alice")
	bobToken := registerAndLogin(t, app, "bob")

	createNote(t, app, aliceToken, "mine", "private")
	createNote(t, app, aliceToken, "shared", "write")

	status, env := doJSON(t, app, "GET", "/notes", bobToken, nil)
	require.Equal(t, 200, status)

	var list struct {
		Notes []struct {
			Title       string `json:"title"`
			AccessLevel string `json:"access_level"`
			IsOwner     bool   `json:"is_owner"`
		} `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Notes, 1)
	assert.Equal(t, "shared", list.Notes[0].Title)
	assert.Equal(t, "write", list.Notes[0].AccessLevel)
	assert.False(t, list.Notes[0].IsOwner)
}
