package graph

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark-server/internal/auth"
	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/pubsub"
	"github.com/shelfmark/shelfmark-server/internal/service"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

const testKeyHex = "202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f"

type graphTestEnv struct {
	handler http.Handler
	stream  *StreamHandler
	catalog *service.CatalogService
	auth    *service.AuthService
	broker  *pubsub.Broker
}

func setupGraphTest(t *testing.T) (*graphTestEnv, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "shelfmark-graph-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	log := slog.New(slog.DiscardHandler)

	broker := pubsub.NewBroker(log)
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)

	tokenService, err := auth.NewTokenService(testKeyHex)
	require.NoError(t, err)

	catalog := service.NewCatalogService(s, broker, log)
	authService := service.NewAuthService(s, tokenService, log)

	schema, err := NewSchema(NewResolver(catalog, authService, log))
	require.NoError(t, err)

	handler := AuthContext(authService)(NewHandler(schema, log))

	env := &graphTestEnv{
		handler: handler,
		stream:  NewStreamHandler(schema, broker, log),
		catalog: catalog,
		auth:    authService,
		broker:  broker,
	}

	cleanup := func() {
		cancel()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return env, cleanup
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

// postQuery runs one GraphQL request against the handler and decodes the
// response envelope. An empty token leaves the request anonymous.
func postQuery(t *testing.T, env *graphTestEnv, token, query string, variables map[string]any) gqlResponse {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "unexpected status: %s", rec.Body.String())

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return resp
}

// loginTestUser registers an account and returns a bearer token for it.
func loginTestUser(t *testing.T, env *graphTestEnv, username string) string {
	t.Helper()

	ctx := context.Background()
	_, err := env.auth.CreateUser(ctx, domain.CreateUserInput{
		Username:      username,
		FavoriteGenre: "refactoring",
		Password:      "salasana-123",
	})
	require.NoError(t, err)

	token, err := env.auth.Login(ctx, username, "salasana-123")
	require.NoError(t, err)
	return token
}

func seedBook(t *testing.T, env *graphTestEnv, token, title string, published int, author string, genres []string) {
	t.Helper()

	resp := postQuery(t, env, token, `
		mutation ($title: String!, $published: Int!, $author: String!, $genres: [String!]!) {
			addBook(title: $title, published: $published, author: $author, genres: $genres) {
				id
			}
		}`, map[string]any{
		"title":     title,
		"published": published,
		"author":    author,
		"genres":    genres,
	})
	require.Empty(t, resp.Errors, "seeding %q failed: %+v", title, resp.Errors)
}

func TestQuery_Counts(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")
	seedBook(t, env, token, "Clean Code", 2008, "Robert Martin", []string{"refactoring"})
	seedBook(t, env, token, "Agile Software Development", 2002, "Robert Martin", []string{"agile"})
	seedBook(t, env, token, "Refactoring, edition 2", 2018, "Martin Fowler", []string{"refactoring"})

	resp := postQuery(t, env, "", `{ authorCount bookCount }`, nil)
	require.Empty(t, resp.Errors)
	assert.EqualValues(t, 2, resp.Data["authorCount"])
	assert.EqualValues(t, 3, resp.Data["bookCount"])

	resp = postQuery(t, env, "", `{ bookCount(author: "Robert Martin") }`, nil)
	require.Empty(t, resp.Errors)
	assert.EqualValues(t, 2, resp.Data["bookCount"])

	resp = postQuery(t, env, "", `{ bookCount(author: "No Such Author") }`, nil)
	require.Empty(t, resp.Errors)
	assert.EqualValues(t, 0, resp.Data["bookCount"])
}

func TestQuery_AllBooks(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")
	seedBook(t, env, token, "Clean Code", 2008, "Robert Martin", []string{"refactoring"})
	seedBook(t, env, token, "Refactoring, edition 2", 2018, "Martin Fowler", []string{"refactoring"})
	seedBook(t, env, token, "Demons", 1872, "Fyodor Dostoevsky", []string{"classic", "revolution"})

	resp := postQuery(t, env, "", `{
		allBooks { title published genres author { name } }
	}`, nil)
	require.Empty(t, resp.Errors)
	books := resp.Data["allBooks"].([]any)
	assert.Len(t, books, 3)

	resp = postQuery(t, env, "", `
		query ($genre: String) {
			allBooks(genre: $genre) { title }
		}`, map[string]any{"genre": "refactoring"})
	require.Empty(t, resp.Errors)
	assert.Len(t, resp.Data["allBooks"].([]any), 2)

	resp = postQuery(t, env, "", `{ allBooks(author: "Fyodor Dostoevsky") { title genres } }`, nil)
	require.Empty(t, resp.Errors)
	books = resp.Data["allBooks"].([]any)
	require.Len(t, books, 1)
	book := books[0].(map[string]any)
	assert.Equal(t, "Demons", book["title"])
	assert.Equal(t, []any{"classic", "revolution"}, book["genres"])

	// Genre takes precedence when both filters are present.
	resp = postQuery(t, env, "", `{ allBooks(author: "Robert Martin", genre: "refactoring") { title } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Len(t, resp.Data["allBooks"].([]any), 2)
}

func TestQuery_AllAuthors(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")
	seedBook(t, env, token, "Clean Code", 2008, "Robert Martin", []string{"refactoring"})
	seedBook(t, env, token, "Agile Software Development", 2002, "Robert Martin", []string{"agile"})

	resp := postQuery(t, env, "", `{ allAuthors { name born bookCount } }`, nil)
	require.Empty(t, resp.Errors)

	authors := resp.Data["allAuthors"].([]any)
	require.Len(t, authors, 1)
	author := authors[0].(map[string]any)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.Nil(t, author["born"])
	assert.EqualValues(t, 2, author["bookCount"])
}

func TestMutation_AddBook(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")

	resp := postQuery(t, env, token, `
		mutation {
			addBook(title: "Clean Code", published: 2008, author: "Robert Martin", genres: ["refactoring"]) {
				title
				published
				genres
				author { name bookCount }
			}
		}`, nil)
	require.Empty(t, resp.Errors)

	book := resp.Data["addBook"].(map[string]any)
	assert.Equal(t, "Clean Code", book["title"])
	assert.EqualValues(t, 2008, book["published"])
	assert.Equal(t, []any{"refactoring"}, book["genres"])

	author := book["author"].(map[string]any)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.EqualValues(t, 1, author["bookCount"])
}

func TestMutation_AddBookUnauthenticated(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	resp := postQuery(t, env, "", `
		mutation {
			addBook(title: "Clean Code", published: 2008, author: "Robert Martin", genres: []) { title }
		}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "UNAUTHENTICATED", resp.Errors[0].Extensions["code"])
	assert.Nil(t, resp.Data["addBook"])
}

func TestMutation_AddBookInvalidToken(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	resp := postQuery(t, env, "v4.local.bogus", `
		mutation {
			addBook(title: "Clean Code", published: 2008, author: "Robert Martin", genres: []) { title }
		}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "UNAUTHENTICATED", resp.Errors[0].Extensions["code"])
}

func TestMutation_AddBookValidation(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")

	resp := postQuery(t, env, token, `
		mutation {
			addBook(title: "C", published: 2008, author: "Robert Martin", genres: []) { title }
		}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
}

func TestMutation_EditAuthor(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")
	seedBook(t, env, token, "Refactoring, edition 2", 2018, "Martin Fowler", []string{"refactoring"})

	resp := postQuery(t, env, token, `
		mutation {
			editAuthor(name: "Martin Fowler", setBornTo: 1963) { name born }
		}`, nil)
	require.Empty(t, resp.Errors)

	author := resp.Data["editAuthor"].(map[string]any)
	assert.Equal(t, "Martin Fowler", author["name"])
	assert.EqualValues(t, 1963, author["born"])
}

func TestMutation_EditAuthorNotFound(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	token := loginTestUser(t, env, "mluukkai")

	resp := postQuery(t, env, token, `
		mutation {
			editAuthor(name: "No Such Author", setBornTo: 1900) { name }
		}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "NOT_FOUND", resp.Errors[0].Extensions["code"])
	assert.Nil(t, resp.Data["editAuthor"])
}

func TestMutation_CreateUserAndLogin(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	resp := postQuery(t, env, "", `
		mutation {
			createUser(username: "mluukkai", favoriteGenre: "refactoring", password: "salasana-123") {
				username
				favoriteGenre
				id
			}
		}`, nil)
	require.Empty(t, resp.Errors)
	user := resp.Data["createUser"].(map[string]any)
	assert.Equal(t, "mluukkai", user["username"])
	assert.Equal(t, "refactoring", user["favoriteGenre"])
	assert.NotEmpty(t, user["id"])

	resp = postQuery(t, env, "", `
		mutation {
			login(username: "mluukkai", password: "salasana-123") { value }
		}`, nil)
	require.Empty(t, resp.Errors)
	tokenValue := resp.Data["login"].(map[string]any)["value"].(string)
	assert.NotEmpty(t, tokenValue)

	// The issued token authenticates follow-up requests.
	resp = postQuery(t, env, tokenValue, `{ me { username favoriteGenre } }`, nil)
	require.Empty(t, resp.Errors)
	me := resp.Data["me"].(map[string]any)
	assert.Equal(t, "mluukkai", me["username"])
}

func TestMutation_LoginWrongCredentials(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	loginTestUser(t, env, "mluukkai")

	resp := postQuery(t, env, "", `
		mutation {
			login(username: "mluukkai", password: "wrong-password") { value }
		}`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
	assert.Contains(t, resp.Errors[0].Message, "wrong credentials")
}

func TestQuery_MeAnonymous(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	resp := postQuery(t, env, "", `{ me { username } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Nil(t, resp.Data["me"])
}

func TestQuery_MeInvalidToken(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	// An invalid token reads as anonymous for me, not as an error.
	resp := postQuery(t, env, "v4.local.bogus", `{ me { username } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Nil(t, resp.Data["me"])
}

func TestHandler_SubscriptionOverHTTPRejected(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	resp := postQuery(t, env, "", `subscription { bookAdded { title } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0].Message, "/graphql/stream")
}

func TestHandler_MalformedBody(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetRequest(t *testing.T) {
	env, cleanup := setupGraphTest(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/graphql?query={authorCount}", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Errors)
	assert.EqualValues(t, 0, resp.Data["authorCount"])
}
