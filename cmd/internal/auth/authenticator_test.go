package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/security/token"
)

func TestAuthenticator_ValidTokenAttachesExactlyThatUser(t *testing.T) {
	t.Parallel()

	store := newCountingStore(t)
	codec := newTestCodec(t)
	a := mustCreateUser(t, store, "alice")
	_ = mustCreateUser(t, store, "bob")

	authn := NewAuthenticator(store, codec, discardLogger())

	r, st := newStatefulRequest(http.MethodPost, "/api/bugs")
	r.Header.Set("Authorization", "Bearer "+mustIssue(t, codec, a.ID))

	got, err := authn.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	attached, ok := st.Identity()
	require.True(t, ok)
	assert.Equal(t, a, attached)
}

func TestAuthenticator_AlreadyAttachedShortCircuits(t *testing.T) {
	t.Parallel()

	store := newCountingStore(t)
	authn := NewAuthenticator(store, newTestCodec(t), discardLogger())

	r, st := newStatefulRequest(http.MethodPost, "/api/bugs")
	pre := identity.User{ID: "01HZX3Q7J9V6M3T4K8N2P5R7S9", Username: "pre"}
	require.True(t, st.attach(pre))
	r.Header.Set("Authorization", "Bearer garbage")

	got, err := authn.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, pre.ID, got.ID)
	assert.Zero(t, store.calls(), "short-circuit must not touch the store")
}

func TestAuthenticator_Failures(t *testing.T) {
	t.Parallel()

	store := newCountingStore(t)
	codec := newTestCodec(t)
	u := mustCreateUser(t, store, "carol")

	other, err := token.NewCodec([]byte("a-completely-different-secret-value!!"))
	require.NoError(t, err)
	foreign := mustIssue(t, other, u.ID)

	expired, _, err := codec.Issue(u.ID, time.Now().Add(-3*time.Hour))
	require.NoError(t, err)

	ghost := mustIssue(t, codec, "01HZZZZZZZZZZZZZZZZZZZZZZZ")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer "},
		{"malformed token", "Bearer not.a.jwt"},
		{"foreign secret", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
		{"unknown user", "Bearer " + ghost},
	}

	authn := NewAuthenticator(store, codec, discardLogger())
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, st := newStatefulRequest(http.MethodPut, "/api/bugs/x")
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			_, err := authn.Authenticate(r)
			assert.ErrorIs(t, err, ErrUnauthenticated)

			_, ok := st.Identity()
			assert.False(t, ok)
		})
	}
}

func TestAuthenticator_StoreErrorIsNotUnauthenticated(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	authn := NewAuthenticator(brokenLookup{}, codec, discardLogger())

	r, _ := newStatefulRequest(http.MethodPost, "/api/bugs")
	r.Header.Set("Authorization", "Bearer "+mustIssue(t, codec, "01HZX3Q7J9V6M3T4K8N2P5R7S9"))

	_, err := authn.Authenticate(r)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticator_RequiresRequestState(t *testing.T) {
	t.Parallel()

	authn := NewAuthenticator(newCountingStore(t), newTestCodec(t), discardLogger())
	r, _ := http.NewRequest(http.MethodGet, "/", nil)

	_, err := authn.Authenticate(r)
	assert.ErrorIs(t, err, ErrNoRequestState)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer abc":         "abc",
		"BEARER   abc  ":     "abc",
		"Bearer":             "",
		"Token abc":          "",
		"Basic dXNlcjpwYXNz": "",
	}
	for header, want := range cases {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(r), "header %q", header)
	}
}
