package auth_test

import (
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.senan.xyz/crate/auth"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/validation"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newAuthenticator(t *testing.T) (*auth.Authenticator, *db.DB) {
	t.Helper()

	dbc, err := db.NewMock()
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })
	require.NoError(t, dbc.Migrate())
	return auth.NewCost(dbc, bcrypt.MinCost), dbc
}

func TestSignUpSignIn(t *testing.T) {
	t.Parallel()

	authn, dbc := newAuthenticator(t)

	user, err := authn.SignUp(auth.Credentials{Email: " Jeff@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "jeff@example.com", user.Email)
	require.NotEqual(t, "hunter22", user.PasswordHash)

	var profile db.Profile
	require.NoError(t, dbc.First(&profile, "id=?", user.ID).Error)

	_, err = authn.SignUp(auth.Credentials{Email: "jeff@example.com", Password: "another1"})
	require.True(t, errors.Is(err, auth.ErrEmailTaken))

	signedIn, err := authn.SignIn("jeff@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, user.ID, signedIn.ID)

	_, err = authn.SignIn("jeff@example.com", "wrong")
	require.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	_, err = authn.SignIn("nobody@example.com", "hunter22")
	require.True(t, errors.Is(err, auth.ErrInvalidCredentials))
}

func TestSignUpValidation(t *testing.T) {
	t.Parallel()

	authn, _ := newAuthenticator(t)

	_, err := authn.SignUp(auth.Credentials{Email: "not an email", Password: "hunter22"})
	require.EqualError(t, err, "email must be a valid email address")

	_, err = authn.SignUp(auth.Credentials{Email: "a@example.com", Password: "short"})
	require.EqualError(t, err, "password must be at least 6 characters long")

	_, err = authn.SignUp(auth.Credentials{})
	require.EqualError(t, err, "email is required")
}

func TestSignUpConcurrent(t *testing.T) {
	t.Parallel()

	authn, dbc := newAuthenticator(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = authn.SignUp(auth.Credentials{Email: "race@example.com", Password: "hunter22"})
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, auth.ErrEmailTaken)
	}
	require.Equal(t, 1, ok)

	var count int
	require.NoError(t, dbc.Model(db.User{}).Count(&count).Error)
	require.Equal(t, 1, count)
}

func TestSignUpLongPassword(t *testing.T) {
	t.Parallel()

	authn, _ := newAuthenticator(t)

	_, err := authn.SignUp(auth.Credentials{Email: "a@example.com", Password: strings.Repeat("é€", 15)})
	require.ErrorIs(t, err, validation.ErrInvalid)
	require.EqualError(t, err, "password must be at most 72 bytes long")
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	authn, _ := newAuthenticator(t)

	user, err := authn.SignUp(auth.Credentials{Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)

	require.True(t, errors.Is(authn.ChangePassword(user, "newpass1", "newpass2"), auth.ErrPasswordsNotSame))
	require.Error(t, authn.ChangePassword(user, "abc", "abc"))

	require.NoError(t, authn.ChangePassword(user, "newpass1", "newpass1"))

	_, err = authn.SignIn("a@example.com", "hunter22")
	require.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	_, err = authn.SignIn("a@example.com", "newpass1")
	require.NoError(t, err)
}
