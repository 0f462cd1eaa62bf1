package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.senan.xyz/crate/validation"
)

type testAlbum struct {
	Artist      string  `json:"artist"       validate:"required,max=512"`
	ReleaseYear *int    `json:"release_year" validate:"omitempty,gte=1000,lte=9999"`
	Condition   *string `json:"condition"    validate:"omitempty,condition"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	year := func(y int) *int { return &y }
	cond := func(c string) *string { return &c }

	tcases := []struct {
		name   string
		in     testAlbum
		expMsg string
	}{
		{name: "ok", in: testAlbum{Artist: "Can", ReleaseYear: year(1971), Condition: cond("Near Mint")}},
		{name: "ok empty optionals", in: testAlbum{Artist: "Can"}},
		{name: "missing artist", in: testAlbum{}, expMsg: "artist is required"},
		{name: "year too small", in: testAlbum{Artist: "Can", ReleaseYear: year(71)}, expMsg: "release_year must be greater than or equal to 1000"},
		{name: "bad condition", in: testAlbum{Artist: "Can", Condition: cond("Scratched")}, expMsg: "condition must be one of: Mint, Near Mint, Very Good, Good, Fair, Poor"},
	}
	for _, tcase := range tcases {
		t.Run(tcase.name, func(t *testing.T) {
			t.Parallel()

			err := validation.Struct(tcase.in)
			if tcase.expMsg == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tcase.expMsg)
			require.ErrorIs(t, err, validation.ErrInvalid)
		})
	}
}

func TestMaxBytes(t *testing.T) {
	t.Parallel()

	type secret struct {
		Password string `json:"password" validate:"max=72,maxbytes=72"`
	}

	require.NoError(t, validation.Struct(secret{Password: strings.Repeat("a", 72)}))

	// 30 runes but 75 bytes
	err := validation.Struct(secret{Password: strings.Repeat("é€", 15)})
	require.EqualError(t, err, "password must be at most 72 bytes long")
	require.ErrorIs(t, err, validation.ErrInvalid)
}

func TestIsCondition(t *testing.T) {
	t.Parallel()

	require.True(t, validation.IsCondition("Very Good"))
	require.False(t, validation.IsCondition("very good"))
	require.False(t, validation.IsCondition(""))
}
