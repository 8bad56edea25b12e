package pje

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCaseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare digits",
			in:   "12345672023801234560",
			want: "1234567-20.2380.1.23.4560",
		},
		{
			name: "already formatted",
			in:   "1234567-20.2380.1.23.4560",
			want: "1234567-20.2380.1.23.4560",
		},
		{
			name: "formatted with noise",
			in:   "Processo nº 1234567-20.2380.1.23.4560",
			want: "1234567-20.2380.1.23.4560",
		},
		{
			name: "too few digits",
			in:   "123456",
			want: "123456",
		},
		{
			name: "too many digits",
			in:   "123456720238012345601",
			want: "123456720238012345601",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "free text",
			in:   "N/A",
			want: "N/A",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeCaseNumber(tc.in))
		})
	}
}

func TestIdentityKeyStableAcrossFormatting(t *testing.T) {
	t.Parallel()

	published := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	a := IdentityKey("12345672023801234560", published, "1ª Vara Cível")
	b := IdentityKey("1234567-20.2380.1.23.4560", published, "1ª Vara Cível")
	require.Equal(t, a, b)

	c := IdentityKey("1234567-20.2380.1.23.4560", published, "2ª Vara Cível")
	require.NotEqual(t, a, c)
}

func TestComputeIdentityHash(t *testing.T) {
	t.Parallel()

	published := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	got, err := ComputeIdentityHash(&fakeHasher{}, "12345672023801234560", published, "1ª Vara Cível")
	require.NoError(t, err)
	require.Equal(t, "1234567-20.2380.1.23.4560|2023-03-15T00:00:00Z|1ª Vara Cível", got)
}

func TestComputeIdentityHashPropagatesError(t *testing.T) {
	t.Parallel()

	published := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	_, err := ComputeIdentityHash(&fakeHasher{err: errTestHash}, "123", published, "vara")
	require.Error(t, err)
	require.ErrorIs(t, err, errTestHash)
}
