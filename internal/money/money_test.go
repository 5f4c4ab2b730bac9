package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsSeparators(t *testing.T) {
	got, err := Parse(" 1,250.5 ")
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("1250.5")))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("12abc")
	require.Error(t, err)

	_, err = Parse("   ")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		want     string
	}{
		{"0", "", "0.00"},
		{"2", "KES", "KES 2.00"},
		{"1250.505", "KES", "KES 1,250.51"},
		{"1234567.891", "", "1,234,567.89"},
		{"-950", "", "-950.00"},
		{"33.333333333", "", "33.33"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Format(decimal.RequireFromString(tc.in), tc.currency), tc.in)
	}
}

func TestFormatKg(t *testing.T) {
	require.Equal(t, "12.5 kg", FormatKg(decimal.RequireFromString("12.500")))
	require.Equal(t, "100 kg", FormatKg(decimal.NewFromInt(100)))
}

func TestCheckBoundsScaleAndMagnitude(t *testing.T) {
	cases := []struct {
		in      string
		check   func(decimal.Decimal) error
		wantErr error
	}{
		{"1400.50", CheckAmount, nil},
		{"1400.500", CheckAmount, nil},
		{"0.005", CheckAmount, ErrTooPrecise},
		{"12.125", CheckQuantity, nil},
		{"12.1255", CheckQuantity, ErrTooPrecise},
		{"1e-20000000", CheckQuantity, ErrTooPrecise},
		{"0e-20000000", CheckAmount, ErrTooPrecise},
		{"1e20000000", CheckAmount, ErrOutOfRange},
		{"1000000001", CheckAmount, ErrOutOfRange},
		{"-1000000000", CheckAmount, nil},
	}
	for _, tc := range cases {
		err := tc.check(decimal.RequireFromString(tc.in))
		if tc.wantErr == nil {
			require.NoError(t, err, tc.in)
			continue
		}
		require.ErrorIs(t, err, tc.wantErr, tc.in)
	}
}
