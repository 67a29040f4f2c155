package reservation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartySize(t *testing.T) {
	tests := []struct {
		in      string
		seats   int
		str     string
		wantErr bool
	}{
		{in: "1", seats: 1, str: "1"},
		{in: "4", seats: 4, str: "4"},
		{in: "20", seats: 20, str: "20"},
		{in: "20+", seats: 20, str: "20+"},
		{in: "0", wantErr: true},
		{in: "21", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "four", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePartySize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.seats, p.Seats())
			assert.Equal(t, tt.str, p.String())
		})
	}
}

func TestPartySizeJSON(t *testing.T) {
	var body struct {
		A PartySize `json:"a"`
		B PartySize `json:"b"`
		C PartySize `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":4,"b":"20+","c":"6"}`), &body))
	assert.Equal(t, 4, body.A.Seats())
	assert.True(t, body.B.OpenEnded())
	assert.Equal(t, 20, body.B.Seats())
	assert.Equal(t, 6, body.C.Seats())

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":4,"b":"20+","c":6}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"a":25}`), &body))
}

func TestConfirmationCode(t *testing.T) {
	assert.Equal(t, "3F2504E0", ConfirmationCode("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))

	r := Reservation{ID: "a1b2c3d4-0000-0000-0000-000000000000"}
	assert.Equal(t, r.ConfirmationCode(), r.ConfirmationCode())
	assert.Equal(t, "A1B2C3D4", r.ConfirmationCode())
}

func TestGuestValidate(t *testing.T) {
	assert.Empty(t, Guest{Name: "Ada", Email: "ada@example.com"}.Validate())

	problems := Guest{Email: "nope", SMSOptIn: true}.Validate()
	assert.Contains(t, problems, "guest.name")
	assert.Contains(t, problems, "guest.email")
	assert.Contains(t, problems, "guest.phone")
}

func TestValidateRequests(t *testing.T) {
	long := make([]rune, MaxSpecialRequests+1)
	for i := range long {
		long[i] = 'é'
	}
	assert.Empty(t, ValidateRequests(string(long[:MaxSpecialRequests]), OccasionBirthday))
	assert.Contains(t, ValidateRequests(string(long), OccasionNone), "special_requests")
	assert.Contains(t, ValidateRequests("", Occasion("wake")), "occasion")
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusSeated} {
		assert.True(t, s.Occupying(), s)
		assert.False(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.False(t, s.Occupying(), s)
		assert.True(t, s.Terminal(), s)
	}

	s, err := ParseStatus("no_show")
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, s)
	_, err = ParseStatus("arrived")
	assert.Error(t, err)
}
