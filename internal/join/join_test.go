package join

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxilosgr/leagueofleagues-client/internal/backend"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		name    string
		lobbies []Lobby
		target  [2]string // name, tag
		wantID  string
		wantOK  bool
	}{
		{
			// The client renders owners as "Name #Tag" with a space; the
			// exact rule matches that rendering literally.
			name:    "exact match with space",
			lobbies: []Lobby{{ID: "1", OwnerDisplayName: "Ana #NA1"}},
			target:  [2]string{"Ana", "NA1"},
			wantID:  "1",
			wantOK:  true,
		},
		{
			name:    "exact match is case insensitive",
			lobbies: []Lobby{{ID: "2", OwnerDisplayName: "aNa #na1"}},
			target:  [2]string{"Ana", "NA1"},
			wantID:  "2",
			wantOK:  true,
		},
		{
			name:    "prefix fallback without space",
			lobbies: []Lobby{{ID: "3", OwnerDisplayName: "Ana#NA1-smurf"}},
			target:  [2]string{"Ana", "NA1-smurf"},
			wantID:  "3",
			wantOK:  true,
		},
		{
			name: "exact wins over prefix",
			lobbies: []Lobby{
				{ID: "4", OwnerDisplayName: "Ana#NA1"},
				{ID: "5", OwnerDisplayName: "Ana #NA1"},
			},
			target: [2]string{"Ana", "NA1"},
			wantID: "5",
			wantOK: true,
		},
		{
			name:    "no match",
			lobbies: []Lobby{{ID: "6", OwnerDisplayName: "Bob #EUW"}},
			target:  [2]string{"Ana", "NA1"},
			wantOK:  false,
		},
		{
			name:   "empty listing",
			target: [2]string{"Ana", "NA1"},
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lb, ok := Match(tc.lobbies, tc.target[0], tc.target[1])
			require.Equal(t, tc.wantOK, ok)
			if ok {
				require.Equal(t, tc.wantID, lb.ID)
			}
		})
	}
}

// fakeRequester scripts the local client's lobby endpoints.
type fakeRequester struct {
	lobbies    []Lobby
	joinStatus int
	joinBody   string
	joinedID   string
	joinedWith map[string]any
}

func (f *fakeRequester) Request(_ context.Context, method, path string, body, out any) (int, error) {
	if method == http.MethodGet && path == "/lol-lobby/v2/lobby/custom/available" {
		data, _ := json.Marshal(f.lobbies)
		_ = json.Unmarshal(data, out)
		return http.StatusOK, nil
	}

	// POST /lol-lobby/v2/lobby/custom/{id}/join
	f.joinedID = path
	data, _ := json.Marshal(body)
	_ = json.Unmarshal(data, &f.joinedWith)
	if f.joinBody != "" {
		_ = json.Unmarshal([]byte(f.joinBody), out)
	}
	return f.joinStatus, nil
}

func TestJoin_Success(t *testing.T) {
	f := &fakeRequester{
		lobbies:    []Lobby{{ID: "g42", OwnerDisplayName: "Ana #NA1"}},
		joinStatus: http.StatusOK,
	}
	req := backend.JoinRequest{TargetName: "Ana", TargetTag: "NA1", Credential: "pin99"}

	out, err := Join(context.Background(), f, req)
	require.NoError(t, err)
	require.Equal(t, "Ana#NA1", out.Target)
	require.Equal(t, "/lol-lobby/v2/lobby/custom/g42/join", f.joinedID)
	require.Equal(t, map[string]any{"asSpectator": false, "password": "pin99"}, f.joinedWith)
}

func TestJoin_LobbyNotFound(t *testing.T) {
	f := &fakeRequester{lobbies: []Lobby{{ID: "1", OwnerDisplayName: "Bob #EUW"}}}
	req := backend.JoinRequest{TargetName: "Ana", TargetTag: "NA1", Credential: "pin"}

	_, err := Join(context.Background(), f, req)
	require.ErrorIs(t, err, ErrLobbyNotFound)
	require.Empty(t, f.joinedID, "join endpoint must not be called")
}

func TestJoin_RejectedWithMessage(t *testing.T) {
	f := &fakeRequester{
		lobbies:    []Lobby{{ID: "g1", OwnerDisplayName: "Ana #NA1"}},
		joinStatus: http.StatusForbidden,
		joinBody:   `{"message":"Wrong password"}`,
	}
	req := backend.JoinRequest{TargetName: "Ana", TargetTag: "NA1", Credential: "bad"}

	_, err := Join(context.Background(), f, req)
	var jf *JoinFailedError
	require.ErrorAs(t, err, &jf)
	require.Equal(t, "Wrong password", jf.Message)
}

func TestJoin_RejectedWithoutMessage(t *testing.T) {
	f := &fakeRequester{
		lobbies:    []Lobby{{ID: "g1", OwnerDisplayName: "Ana #NA1"}},
		joinStatus: http.StatusInternalServerError,
	}
	req := backend.JoinRequest{TargetName: "Ana", TargetTag: "NA1", Credential: "pin"}

	_, err := Join(context.Background(), f, req)
	var jf *JoinFailedError
	require.ErrorAs(t, err, &jf)
	require.Equal(t, "Unknown error", jf.Message)
}
