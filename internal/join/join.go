// Package join finds the custom lobby a join request points at and joins
// it through the local client.
package join

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/maxilosgr/leagueofleagues-client/internal/backend"
)

var ErrLobbyNotFound = errors.New("lobby not found")

// JoinFailedError carries the message the local client returned when the
// join call itself was rejected (wrong password, lobby full, ...).
type JoinFailedError struct {
	Message string
}

func (e *JoinFailedError) Error() string { return "join failed: " + e.Message }

// Requester is the slice of the connection handle this package needs.
type Requester interface {
	Request(ctx context.Context, method, path string, body, out any) (int, error)
}

// Lobby is one entry from the local client's custom-lobby listing.
type Lobby struct {
	ID               string `json:"id"`
	OwnerDisplayName string `json:"ownerDisplayName"`
}

// Outcome reports a successful join.
type Outcome struct {
	Target string // owner display identity, "Name#Tag"
}

// Match selects the lobby owned by name/tag. Exact match compares against
// "name #tag"; the space is part of the client's display format, not a
// typo. When no exact entry exists, a lobby whose owner starts with
// "name#" matches instead. Both comparisons are case-insensitive.
func Match(lobbies []Lobby, name, tag string) (Lobby, bool) {
	exact := strings.ToLower(name + " #" + tag)
	for _, lb := range lobbies {
		if strings.ToLower(lb.OwnerDisplayName) == exact {
			return lb, true
		}
	}
	prefix := strings.ToLower(name + "#")
	for _, lb := range lobbies {
		if strings.HasPrefix(strings.ToLower(lb.OwnerDisplayName), prefix) {
			return lb, true
		}
	}
	return Lobby{}, false
}

// Join runs the full sequence against the local client: list custom
// lobbies, match the target, post the join. It must execute inside the
// connection's event context (scheduled via the connector).
func Join(ctx context.Context, r Requester, req backend.JoinRequest) (Outcome, error) {
	var lobbies []Lobby
	if _, err := r.Request(ctx, http.MethodGet, "/lol-lobby/v2/lobby/custom/available", nil, &lobbies); err != nil {
		return Outcome{}, err
	}

	lb, ok := Match(lobbies, req.TargetName, req.TargetTag)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s#%s", ErrLobbyNotFound, req.TargetName, req.TargetTag)
	}

	body := struct {
		AsSpectator bool   `json:"asSpectator"`
		Password    string `json:"password"`
	}{AsSpectator: false, Password: req.Credential}

	var errBody struct {
		Message string `json:"message"`
	}
	status, err := r.Request(ctx, http.MethodPost,
		"/lol-lobby/v2/lobby/custom/"+lb.ID+"/join", body, &errBody)
	if err != nil {
		return Outcome{}, err
	}
	if status != http.StatusOK {
		msg := errBody.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return Outcome{}, &JoinFailedError{Message: msg}
	}
	return Outcome{Target: req.TargetName + "#" + req.TargetTag}, nil
}
