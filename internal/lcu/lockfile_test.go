package lcu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLockfile(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		want    Lockfile
		wantErr bool
	}{
		{
			name: "valid",
			data: "LeagueClient:1234:52372:secret:https",
			want: Lockfile{Name: "LeagueClient", PID: 1234, Port: 52372, Password: "secret", Protocol: "https"},
		},
		{
			name: "trailing newline",
			data: "LeagueClient:1:2:pw:https\n",
			want: Lockfile{Name: "LeagueClient", PID: 1, Port: 2, Password: "pw", Protocol: "https"},
		},
		{
			name:    "too few fields",
			data:    "LeagueClient:1234:52372:secret",
			wantErr: true,
		},
		{
			name:    "bad port",
			data:    "LeagueClient:1234:notaport:secret:https",
			wantErr: true,
		},
		{
			name:    "empty password",
			data:    "LeagueClient:1234:52372::https",
			wantErr: true,
		},
		{
			name:    "empty",
			data:    "",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLockfile(tc.data)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	if _, err := Discover(dir); !errors.Is(err, ErrNoLockfile) {
		t.Fatalf("want ErrNoLockfile, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "lockfile"), []byte("LeagueClient:9:4242:pw:https"), 0o644); err != nil {
		t.Fatal(err)
	}
	lf, err := Discover(dir)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if lf.Port != 4242 || lf.Password != "pw" {
		t.Fatalf("unexpected lockfile: %+v", lf)
	}
}
