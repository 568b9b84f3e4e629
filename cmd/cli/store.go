package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/and161185/event-keeper/internal/tracker"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "eventkeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "eventkeeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	return writeJSON(tokenPath(), tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `ek token` first)")
	}
	return tf.AccessToken, nil
}

// ---- sessions ----

func sessionPath(publicID string) (string, error) {
	if publicID == "" || publicID != filepath.Base(publicID) || strings.HasPrefix(publicID, ".") {
		return "", fmt.Errorf("bad public id %q", publicID)
	}
	return filepath.Join(cfgDir(), "sessions", publicID+".json"), nil
}

func saveSession(publicID string, s *tracker.Session) error {
	p, err := sessionPath(publicID)
	if err != nil {
		return err
	}
	return writeJSON(p, s.Export())
}

// loadSession restores the session stored for publicID.
func loadSession(publicID string) (*tracker.Session, error) {
	p, err := sessionPath(publicID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no local session for %s (run `ek get %s` first)", publicID, publicID)
		}
		return nil, err
	}
	var st tracker.State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("session %s: %w", publicID, err)
	}
	s := tracker.New()
	s.Restore(st)
	return s, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
