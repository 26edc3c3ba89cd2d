// Package cli implements the gophauth command-line client.
package cli

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/authclient"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/spf13/cobra"
)

// SessionClient is the subset of authclient.Client the commands use.
type SessionClient interface {
	Signup(ctx context.Context, email, name, password string) (authclient.Session, error)
	Login(ctx context.Context, email, password string) (authclient.Session, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	CheckPassword(ctx context.Context, password string) (bool, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, code string) (string, error)
	Ping(ctx context.Context) error
	Session() authclient.Session
	SetSession(authclient.Session)
	Close() error
}

const (
	configDirName = "gophauth"
	sessionFile   = "session.json"
)

type App struct {
	reader *bufio.Reader
	out    io.Writer
	dial   func(addr string) (SessionClient, error)

	serverAddr  string
	sessionPath string
	timeout     time.Duration
}

func NewApp(in io.Reader, out io.Writer) *App {
	return &App{
		reader: bufio.NewReader(in),
		out:    out,
		dial: func(addr string) (SessionClient, error) {
			return authclient.New(addr)
		},
	}
}

func (a *App) resolveSessionPath() (string, error) {
	if a.sessionPath != "" {
		return a.sessionPath, nil
	}
	dir, err := filex.EnsureSubdDir(configDirName)
	if err != nil {
		return "", err
	}
	a.sessionPath = filepath.Join(dir, sessionFile)
	return a.sessionPath, nil
}

func (a *App) loadSession(c SessionClient) error {
	path, err := a.resolveSessionPath()
	if err != nil {
		return err
	}
	var s authclient.Session
	if err := filex.ReadJSON(path, &s); err != nil {
		return err
	}
	c.SetSession(s)
	return nil
}

func (a *App) saveSession(s authclient.Session) error {
	path, err := a.resolveSessionPath()
	if err != nil {
		return err
	}
	if s == (authclient.Session{}) {
		return filex.Remove(path)
	}
	return filex.WriteJSON(path, s)
}

// run connects, loads the stored session, runs fn and stores the session
// again if fn changed it (including a transparent token refresh).
func (a *App) run(cmd *cobra.Command, fn func(ctx context.Context, c SessionClient) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	c, err := a.dial(a.serverAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := a.loadSession(c); err != nil {
		return err
	}

	before := c.Session()
	err = fn(ctx, c)
	if after := c.Session(); after != before {
		if serr := a.saveSession(after); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
