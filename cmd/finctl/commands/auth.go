package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store credentials",
		Flags:  credentialFlags(),
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	_, application, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := signIn(ctx, cmd, application.Auth, os.Stdin); err != nil {
		return err
	}

	_, err = fmt.Fprintln(writer(cmd), "Logged in.")
	return err
}

// credentialFlags are shared by every command that signs in.
func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "account username (prompted if omitted)",
		},
		&cli.BoolFlag{
			Name:  "password-stdin",
			Usage: "read the password from stdin instead of prompting",
		},
	}
}

// authenticator signs in with a username and password.
type authenticator interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
}

// signIn collects credentials from flags and input, then logs in.
func signIn(ctx context.Context, cmd *cli.Command, auth authenticator, in io.Reader) error {
	stdin := bufio.NewReader(in)

	username := cmd.String("username")
	if username == "" {
		var err error
		username, err = prompt(stdin, "Username: ")
		if err != nil {
			return err
		}
	}

	password, err := readPassword(stdin, cmd.Bool("password-stdin"))
	if err != nil {
		return err
	}

	if _, err := auth.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "remove stored credentials",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Auth.Logout(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(writer(cmd), "Logged out.")
			return err
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := application.Auth.Status(ctx)
			if err != nil {
				return err
			}

			w := writer(cmd)
			if !status.LoggedIn {
				_, err = fmt.Fprintln(w, "Not logged in.")
				return err
			}

			subject := status.Subject
			if subject == "" {
				subject = "unknown user"
			}
			fmt.Fprintf(w, "Logged in as %s\n", subject)
			if !status.ExpiresAt.IsZero() {
				state := "valid"
				if status.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(w, "Access token %s, expires %s\n", state, status.ExpiresAt.Local().Format(time.RFC1123))
			}
			_, err = fmt.Fprintf(w, "Refresh token stored: %t\n", status.HasRefreshToken)
			return err
		},
	}
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal, or a single line otherwise.
func readPassword(r *bufio.Reader, fromStdin bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if fromStdin || !term.IsTerminal(fd) {
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
