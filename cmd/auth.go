package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alquimista/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login signs in, persists the session, and reports the connection state.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	password, err := r.password(cmd)
	if err != nil {
		return err
	}

	user, err := r.session.Login(ctx, cmd.String("username"), password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer r.conn.Disconnect()

	r.writePlain("✓ Conectado como %s\n", user.Username)
	return nil
}

// Register creates an account and signs in with it.
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	password, err := r.password(cmd)
	if err != nil {
		return err
	}
	r.writePlain("Confirme a senha: ")
	confirm, err := r.readLine()
	if err != nil {
		return err
	}

	user, err := r.session.Register(ctx, cmd.String("username"), password, confirm)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	defer r.conn.Disconnect()

	r.writePlain("✓ Conta criada: %s\n", user.Username)
	return nil
}

// Logout clears the stored session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	r.writePlain("✓ Sessão encerrada\n")
	return nil
}

// Whoami validates the stored credential and prints the account it belongs to.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	user, ok, err := r.session.Resume(ctx)
	if err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: run 'alq auth login'", shared.ErrNotAuthenticated)
	}
	defer r.conn.Disconnect()

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}
	r.writePlain("%s (%s)\n", user.Username, user.ID)
	return nil
}

// resume brings a stored session online for commands that require auth.
func (r *Runner) resume(ctx context.Context) error {
	_, ok, err := r.session.Resume(ctx)
	if err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: run 'alq auth login'", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) password(cmd *cli.Command) (string, error) {
	if p := cmd.String("password"); p != "" {
		return p, nil
	}
	r.writePlain("Senha: ")
	return r.readLine()
}

func (r *Runner) readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
