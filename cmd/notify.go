package main

import (
	"context"
	"fmt"

	"github.com/alquimista/studio/internal/formatter"
	"github.com/alquimista/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// NotifyList prints the feed with unread markers.
func (r *Runner) NotifyList(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	snap := r.feed.Snapshot()
	if snap.Err != nil {
		return fmt.Errorf("failed to load notifications: %w", snap.Err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}
	return r.writePlain("%s", string(formatter.NotificationsToText(snap.Notifications, snap.UnreadCount)))
}

// NotifyHistory prints the generation audit trail, newest first.
func (r *Runner) NotifyHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	records, err := r.client.ProcessHistory(ctx, int(cmd.Int("limit")), int(cmd.Int("skip")))
	if err != nil {
		return fmt.Errorf("failed to load process history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	return r.writePlain("%s", string(formatter.ProcessHistoryToText(records)))
}

// NotifyRead acknowledges one notification.
func (r *Runner) NotifyRead(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}

	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	if err := r.feed.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("failed to mark notification: %w", err)
	}
	r.writePlain("✓ Notificação %s lida\n", id)
	return nil
}
