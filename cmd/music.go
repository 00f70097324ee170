package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/alquimista/studio/internal/formatter"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/shared"
	"github.com/alquimista/studio/internal/tracker"
	"github.com/urfave/cli/v3"
)

// MusicGenerate submits a generation request and, with --watch, follows the
// realtime progress until a terminal event or the stall watchdog fires.
func (r *Runner) MusicGenerate(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	req := models.GenerationRequest{
		MusicName:   cmd.String("name"),
		Description: cmd.String("description"),
		Genre:       cmd.String("genre"),
		Rhythm:      cmd.String("rhythm"),
		Instruments: cmd.String("instruments"),
		Lyrics:      cmd.String("lyrics"),
		VoiceType:   cmd.String("voice-type"),
		StudioType:  cmd.String("studio-type"),
		VoicePath:   cmd.String("voice-sample"),
	}

	r.tracker.Submitted(req.MusicName)
	message, err := r.client.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	r.writePlain("✓ %s\n", message)

	if !cmd.Bool("watch") {
		return nil
	}
	return r.followGeneration(ctx)
}

// followGeneration prints tracker transitions until a terminal phase.
func (r *Runner) followGeneration(ctx context.Context) error {
	changes := make(chan struct{}, 8)
	r.tracker.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer r.tracker.OnChange(nil)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	for {
		snap := r.tracker.Snapshot()
		switch snap.Phase {
		case tracker.PhaseGenerating:
			if p := snap.Progress; p != nil {
				r.writePlain("  %3.0f%%  %s  %s\n", p.Percent, p.Step, p.Message)
			}
		case tracker.PhaseCompleted, tracker.PhaseFailed:
			if alert := r.tracker.TakeAlert(); alert != nil {
				if alert.Kind == tracker.AlertError {
					return fmt.Errorf("%s: %s", alert.Title, alert.Message)
				}
				r.writePlain("✓ %s — %s\n", alert.Title, alert.Message)
			}
			return nil
		}

		select {
		case <-changes:
		case <-ctx.Done():
			r.writePlainln("interrompido, a geração continua no estúdio")
			return nil
		}
	}
}

// MusicList prints or exports the signed-in user's collection.
func (r *Runner) MusicList(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	snap := r.library.Snapshot()
	if snap.Err != nil {
		return fmt.Errorf("failed to load library: %w", snap.Err)
	}
	user, _ := r.session.Current()

	if cmd.Bool("json") {
		return r.writeJSON(snap.Musics, cmd.Bool("pretty"))
	}

	output := cmd.String("output")
	switch cmd.String("format") {
	case "csv":
		if output != "" {
			file, err := formatter.WriteCSVExport(user.Username, snap.Musics, output)
			if err != nil {
				return err
			}
			r.writePlain("✓ Exportado para %s\n", file)
			return nil
		}
		data, err := formatter.MusicsToCSV(snap.Musics)
		if err != nil {
			return err
		}
		return r.writePlain("%s", string(data))
	case "markdown":
		if output != "" {
			file, err := formatter.WriteMarkdownExport(user.Username, snap.Musics, output)
			if err != nil {
				return err
			}
			r.writePlain("✓ Exportado para %s\n", file)
			return nil
		}
		return r.writePlain("%s", string(formatter.MusicsToMarkdown(user.Username, snap.Musics)))
	case "text":
		return r.writePlain("%s", string(formatter.MusicsToText(snap.Musics)))
	default:
		return fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, cmd.String("format"))
	}
}

// MusicDownload saves one generated track to disk. The default filename
// follows the track name, the way the web player names its downloads.
func (r *Runner) MusicDownload(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: music id", shared.ErrMissingArgument)
	}

	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	snap := r.library.Snapshot()
	if snap.Err != nil {
		return fmt.Errorf("failed to load library: %w", snap.Err)
	}

	var music *models.Music
	for i := range snap.Musics {
		if snap.Musics[i].ID == id {
			music = &snap.Musics[i]
			break
		}
	}
	if music == nil {
		return fmt.Errorf("%w: music %s", shared.ErrMusicNotFound, id)
	}
	if music.MusicURL == "" {
		return fmt.Errorf("%w: %s has no audio yet (status %s)", shared.ErrInvalidInput, music.MusicName, music.Status)
	}

	path := cmd.String("output")
	if path == "" {
		path = music.MusicName + ".mp3"
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	written, err := r.client.Download(ctx, music.MusicURL, file)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	r.writePlain("✓ %s salvo em %s (%d bytes)\n", music.MusicName, path, written)
	return nil
}

// MusicWatch streams decoded envelopes to stdout until interrupted.
func (r *Runner) MusicWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	events := []string{
		realtime.EventMusicProgress, realtime.EventMusicCompleted, realtime.EventMusicFailed,
		realtime.EventMusicError, realtime.EventMusicRequested, realtime.EventMusicDeleted,
		realtime.EventNewNotification, realtime.EventConnect, realtime.EventDisconnect,
	}
	for _, event := range events {
		event := event
		sub := r.bus.Subscribe(event, func(data json.RawMessage) {
			r.writePlain("%s  %s\n", event, string(data))
		})
		defer sub.Cancel()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.writePlain("Escutando eventos do estúdio (ctrl+c para sair)...\n")
	<-ctx.Done()
	return nil
}
