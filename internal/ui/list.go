package ui

import (
	"fmt"

	"github.com/alquimista/studio/internal/finance"
	"github.com/alquimista/studio/internal/formatter"
	"github.com/alquimista/studio/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = menuItem{}
	_ list.Item = musicItem{}
	_ list.Item = notificationItem{}
	_ list.Item = machineItem{}
)

// menuItem is one entry of the home menu.
type menuItem struct {
	title string
	desc  string
	view  ViewState
}

func (i menuItem) FilterValue() string { return i.title }
func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }

// musicItem wraps [models.Music] to implement [list.Item].
type musicItem struct {
	music models.Music
}

func (i musicItem) FilterValue() string { return i.music.MusicName }
func (i musicItem) Title() string       { return i.music.MusicName }
func (i musicItem) Description() string {
	desc := i.music.Status
	if i.music.Genre != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.music.Genre)
	}
	return fmt.Sprintf("%s • %s", desc, formatter.FormatCreatedAt(i.music.CreatedAt))
}

// notificationItem wraps [models.Notification] to implement [list.Item].
type notificationItem struct {
	notification models.Notification
}

func (i notificationItem) FilterValue() string { return i.notification.Title }
func (i notificationItem) Title() string {
	if i.notification.Read {
		return i.notification.Title
	}
	return "• " + i.notification.Title
}
func (i notificationItem) Description() string { return i.notification.Message }

// machineItem wraps [models.Machine] to implement [list.Item].
type machineItem struct {
	machine models.Machine
}

func (i machineItem) FilterValue() string { return i.machine.Name }
func (i machineItem) Title() string       { return i.machine.Name }
func (i machineItem) Description() string {
	return fmt.Sprintf("total R$ %.2f • %d serviços, %d despesas",
		finance.MachineTotal(i.machine), len(i.machine.Services), len(i.machine.Expenses))
}
