// package formatter provides functions to export library and bookkeeping data
// to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alquimista/studio/internal/finance"
	"github.com/alquimista/studio/internal/models"
)

// FormatCreatedAt renders the backend's unix-seconds timestamp as a local
// date. Zero values render as a dash so tables stay aligned.
func FormatCreatedAt(unixSeconds float64) string {
	if unixSeconds == 0 {
		return "-"
	}
	return time.Unix(int64(unixSeconds), 0).Format("2006-01-02 15:04")
}

// MusicsToCSV converts a music collection to CSV with columns: ID, Name,
// Status, Genre, URL, CreatedAt.
func MusicsToCSV(musics []models.Music) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Status", "Genre", "URL", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range musics {
		record := []string{
			m.ID,
			m.MusicName,
			m.Status,
			m.Genre,
			m.MusicURL,
			FormatCreatedAt(m.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MusicsToMarkdown converts a music collection to a Markdown listing.
func MusicsToMarkdown(owner string, musics []models.Music) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Músicas de %s\n\n", owner))
	buf.WriteString(fmt.Sprintf("**Total**: %d\n\n", len(musics)))

	for i, m := range musics {
		genrePart := ""
		if m.Genre != "" {
			genrePart = fmt.Sprintf(" (%s)", m.Genre)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s — %s [%s]\n", i+1, m.MusicName, genrePart, m.Status, FormatCreatedAt(m.CreatedAt)))
	}

	return buf.Bytes()
}

// MusicsToText converts a music collection to plain text.
func MusicsToText(musics []models.Music) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Músicas: %d\n\n", len(musics)))
	for i, m := range musics {
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, m.MusicName, m.Status))
	}

	return buf.Bytes()
}

// MusicsToJSON renders the collection as indented JSON.
func MusicsToJSON(musics []models.Music) ([]byte, error) {
	data, err := json.MarshalIndent(musics, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal musics: %w", err)
	}
	return data, nil
}

// NotificationsToText renders the feed for terminal display, unread entries
// marked with a bullet.
func NotificationsToText(notifications []models.Notification, unread int) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Notificações: %d (%d não lidas)\n\n", len(notifications), unread))
	for _, n := range notifications {
		marker := " "
		if !n.Read {
			marker = "•"
		}
		buf.WriteString(fmt.Sprintf("%s [%s] %s: %s\n", marker, n.ID, n.Title, n.Message))
	}

	return buf.Bytes()
}

// ProcessHistoryToText renders the generation audit trail, newest first as
// the backend returns it.
func ProcessHistoryToText(records []models.ProcessRecord) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Histórico de processos: %d\n\n", len(records)))
	for _, rec := range records {
		line := fmt.Sprintf("[%s] %s %s/%s", FormatCreatedAt(rec.Timestamp), rec.ProcessID, rec.Step, rec.Status)
		if rec.Message != "" {
			line += ": " + rec.Message
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes()
}

// FinanceSummaryToText renders the bookkeeping panel: one line per machine
// with its net total, then the aggregate split.
func FinanceSummaryToText(machines []models.Machine) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Máquinas: %d\n\n", len(machines)))
	for i, m := range machines {
		buf.WriteString(fmt.Sprintf("%d. %s — total R$ %s\n", i+1, m.Name, formatMoney(finance.MachineTotal(m))))
	}

	totals := finance.GlobalTotals(machines)
	buf.WriteString(fmt.Sprintf("\nReceita:  R$ %s\n", formatMoney(totals.Revenue+totals.Labor)))
	buf.WriteString(fmt.Sprintf("Despesas: R$ %s\n", formatMoney(totals.Expenses)))
	buf.WriteString(fmt.Sprintf("Lucro:    R$ %s\n", formatMoney(totals.Profit)))
	buf.WriteString(fmt.Sprintf("Mãe (70%%):     R$ %s\n", formatMoney(totals.MotherShare)))
	buf.WriteString(fmt.Sprintf("Você (30%%):    R$ %s\n", formatMoney(totals.PartnerShare)))

	return buf.Bytes()
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSVExport writes the collection as {base}_musics.csv. Defaults the
// base filename to the owner id.
func WriteCSVExport(owner string, musics []models.Music, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = owner
	}

	csvData, err := MusicsToCSV(musics)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	file := baseFilepath + "_musics.csv"
	if err := os.WriteFile(file, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return file, nil
}

// WriteMarkdownExport writes the collection as {base}.md.
func WriteMarkdownExport(owner string, musics []models.Music, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = owner
	}

	file := baseFilepath + ".md"
	if err := os.WriteFile(file, MusicsToMarkdown(owner, musics), 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return file, nil
}
