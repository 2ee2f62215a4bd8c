package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Row is one key/value line of a details table.
type Row struct {
	Key   string
	Value string
}

// DetailsTable renders key/value rows using lipgloss/table
type DetailsTable struct {
	title string
	rows  []Row
}

// NewDetailsTable creates a table with a header row of title and "Value".
func NewDetailsTable(title string, rows ...Row) *DetailsTable {
	return &DetailsTable{title: title, rows: rows}
}

// Add appends a row.
func (t *DetailsTable) Add(key, value string) *DetailsTable {
	t.rows = append(t.rows, Row{Key: key, Value: value})
	return t
}

// View renders the table as a string
func (t *DetailsTable) View() string {
	rows := make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, []string{r.Key, TruncateString(r.Value, 60)})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(t.title, "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// Render outputs the table directly to stdout
func (t *DetailsTable) Render() {
	fmt.Println(t.View())
}

// Result describes one finished execution for display.
type Result struct {
	Language string
	Remote   bool
	Output   string
	Err      error
	Elapsed  time.Duration
}

// ResultView renders a header line and the framed output or error.
func ResultView(r Result) string {
	where := IconRun + " local"
	if r.Remote {
		where = IconRemote + " remote"
	}

	status := SuccessStyle.Render(IconSuccess)
	if r.Err != nil {
		status = ErrorStyle.Render(IconError)
	}

	header := fmt.Sprintf("%s %s %s %s",
		status,
		LanguageStyle.Render(r.Language),
		MutedStyle.Render(where),
		MutedStyle.Render(IconTime+" "+FormatDuration(r.Elapsed)),
	)

	if r.Err != nil {
		return header + "\n" + ErrorOutputStyle.Render(r.Err.Error())
	}
	return header + "\n" + OutputStyle.Render(strings.TrimRight(r.Output, "\n"))
}

// RenderResult prints ResultView to stdout.
func RenderResult(r Result) {
	fmt.Println(ResultView(r))
}

type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:    %s\n%s Room Link:  %s\n\n%s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
		MutedStyle.Render("Share the ID or link with your peer: warprun join "+r.RoomID),
	)

	return SuccessBoxStyle.Render(content)
}

// Render outputs the box directly to stdout
func (r *RoomInfo) Render() {
	fmt.Println(r.View())
}

// CodeView renders a code buffer with line numbers.
func CodeView(code string) string {
	if strings.TrimSpace(code) == "" {
		return MutedStyle.Render("(buffer is empty)")
	}

	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%s %s\n", MutedStyle.Render(fmt.Sprintf("%*d", width, i+1)), line)
	}
	return CodeStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RequestNotice summarizes an inbound request from the peer.
func RequestNotice(language, code string) string {
	return fmt.Sprintf("%s Peer is running %s: %s",
		IconPeer,
		LanguageStyle.Render(language),
		MutedStyle.Render(TruncateString(firstLine(code), 50)),
	)
}
