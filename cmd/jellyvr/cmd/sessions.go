package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending and authenticated sessions",
	Long: `List the sessions stored in the database.

Pairing secrets, access tokens and derived passwords are never shown.
Use --user to fuzzy-match on the Jellyfin username.`,
	RunE: runSessionsList,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)

	sessionsListCmd.Flags().Bool("json", false, "Output as JSON")
	sessionsListCmd.Flags().String("user", "", "Only show sessions whose username fuzzy-matches this value")
	sessionsListCmd.Flags().String("database", "", "Database DSN (defaults to the configured database)")
}

// sessionRow is the printable view of a session.
type sessionRow struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Username    string    `json:"username,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	PairingCode string    `json:"pairing_code,omitempty"`
	Playback    string    `json:"playback,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dsn, _ := cmd.Flags().GetString("database"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	user, _ := cmd.Flags().GetString("user")

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := repository.NewSessionRepository(db.DB).List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	rows := sessionRows(sessions, user, time.Now())

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	_, err = fmt.Fprintln(out, renderSessions(rows, isTerminal(out)))
	return err
}

// sessionRows converts sessions for display, keeping only those whose
// username fuzzy-matches user when it is set.
func sessionRows(sessions []*models.Session, user string, now time.Time) []sessionRow {
	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		row := sessionRow{
			ID:        s.ID.String(),
			Kind:      string(s.Kind),
			CreatedAt: s.CreatedAt,
		}
		switch st := s.State().(type) {
		case models.Pending:
			row.PairingCode = st.PairingCode
		case models.Authenticated:
			row.Username = st.Username
			row.UserID = st.UserID
			row.Playback = describePlayback(st.LastPlayback, now)
		}
		if user != "" && !fuzzy.MatchFold(user, row.Username) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func describePlayback(p *models.PlaybackState, now time.Time) string {
	if p == nil {
		return ""
	}
	position := time.Duration(p.PositionMs) * time.Millisecond
	state := "playing"
	if p.Paused {
		state = "paused"
	} else {
		position = time.Duration(p.Predict(now)) * time.Millisecond
	}
	if p.DurationMs > 0 {
		duration := time.Duration(p.DurationMs) * time.Millisecond
		return fmt.Sprintf("%s %s %s/%s", state, p.ItemID, position.Truncate(time.Second), duration.Truncate(time.Second))
	}
	return fmt.Sprintf("%s %s %s", state, p.ItemID, position.Truncate(time.Second))
}

func renderSessions(rows []sessionRow, styled bool) string {
	if len(rows) == 0 {
		return "No sessions."
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.ID, r.Kind, r.Username, r.UserID, r.PairingCode, r.Playback, r.CreatedAt.Format(time.DateTime)}
	}
	pending := func(row int) bool { return rows[row].Kind == string(models.SessionKindPending) }

	return renderTable([]string{"ID", "KIND", "USERNAME", "USER ID", "CODE", "PLAYBACK", "CREATED"}, cells, styled, pending)
}
