package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docchat/internal/tui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat over the corpus",
		Long:  "Start an interactive session. Each question runs a full retrieval-augmented turn.",
		Run:   runChat,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (default: a fresh one)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	eng, err := buildEngine(cmd.Context(), cfg, s)
	if err != nil {
		exitErr("build engine", err)
	}

	m := tui.New(eng, sessionID)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		exitErr("chat", err)
	}
}
