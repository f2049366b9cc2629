package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docchat/internal/memory"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show a session's recent turns",
		Run:   runHistory,
	}
	historyCmd.Flags().StringP("session", "s", "", "Session id (required)")
	historyCmd.Flags().IntP("limit", "l", 20, "Max turns")
	historyCmd.MarkFlagRequired("session")
	RootCmd.AddCommand(historyCmd)

	clearCmd := &cobra.Command{
		Use:   "clear-session",
		Short: "Delete a session and its history",
		Run:   runClearSession,
	}
	clearCmd.Flags().StringP("session", "s", "", "Session id (required)")
	clearCmd.MarkFlagRequired("session")
	RootCmd.AddCommand(clearCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	turns, err := s.RecentTurns(cmd.Context(), sessionID, limit)
	if err != nil {
		exitErr("history", err)
	}

	if formatFlag == "json" {
		if turns == nil {
			fmt.Println("[]")
			return
		}
		b, _ := json.MarshalIndent(turns, "", "  ")
		fmt.Println(string(b))
		return
	}

	if len(turns) == 0 {
		fmt.Println("no history")
		return
	}
	for _, t := range turns {
		fmt.Printf("[%s] (%s) Q: %s\n", t.Timestamp.Format("15:04:05"), t.Intent, t.Query)
		fmt.Printf("A: %s\n", t.Answer)
		if len(t.Sources) > 0 {
			fmt.Printf("Sources: %s\n", strings.Join(t.Sources, ", "))
		}
		fmt.Println()
	}
}

func runClearSession(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := memory.New(s).Clear(cmd.Context(), sessionID); err != nil {
		exitErr("clear session", err)
	}
	fmt.Printf("cleared session %s\n", sessionID)
}
