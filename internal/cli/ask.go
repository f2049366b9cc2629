package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question over the corpus",
		Long:  "Run one retrieval-augmented turn: classify, retrieve, assemble, generate.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (default: a fresh one per invocation)")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	question := strings.Join(args, " ")

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

	ans, err := eng.Ask(cmd.Context(), sessionID, question)
	if err != nil {
		exitErr("ask", err)
	}

	if formatFlag == "json" {
		b, _ := json.MarshalIndent(ans, "", "  ")
		fmt.Println(string(b))
		return
	}

	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(ans.Sources, ", "))
	}
	fmt.Printf("Session: %s  Intent: %s  Confidence: %.2f\n", sessionID, ans.Intent, ans.Confidence)
}
