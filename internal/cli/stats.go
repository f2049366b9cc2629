package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := s.CorpusStats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	if formatFlag == "json" {
		b, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Printf("documents: %d\nchunks: %d\nsessions: %d\n", st.Documents, st.Chunks, st.Sessions)
}
