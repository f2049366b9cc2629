package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docchat/internal/model"
	"docchat/internal/retriever"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Inspect raw hybrid retrieval results",
		Long:  "Run the hybrid retriever without generation and print the ranked set.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("intent", "i", "general", "Retrieval intent: summary, detail, follow_up, general")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	intentFlag, _ := cmd.Flags().GetString("intent")
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	emb, err := newEmbedder(cfg)
	if err != nil {
		exitErr("embedder", err)
	}
	ret := retriever.New(s, emb, retriever.Config{
		VectorWeight:  cfg.Retrieval.VectorWeight,
		LexicalWeight: cfg.Retrieval.LexicalWeight,
		SummaryTopK:   cfg.Retrieval.SummaryTopK,
		DetailTopK:    cfg.Retrieval.DetailTopK,
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
	})

	set, err := ret.Retrieve(cmd.Context(), query, model.Intent(intentFlag))
	if err != nil {
		exitErr("search", err)
	}

	if len(set) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(set, "", "  ")
	fmt.Println(string(b))
}
