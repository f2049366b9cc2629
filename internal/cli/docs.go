package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage the document corpus",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Run:   runDocsList,
	}

	rmCmd := &cobra.Command{
		Use:   "rm [document-id]",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		Run:   runDocsRm,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the corpus",
		Run:   runDocsClear,
	}

	docsCmd.AddCommand(listCmd, rmCmd, clearCmd)
	RootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	docs, err := s.ListDocuments(cmd.Context())
	if err != nil {
		exitErr("list documents", err)
	}

	if formatFlag == "json" {
		if docs == nil {
			fmt.Println("[]")
			return
		}
		b, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(b))
		return
	}

	if len(docs) == 0 {
		fmt.Println("no documents")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %-30s  %d chunks  %s\n",
			d.ID, d.Filename, d.ChunkCount, d.UploadTime.Format("2006-01-02 15:04"))
	}
}

func runDocsRm(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.DeleteDocument(cmd.Context(), args[0]); err != nil {
		exitErr("delete document", err)
	}
	fmt.Printf("deleted %s\n", args[0])
}

func runDocsClear(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Clear(cmd.Context()); err != nil {
		exitErr("clear corpus", err)
	}
	fmt.Println("corpus cleared")
}
