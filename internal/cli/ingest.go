package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docchat/internal/chunker"
	"docchat/internal/logger"
	"docchat/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Add documents to the corpus",
		Long:  "Chunk, embed, and store plain text or markdown files. Globs are expanded.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngest,
	}

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
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

	opts := chunker.Options{TargetSize: cfg.Chunker.TargetSize, MaxSize: cfg.Chunker.MaxSize}
	ctx := cmd.Context()

	var paths []string
	for _, a := range args {
		matches, _ := filepath.Glob(a)
		if matches == nil {
			matches = []string{a}
		}
		paths = append(paths, matches...)
	}

	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			logger.Warn("skipping %s: unsupported extension", path)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			exitErr("read "+path, err)
		}

		pieces := chunker.Split(string(data), opts)
		if len(pieces) == 0 {
			logger.Warn("skipping %s: empty file", path)
			continue
		}

		doc := model.Document{
			ID:         s.NewID(),
			Filename:   filepath.Base(path),
			UploadTime: time.Now().UTC(),
		}
		chunks := make([]model.Chunk, len(pieces))
		for i, p := range pieces {
			vec, err := emb.Embed(ctx, p.Text)
			if err != nil {
				exitErr("embed "+path, err)
			}
			chunks[i] = model.Chunk{
				Text:        p.Text,
				Embedding:   vec,
				StartOffset: p.Start,
				EndOffset:   p.End,
			}
		}

		if err := s.AddDocument(ctx, doc, chunks); err != nil {
			exitErr("store "+path, err)
		}

		doc.ChunkCount = len(chunks)
		if formatFlag == "json" {
			b, _ := json.Marshal(doc)
			fmt.Println(string(b))
		} else {
			fmt.Printf("ingested %s: %d chunks (id %s)\n", doc.Filename, doc.ChunkCount, doc.ID)
		}
	}
}
