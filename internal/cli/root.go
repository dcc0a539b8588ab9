// Package cli implements the engram CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdb/engram/internal/coordinator"
	"github.com/engramdb/engram/internal/embedding"
	"github.com/engramdb/engram/internal/index"
	"github.com/engramdb/engram/internal/retrieval"
	"github.com/engramdb/engram/internal/store"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Hierarchical memory for AI agents",
	Long:  "Tiered agent memory: short-term working context, long-term knowledge, hybrid recall. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $ENGRAM_DB or ~/.engram/engram.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("ENGRAM_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram", "engram.db")
}

func newLogger() *zap.Logger {
	if os.Getenv("ENGRAM_LOG") == "debug" {
		log, err := zap.NewDevelopment()
		if err == nil {
			return log
		}
	}
	return zap.NewNop()
}

func newEmbedder(log *zap.Logger) embedding.Embedder {
	emb := embedding.NewFromEnv()
	if emb == nil {
		return nil
	}
	cached, err := embedding.NewCached(emb)
	if err != nil {
		log.Warn("embed cache unavailable, using provider directly", zap.Error(err))
		return emb
	}
	return cached
}

// openCoordinator wires the full stack: embedder, optional vector
// index, store, retrieval engine, and the coordinator on top.
func openCoordinator() (*coordinator.Coordinator, *store.SQLiteStore, error) {
	log := newLogger()
	emb := newEmbedder(log)

	var idx index.VectorIndex
	if os.Getenv("ENGRAM_INDEX") == "chromem" {
		ci, err := index.NewChromemIndex()
		if err != nil {
			log.Warn("vector index unavailable, using scan fallback", zap.Error(err))
		} else {
			idx = ci
		}
	}

	s, err := store.NewSQLiteStore(getDBPath(), store.Options{
		Embedder: emb,
		Index:    idx,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}

	engine := retrieval.NewEngine(s, emb, retrieval.DefaultOptions(), log)
	return coordinator.New(s, engine, coordinator.DefaultConfig(), log), s, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
