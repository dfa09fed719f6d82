//go:build integration
// +build integration

package scripts

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/nochan-bot/nochan/nochan/conversation"
	"github.com/nochan-bot/nochan/nochan/db"
)

func must(err error, msg string) {
	if err != nil {
		log.Fatalf("%s: %v", msg, err)
	}
}

// RunSmokeStore exercises the libsql-backed conversation store end to end
// against a throwaway database: migrate, create, token round trip, archive.
func RunSmokeStore() {
	fmt.Println("Smoke test: libsql conversation store")
	dir, err := os.MkdirTemp("", "nochan-smoke")
	must(err, "tempdir")
	defer os.RemoveAll(dir)

	dbconn, err := db.Connect(filepath.Join(dir, "smoke.db"))
	must(err, "connect")
	defer dbconn.Close()

	ctx := context.Background()
	store := conversation.NewStore(dbconn, zerolog.Nop())

	conv, err := store.Create(ctx, "private:1")
	must(err, "create")
	fmt.Printf("created conversation %s\n", conv.ID)

	must(store.SetContinuationToken(ctx, conv.ID, "ses_smoke"), "set token")

	got, err := store.GetActive(ctx, "private:1")
	must(err, "get active")
	if got == nil || got.ContinuationToken != "ses_smoke" {
		log.Fatalf("token round trip failed: %+v", got)
	}

	archived, err := store.ArchiveActive(ctx, "private:1")
	must(err, "archive")
	if !archived {
		log.Fatal("archive reported no rows changed")
	}

	fmt.Println("smoke test OK")
}
