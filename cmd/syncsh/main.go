// Command syncsh is an interactive shell over a datastore manager
// directory: open datastores, read and write documents, inspect revision
// trees and conflicts.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/kartikbazzad/syncdb/internal/config"
	"github.com/kartikbazzad/syncdb/internal/datastore"
	"github.com/kartikbazzad/syncdb/internal/logger"
	"github.com/kartikbazzad/syncdb/internal/types"
)

const prompt = "syncdb> "

func main() {
	dataDir := flag.String("data", "./data", "datastore manager root directory")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.Log.Level))

	manager, err := datastore.NewManager(cfg.DataDir, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open manager: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(os.TempDir(), ".syncsh_history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("syncdb shell — data dir %s\n", cfg.DataDir)
	fmt.Printf("Type '.help' for commands.\n\n")

	sh := &shell{manager: manager}

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == ".exit" || input == ".quit" {
			return
		}
		sh.execute(input)
	}
}

type shell struct {
	manager *datastore.Manager
	current *datastore.Datastore
}

func (s *shell) execute(input string) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ".help":
		s.help()
	case ".dbs":
		s.listDatastores()
	case ".open":
		s.open(args)
	case ".drop":
		s.drop(args)
	case ".docs":
		s.docs()
	case ".create":
		s.create(input, args)
	case ".read":
		s.read(args)
	case ".update":
		s.update(input, args)
	case ".delete":
		s.delete(args)
	case ".revs":
		s.revs(args)
	case ".conflicts":
		s.conflicts()
	default:
		fmt.Printf("Unknown command %q. Type '.help'.\n", cmd)
	}
}

func (s *shell) help() {
	fmt.Print(`Commands:
  .dbs                         list datastores
  .open <name>                 open (or create) a datastore
  .drop <name>                 delete a datastore and its files
  .docs                        list document ids
  .create <doc> <json>         create a document
  .read <doc>                  read the winning revision
  .update <doc> <rev> <json>   update a document
  .delete <doc> <rev>          delete a document
  .revs <doc>                  show the revision tree leaves
  .conflicts                   list conflicted documents
  .exit                        quit
`)
}

func (s *shell) requireDB() bool {
	if s.current == nil {
		fmt.Println("No datastore open. Use '.open <name>'.")
		return false
	}
	return true
}

func (s *shell) listDatastores() {
	names, err := s.manager.ListDatastores()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func (s *shell) open(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: .open <name>")
		return
	}
	ds, err := s.manager.Open(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.current = ds
	fmt.Printf("Opened %s\n", ds.Name())
}

func (s *shell) drop(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: .drop <name>")
		return
	}
	if s.current != nil && s.current.Name() == args[0] {
		s.current = nil
	}
	if err := s.manager.Delete(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted %s\n", args[0])
}

func (s *shell) docs() {
	if !s.requireDB() {
		return
	}
	ids, err := s.current.ListDocumentIDs()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

// rawPayload returns everything after the first n fields, preserving
// whitespace inside the JSON payload.
func rawPayload(input string, n int) string {
	rest := input
	for i := 0; i < n; i++ {
		rest = strings.TrimLeft(rest, " \t")
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = rest[idx:]
	}
	return strings.TrimSpace(rest)
}

func (s *shell) create(input string, args []string) {
	if !s.requireDB() {
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: .create <doc> <json>")
		return
	}
	body := rawPayload(input, 2)
	rev, err := s.current.CreateDocument(args[0], types.NewDocumentBody([]byte(body)))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s %s\n", rev.DocID, rev.RevID)
}

func (s *shell) read(args []string) {
	if !s.requireDB() {
		return
	}
	if len(args) != 1 {
		fmt.Println("Usage: .read <doc>")
		return
	}
	rev, err := s.current.GetDocument(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if rev.Deleted {
		fmt.Printf("%s %s (deleted)\n", rev.DocID, rev.RevID)
		return
	}
	fmt.Printf("%s %s %s\n", rev.DocID, rev.RevID, rev.Body.Bytes())
}

func (s *shell) update(input string, args []string) {
	if !s.requireDB() {
		return
	}
	if len(args) < 3 {
		fmt.Println("Usage: .update <doc> <rev> <json>")
		return
	}
	body := rawPayload(input, 3)
	rev, err := s.current.UpdateDocument(args[0], args[1], types.NewDocumentBody([]byte(body)))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s %s\n", rev.DocID, rev.RevID)
}

func (s *shell) delete(args []string) {
	if !s.requireDB() {
		return
	}
	if len(args) != 2 {
		fmt.Println("Usage: .delete <doc> <rev>")
		return
	}
	rev, err := s.current.DeleteDocument(args[0], args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s %s (deleted)\n", rev.DocID, rev.RevID)
}

func (s *shell) revs(args []string) {
	if !s.requireDB() {
		return
	}
	if len(args) != 1 {
		fmt.Println("Usage: .revs <doc>")
		return
	}
	tree, err := s.current.GetDocumentTree(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	winner, err := tree.CurrentRevision()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, leaf := range tree.Leafs() {
		marker := " "
		if leaf.RevID == winner.RevID {
			marker = "*"
		}
		status := ""
		if leaf.Deleted {
			status = " (deleted)"
		}
		path, _ := tree.Path(leaf.Sequence)
		fmt.Printf("%s %s%s  path: %s\n", marker, leaf.RevID, status, strings.Join(path, " <- "))
	}
}

func (s *shell) conflicts() {
	if !s.requireDB() {
		return
	}
	ids, err := s.current.GetConflictedDocuments()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(ids) == 0 {
		fmt.Println("No conflicts.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}
