package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Sync(ctx context.Context)
	Upload(ctx context.Context)
	CancelUpload()
	Queue(ctx context.Context)
	Add(ctx context.Context) error
	Sites(ctx context.Context)
	AddSite(ctx context.Context) error
	Recent(ctx context.Context)
	Clear(ctx context.Context) error
	Delete(ctx context.Context) error
}

// runREPL reads a line from the provided scanner, parses the first token as
// the command, and dispatches to methods on 'a'. Unknown commands are
// reported back to the user. The loop exits on scanner EOF or when the user
// types "exit" or "quit".
//
// Errors returned by command handlers are ignored here; handlers print their
// own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("tt> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn("Available commands: sync, upload, cancel, (q)ueue, add, delete, clear, sites, addsite, recent, exit")

		case "sync":
			a.Sync(ctx)

		case "upload":
			a.Upload(ctx)

		case "cancel":
			a.CancelUpload()

		case "q", "queue":
			a.Queue(ctx)

		case "add":
			_ = a.Add(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "clear":
			_ = a.Clear(ctx)

		case "sites":
			a.Sites(ctx)

		case "addsite":
			_ = a.AddSite(ctx)

		case "recent":
			a.Recent(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
