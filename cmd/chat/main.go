// docschat is a terminal client for the docschat chat API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	flag "github.com/spf13/pflag"

	"github.com/docschat/docschat/internal/catalog"
	"github.com/docschat/docschat/internal/chat"
)

func main() {
	serverURL := flag.String("server", "http://localhost:3001", "base URL of the chat API")
	providerID := flag.String("provider", "", "provider to use (defaults to the server's default)")
	modelID := flag.String("model", "", "model to use (defaults to the provider's default)")
	instructions := flag.String("instructions", "", "system prompt sent ahead of the conversation")
	plain := flag.Bool("plain", false, "print replies as plain text instead of rendered markdown")
	flag.Parse()

	if err := run(*serverURL, *providerID, *modelID, *instructions, *plain); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, providerID, modelID, instructions string, plain bool) error {
	client := chat.NewClient(chat.WithBaseURL(serverURL))

	ctx := context.Background()
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", serverURL, err)
	}

	providers, err := client.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("fetch provider catalog: %w", err)
	}
	var defaultSel catalog.Selection
	if providers.DefaultSelection != nil {
		defaultSel = *providers.DefaultSelection
	}
	cat, err := catalog.New(providers.Providers, defaultSel)
	if err != nil {
		return fmt.Errorf("invalid provider catalog: %w", err)
	}

	var opts []chat.SessionOption
	if instructions != "" {
		opts = append(opts, chat.WithInstructions(instructions))
	}
	session := chat.NewSession(client, cat, opts...)

	if providerID != "" {
		if modelID != "" {
			err = session.SetSelection(providerID, modelID)
		} else {
			err = session.SelectProvider(providerID)
		}
		if err != nil {
			return fmt.Errorf("select %s/%s: %w", providerID, modelID, err)
		}
	} else if modelID != "" {
		if err := session.SelectModel(modelID); err != nil {
			return fmt.Errorf("select model %s: %w", modelID, err)
		}
	}

	var renderer *glamour.TermRenderer
	if !plain {
		renderer, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "docschat> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	sel := session.Selection()
	fmt.Println("docschat - terminal chat client")
	fmt.Printf("Provider: %s | Model: %s | Server: %s\n", sel.ProviderID, sel.ModelID, serverURL)
	fmt.Println("Type /help for commands, /quit to exit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(session, cat, line); quit {
				return nil
			}
			continue
		}

		send(session, renderer, line)
	}
}

// send dispatches one message. Streamed replies print as raw deltas;
// non-streamed replies are rendered as markdown.
func send(session *chat.Session, renderer *glamour.TermRenderer, text string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printed := 0
	turn, err := session.Send(ctx, text, func(accumulated string) {
		fmt.Print(accumulated[printed:])
		printed = len(accumulated)
	})
	if printed > 0 {
		fmt.Println()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("(stopped)")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}

	if printed > 0 {
		return
	}
	if renderer != nil {
		if out, rerr := renderer.Render(turn.Content); rerr == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(turn.Content)
}

func runCommand(session *chat.Session, cat *catalog.Store, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(`Commands:
  /providers          list available providers
  /models             list models for the current provider
  /provider <id>      switch provider
  /model <id>         switch model
  /clear              clear the conversation
  /quit               exit`)
	case "/providers":
		for _, p := range cat.EnabledProviders() {
			marker := " "
			if p.ID == session.Selection().ProviderID {
				marker = "*"
			}
			fmt.Printf("%s %s - %s\n", marker, p.ID, p.Name)
		}
	case "/models":
		models, err := cat.ModelsFor(session.Selection().ProviderID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		for _, m := range models {
			marker := " "
			if m.ID == session.Selection().ModelID {
				marker = "*"
			}
			fmt.Printf("%s %s - %s\n", marker, m.ID, m.Name)
		}
	case "/provider":
		if len(args) != 1 {
			fmt.Println("Usage: /provider <id>")
			break
		}
		if err := session.SelectProvider(args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		sel := session.Selection()
		fmt.Printf("Switched to %s/%s\n", sel.ProviderID, sel.ModelID)
	case "/model":
		if len(args) != 1 {
			fmt.Println("Usage: /model <id>")
			break
		}
		if err := session.SelectModel(args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("Switched to model %s\n", args[0])
	case "/clear":
		session.Clear()
		fmt.Println("Conversation cleared.")
	default:
		fmt.Printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := home + "/.docschat"
	_ = os.MkdirAll(dir, 0755)
	return dir + "/history"
}
