package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"coursechat/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("coursechat - ask about your course materials")
	fmt.Println("Type /help for commands, /exit to quit.")
	fmt.Println()

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if exit := handleCommand(ctx, a, input, &sessionID); exit {
				fmt.Println("Goodbye!")
				return nil
			}
			continue
		}

		result, err := a.Query(ctx, input, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		sessionID = result.SessionID

		fmt.Println(result.Answer)
		printSources(result)
		fmt.Println()
	}
}

// handleCommand processes slash commands; returns true to exit the loop.
func handleCommand(ctx context.Context, a *app.App, input string, sessionID *string) bool {
	switch input {
	case "/exit", "/quit":
		return true
	case "/new":
		*sessionID = ""
		fmt.Println("Started a new conversation.")
	case "/stats":
		stats, err := a.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		fmt.Printf("Indexed courses: %d\n", stats.TotalCourses)
		for _, t := range stats.CourseTitles {
			fmt.Printf("  - %s\n", t)
		}
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /new    start a new conversation")
		fmt.Println("  /stats  show indexed courses")
		fmt.Println("  /exit   quit")
	default:
		fmt.Printf("Unknown command %s (try /help)\n", input)
	}
	return false
}

func printSources(result *app.QueryResult) {
	if len(result.Sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, src := range result.Sources {
		if src.Link != "" {
			fmt.Printf("  - %s (%s)\n", src.Label(), src.Link)
		} else {
			fmt.Printf("  - %s\n", src.Label())
		}
	}
}
