package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"procurement-engine/internal/adapters/cli"
	"procurement-engine/internal/app"
)

var errExit = errors.New("exit")

// Run starts the interactive REPL loop.
// Slash commands map onto the one-shot CLI; /amend and /merge open guided sessions.
func Run(ctx context.Context, svc app.ApplicationService, opts cli.Options, reader *bufio.Reader) {
	fmt.Println("Purchase Order Console")
	fmt.Println("Use /help for commands.")
	fmt.Println(strings.Repeat("-", 70))

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}
		if err := dispatch(ctx, svc, opts, reader, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, svc app.ApplicationService, opts cli.Options, reader *bufio.Reader, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "amend":
		if len(args) < 1 {
			fmt.Println("Usage: /amend <po-id>")
			return nil
		}
		return handleAmend(ctx, reader, svc, args[0])

	case "merge":
		if len(args) < 1 {
			fmt.Println("Usage: /merge <target-id>")
			return nil
		}
		return handleMerge(ctx, reader, svc, args[0])

	case "help", "h":
		printHelp()
		return nil

	case "exit", "quit", "e", "q":
		return errExit
	}
	return cli.Exec(ctx, svc, opts, append([]string{cmd}, args...))
}
