// rlmctl is the operator CLI for a running rlmengine instance. It submits
// a task, renders the live event stream (Bubble Tea TUI by default, plain
// colored lines under --no-tui), and gates sensitive-action confirmations
// interactively. Grounded on the teacher's cmd/alex/interactive.go
// (readline prompt) and cmd/alex/tui_bubbletea.go (Bubble Tea entrypoint),
// with promptui standing in for the teacher's y/n confirmation prompts.
package main

import (
	"fmt"
	"os"

	"github.com/chzyer/readline"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var addr string
	var noTUI bool
	var maxIterations, maxSubCalls int

	root := &cobra.Command{
		Use:   "rlmctl [message]",
		Short: "Submit and observe a task running on rlmengine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := ""
			if len(args) == 1 {
				message = args[0]
			}
			return runSubmit(addr, message, maxIterations, maxSubCalls, noTUI)
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8420", "rlmengine base URL")
	root.Flags().BoolVar(&noTUI, "no-tui", false, "render plain colored lines instead of the Bubble Tea TUI")
	root.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap override [1,100]")
	root.Flags().IntVar(&maxSubCalls, "max-sub-calls", -1, "sub-call cap override [0,200]; negative keeps the engine default")

	root.AddCommand(newCancelCommand(&addr), newStateCommand(&addr), newConfirmCommand(&addr))
	return root
}

// runSubmit prompts for a message when none was given on the command line,
// submits the task, and streams its events until completion.
func runSubmit(addr, message string, maxIterations, maxSubCalls int, noTUI bool) error {
	cli := newClient(addr)

	if message == "" {
		var err error
		message, err = promptForMessage()
		if err != nil {
			return err
		}
	}

	sub, err := cli.submit(message, maxIterations, maxSubCalls)
	if err != nil {
		return err
	}
	fmt.Printf("task %s submitted (%s)\n", sub.TaskID, sub.Status)

	if noTUI {
		return watchPlain(cli)
	}
	return watchTUI(cli)
}

// promptForMessage reads the task goal from stdin via a readline prompt,
// the same interactive-input shape as the teacher's cmd/alex/interactive.go.
func promptForMessage() (string, error) {
	rl, err := readline.New("rlm> ")
	if err != nil {
		return "", fmt.Errorf("rlmctl: starting prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", fmt.Errorf("rlmctl: reading task message: %w", err)
	}
	return line, nil
}

func watchPlain(cli *client) error {
	printer := newPlainPrinter()
	stop := make(chan struct{})
	return cli.watch(printer.onEvent, stop)
}

func watchTUI(cli *client) error {
	events := make(chan wireEvent, 64)
	done := make(chan error, 1)
	stop := make(chan struct{})

	go func() {
		done <- cli.watch(func(ev wireEvent) { events <- ev }, stop)
		close(events)
	}()

	m := newTUIModel(cli, events, done)
	p := tea.NewProgram(m)
	_, err := p.Run()
	close(stop)
	return err
}

func newCancelCommand(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the task currently running on the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*addr).cancel()
		},
	}
}

func newStateCommand(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the engine's current task state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(*addr).state()
			if err != nil {
				return err
			}
			fmt.Printf("task %s: %s (%d iterations)\n", st.TaskID, st.Status, st.Iterations)
			if st.Final != nil {
				fmt.Printf("final: %v\n", st.Final)
			}
			return nil
		},
	}
}

// newConfirmCommand interactively gates a pending sensitive action with a
// promptui yes/no prompt, mirroring spec.md §5's confirmation-gate contract.
func newConfirmCommand(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Approve or deny the engine's pending sensitive-action confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := promptui.Select{
				Label: "Approve pending action?",
				Items: []string{"approve", "deny"},
			}
			_, choice, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("rlmctl: confirmation prompt: %w", err)
			}
			return newClient(*addr).confirm(choice == "approve")
		},
	}
}
