package main

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/prompt"
	"github.com/xhad/docchat/pkg/settings"
)

var (
	chatModel       string
	chatWithHistory bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the stored documents in the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to use for this session")
	chatCmd.Flags().BoolVar(&chatWithHistory, "history", true, "Send recent turns with every message")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var override *settings.ChatConfig
	if chatModel != "" {
		override = &settings.ChatConfig{Model: chatModel}
	}

	color.Cyan("\nChat with your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []prompt.Turn
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		stop := startSpinner("Thinking...")
		result := a.orchestrator.Chat(ctx, chat.Request{
			Message:        query,
			Config:         override,
			IncludeHistory: chatWithHistory,
			History:        history,
		})

		stop()

		if len(result.Items) > 0 {
			color.Blue("\n(%d excerpt(s) from the documents)", len(result.Items))
		}
		if result.Reply.Status == llm.Degraded {
			color.Yellow("\n[%s]", result.Reply.Reason)
		}
		assistantPrompt("\nAssistant: %s\n", result.Reply.Text)

		history = append(history,
			prompt.Turn{Role: prompt.RoleUser, Content: query},
			prompt.Turn{Role: prompt.RoleAssistant, Content: result.Reply.Text})
	}

	return scanner.Err()
}

// startSpinner animates until the returned stop func is called.
func startSpinner(description string) (stop func()) {
	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = spinner.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		_ = spinner.Finish()
	}
}
