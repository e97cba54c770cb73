package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "进入交互会话，或单轮提问",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		defer a.Logger.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a.MCP.Start(ctx)
		a.Metrics.StartAutoExport(ctx, a.Config.MetricsExportInterval.Std(), a.Config.MetricsExportPath)
		go a.Monitor.Start(ctx, a.Config.MonitorInterval.Std())

		if len(args) == 1 {
			result := a.Engine.RunTurn(ctx, args[0])
			if result.Err != "" {
				fmt.Fprintln(os.Stderr, result.Response)
			}
			return nil
		}
		return runREPL(ctx, cancel, a)
	},
}

// runREPL is the interactive loop. Ctrl+C cancels in-flight work and exits
// with the conventional 130.
func runREPL(ctx context.Context, cancel context.CancelFunc, a *app) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		fmt.Println("\n👋 再见!")
		a.Logger.Close()
		os.Exit(130)
	}()

	fmt.Println("🤖 devagent 已就绪，输入请求开始对话 (exit 退出)")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "exit", "quit", "退出":
			fmt.Println("👋 再见!")
			return nil
		}

		result := a.Engine.RunTurn(ctx, input)
		if result.Err != "" {
			fmt.Fprintln(os.Stderr, result.Response)
		}
	}
	return scanner.Err()
}
