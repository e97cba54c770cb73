package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "管理后台开发服务",
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出受管理的进程",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		records := a.Procs.List()
		if len(records) == 0 {
			fmt.Println("📭 当前没有受管理的进程。")
			return nil
		}
		for _, r := range records {
			port := r.Port
			if port == "" {
				port = "-"
			}
			fmt.Printf("🟢 pid=%d port=%s 启动于=%s cmd=%s\n",
				r.PID, port, r.StartedAt.Format("2006-01-02 15:04:05"), r.Command)
		}
		return nil
	},
}

var (
	stopPID  int
	stopPort int
)

var processStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "停止进程，默认停止全部",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		var message string
		switch {
		case stopPID > 0:
			message, err = a.Procs.StopByPID(stopPID)
		case stopPort > 0:
			message, err = a.Procs.StopByPort(stopPort)
		default:
			message, err = a.Procs.StopAll()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			return err
		}
		fmt.Println(message)
		return nil
	},
}

var (
	diagPID  int
	diagPort int
)

var processDiagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "诊断进程或端口状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		fmt.Println(a.Procs.Diagnose(diagPID, diagPort))
		return nil
	},
}

var processHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "查看进程启停历史",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		events := a.Procs.History()
		if len(events) == 0 {
			fmt.Println("📭 没有历史记录。")
			return nil
		}
		for _, ev := range events {
			mark := "▶️"
			at := ev.StartedAt
			if ev.Event == "stop" {
				mark = "⏹️"
				if ev.EndedAt != nil {
					at = *ev.EndedAt
				}
			}
			fmt.Printf("%s %s pid=%d port=%s cmd=%s\n",
				mark, at.Format("2006-01-02 15:04:05"), ev.PID, ev.Port, ev.Command)
		}
		return nil
	},
}

func init() {
	processStopCmd.Flags().IntVar(&stopPID, "pid", 0, "按 pid 停止")
	processStopCmd.Flags().IntVar(&stopPort, "port", 0, "按端口停止")
	processDiagnoseCmd.Flags().IntVar(&diagPID, "pid", 0, "要检查的 pid")
	processDiagnoseCmd.Flags().IntVar(&diagPort, "port", 0, "要检查的端口")

	processCmd.AddCommand(processListCmd)
	processCmd.AddCommand(processStopCmd)
	processCmd.AddCommand(processDiagnoseCmd)
	processCmd.AddCommand(processHistoryCmd)
}
