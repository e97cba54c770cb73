package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mingkeli/devagent/pkg/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "管理外部工具服务器",
}

var mcpToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "列出已注册的工具",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		a.MCP.Start(cmd.Context())
		entries := a.Engine.Registry.List()
		if len(entries) == 0 {
			fmt.Println("📭 没有已注册的工具。")
			return nil
		}
		for _, entry := range entries {
			switch entry.Kind {
			case tools.KindExternal:
				fmt.Printf("🔌 %s (server=%s): %s\n", entry.Name, entry.ServerName, entry.Description)
			default:
				fmt.Printf("🔧 %s: %s\n", entry.Name, entry.Description)
			}
		}
		return nil
	},
}

var mcpRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "立即重新发现外部工具并刷新缓存",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Logger.Close()

		a.MCP.Refresh(cmd.Context())
		fmt.Printf("✅ 发现完成，当前共 %d 个工具。\n", a.Engine.Registry.Len())
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpToolsCmd)
	mcpCmd.AddCommand(mcpRefreshCmd)
}
