package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mingkeli/devagent/pkg/config"
	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/mcp"
	"github.com/mingkeli/devagent/pkg/memory"
	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/monitor"
	"github.com/mingkeli/devagent/pkg/procman"
	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/tools"
	"github.com/mingkeli/devagent/pkg/utils"
	"github.com/mingkeli/devagent/pkg/workflow"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "devagent",
	Short: "终端里的开发助手",
	Long: `devagent 是一个运行在终端里的 AI 开发助手。它把自然语言请求路由到
确定性的工作流上: 生成并执行命令、管理后台开发服务、调用外部工具、
维护待办，并在模型不可用时按降级链回退。

常用方式:
  devagent chat            进入交互会话
  devagent chat "问题"     单轮提问
  devagent process list    查看受管理的后台进程
  devagent mcp tools       查看已发现的外部工具`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".devagent/config.json", "配置文件路径")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)
}

// app bundles everything a subcommand needs.
type app struct {
	Config *config.Config
	Logger *utils.Logger
	Engine *workflow.Engine

	Metrics *metrics.Collector
	MCP     *mcp.Manager
	Procs   *procman.Manager
	Monitor *monitor.Monitor
}

// buildApp loads configuration and wires the dependency graph.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("配置加载失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	collector := metrics.NewCollector(logger)
	res := resilience.NewManager(logger)

	run := runner.NewRunner(runner.Safety{
		DenyList:        cfg.Security.DangerousCommands,
		AllowedPrefixes: cfg.Security.AllowedPrefixes,
		ConfirmOnRisky:  cfg.Security.ConfirmOnRisky,
		ShellByDefault:  cfg.Security.ShellByDefault,
		DefaultTimeout:  cfg.Security.CommandTimeout.Std(),
	}, logger)

	registry := tools.NewRegistry()
	if err := workflow.RegisterBuiltinTools(registry); err != nil {
		return nil, err
	}
	mcpMgr := mcp.NewManager(cfg.MCP.Servers, cfg.MCP.CachePath, cfg.MCP.CacheTTL.Std(), registry, logger)

	procMgr := procman.NewManager(cfg.Process.StatePath, cfg.Process.HistoryPath, run, logger)
	if err := procMgr.Load(); err != nil {
		logger.Warnf("process registry load failed: %v", err)
	}

	primary := llm.NewHTTPProvider("primary", cfg.Primary.Model, cfg.Primary.BaseURL,
		cfg.Primary.APIKey, cfg.Primary.Temperature, cfg.Headers)
	var secondary llm.Provider
	if cfg.Secondary.Model != "" {
		secondary = llm.NewHTTPProvider("secondary", cfg.Secondary.Model, cfg.Secondary.BaseURL,
			cfg.Secondary.APIKey, cfg.Secondary.Temperature, cfg.Headers)
	}
	llmClient := llm.NewClient(primary, secondary, collector, res, logger)

	mem := memory.New(cfg.Memory.HistoryLimit, cfg.Memory.CommandHistoryLimit)
	mon := monitor.New(collector, res, logger)

	engine, err := workflow.NewEngine(workflow.Deps{
		Config:     cfg,
		Logger:     logger,
		Metrics:    collector,
		Resilience: res,
		Runner:     run,
		Registry:   registry,
		MCP:        mcpMgr,
		Procs:      procMgr,
		LLM:        llmClient,
		Memory:     mem,
		Monitor:    mon,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Metrics: collector,
		MCP:     mcpMgr,
		Procs:   procMgr,
		Monitor: mon,
	}, nil
}
