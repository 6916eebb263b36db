// Package main provides an interactive chat CLI for trying context
// management strategies against a real model.
//
// Usage:
//
//	go run ./integrationtest/cli --config ctx.yaml
//	go run ./integrationtest/cli validate --config ctx.yaml
//	go run ./integrationtest/cli schema
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/compaction"
	"github.com/rickchristie/ctxwindow/config"
	"github.com/rickchristie/ctxwindow/hooks"
	"github.com/rickchristie/ctxwindow/integrationtest/loggers"
	"github.com/rickchristie/ctxwindow/integrationtest/testutil"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

const defaultSystemPrompt = "You are a helpful coding assistant. " +
	"Use the file tools to answer questions about the workspace."

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr,
			"%sError: %v%s\n",
			colorRed, err, colorReset)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ctxchat",
	Short:         "Chat with a model under a context management strategy",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envPath, _ := cmd.Flags().GetString("env")
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runChat(cmd)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		f, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cmd.Printf("%s: ok (strategy %s)\n", path, f.Strategy.Type)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the config file JSON Schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := json.MarshalIndent(config.Schema.Raw(), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "ctxwindow.yaml", "Path to the config file")
	rootCmd.PersistentFlags().String("env", ".env", "Dotenv file holding API tokens; missing files are ignored")
	rootCmd.Flags().String("log", filepath.Join(".logs", "ctxchat.log"), "Path to the debug log")
	rootCmd.Flags().String("root", ".", "Workspace root exposed to the file tools")
	rootCmd.Flags().String("system", defaultSystemPrompt, "System prompt")

	rootCmd.AddCommand(validateCmd, schemaCmd)
}

// turnPlan renders the execution status injected into the
// context. It reads stats only: it runs inside Session.Send, which
// holds the session lock.
type turnPlan struct {
	stats *ctxwindow.Stats
	root  string
}

func (p *turnPlan) BuildContextPrompt(ctx context.Context) (string, error) {
	status := fmt.Sprintf(
		"[Session status] Workspace root: %s. Context invocations so far: %d.",
		p.root, p.stats.GetCounter(ctxwindow.KeyInvocations),
	)
	if p.stats.GetCounter(ctxwindow.KeyCompactionsFor.For(compaction.TagSummary)) > 0 {
		status += " Older turns are summarized above."
	}
	return status, nil
}

func runChat(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	logPath, _ := cmd.Flags().GetString("log")
	root, _ := cmd.Flags().GetString("root")
	system, _ := cmd.Flags().GetString("system")

	f, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if f.Model == nil {
		return fmt.Errorf("%s: the chat CLI needs a model section", configPath)
	}

	logFile := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    20,
		MaxBackups: 3,
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(
		logFile, &slog.HandlerOptions{Level: slog.LevelDebug},
	))

	model, err := f.Model.Open(logger)
	if err != nil {
		return err
	}

	stats := ctxwindow.NewStats()
	hookCfg, err := f.HookConfig(model, logger, stats)
	if err != nil {
		return err
	}
	hookCfg.Plan = &turnPlan{stats: stats, root: root}
	ctxHook, err := hooks.NewContextHook(hookCfg)
	if err != nil {
		return err
	}

	chain := hooks.NewChain(ctxHook).
		Register(loggers.NewLoggerHookWithWriter(logFile).WithStats(stats))
	session := testutil.NewSession(chain, model, system).
		WithWriter(&ColoredWriter{w: os.Stdout})
	for _, tool := range testutil.FileTools(root) {
		session.WithTool(tool)
	}

	printBanner(f, logPath)

	rl, err := readline.New(
		colorCyan + colorBold + "You: " + colorReset)
	if err != nil {
		return fmt.Errorf(
			"failed to create readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				fmt.Printf(
					"\n%sGoodbye!%s\n",
					colorGreen, colorReset)
				return nil
			}
			return fmt.Errorf(
				"failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Printf(
				"\n%sEnding chat session. "+
					"Goodbye!%s\n",
				colorGreen, colorReset)
			return nil
		case "/stats":
			printYAML(map[string]any{
				"counters": stats.Counters(),
				"gauges":   stats.Gauges(),
			})
			continue
		case "/history":
			printYAML(loggers.DumpState(&ctxwindow.State{
				Messages:       ctxwindow.KeepAll(session.History()),
				RunningSummary: session.RunningSummary(),
				Invocations:    session.Invocations(),
			}))
			continue
		}

		sendMessage(session, stats, input)
	}
}

// sendMessage runs one turn, cancelling it on SIGINT or SIGTERM.
func sendMessage(
	session *testutil.Session,
	stats *ctxwindow.Stats,
	input string,
) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Printf(
				"\n%sReceived interrupt, "+
					"cancelling...%s\n",
				colorYellow, colorReset)
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := session.Send(ctx, input); err != nil {
		fmt.Fprintf(os.Stderr,
			"\n%sError processing message: "+
				"%v%s\n",
			colorRed, err, colorReset)
	}
	fmt.Printf("%s[Context: %s tokens, %s compactions]%s\n",
		colorDim,
		humanize.Comma(int64(stats.GetGauge(ctxwindow.KeyContextTokens))),
		humanize.Comma(stats.GetCounter(ctxwindow.KeyCompactions)),
		colorReset)
	fmt.Printf("%s%s%s\n",
		colorDim,
		strings.Repeat("-", 60),
		colorReset)
}

func printBanner(f *config.File, logPath string) {
	fmt.Printf("%s%s%s\n",
		colorYellow,
		strings.Repeat("=", 80),
		colorReset)
	fmt.Printf("%s%sINTERACTIVE CHAT%s\n",
		colorBold, colorYellow, colorReset)
	fmt.Printf("%s%s%s\n",
		colorYellow,
		strings.Repeat("=", 80),
		colorReset)
	fmt.Printf(
		"%sModel: %s/%s  Strategy: %s  Token model: %s%s\n",
		colorDim, f.Model.Provider, f.Model.Name,
		f.Strategy.Type, f.TokenModel, colorReset)
	fmt.Printf(
		"%sType your message and press Enter. "+
			"Commands: /stats, /history, exit.%s\n",
		colorDim, colorReset)
	fmt.Printf(
		"%sState dumps are written to %s.%s\n\n",
		colorDim, logPath, colorReset)
}

func printYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Printf("%s(failed to marshal: %v)%s\n",
			colorRed, err, colorReset)
		return
	}
	fmt.Printf("%s%s%s", colorDim, data, colorReset)
}

// ColoredWriter wraps an io.Writer and adds colors
// based on content patterns.
type ColoredWriter struct {
	w               *os.File
	inAgentResponse bool
}

func (c *ColoredWriter) Write(
	p []byte,
) (n int, err error) {
	text := string(p)
	trimmed := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "--- Your Input ---"):
		c.inAgentResponse = false
		return fmt.Fprintf(c.w,
			"%s%s%s%s",
			colorBold, colorCyan, text, colorReset)

	case strings.HasPrefix(
		text, "--- Agent Response ---"):
		c.inAgentResponse = true
		return fmt.Fprintf(c.w,
			"%s%s%s%s",
			colorBold, colorGreen, text, colorReset)

	case strings.HasPrefix(text, "[Tool:"):
		c.inAgentResponse = false
		return fmt.Fprintf(c.w,
			"%s%s%s",
			colorBlue, text, colorReset)

	case strings.HasPrefix(text, "    Error:"):
		return fmt.Fprintf(c.w,
			"%s%s%s",
			colorRed, text, colorReset)

	case strings.HasPrefix(text, "    Args:") ||
		strings.HasPrefix(text, "    Output:"):
		return fmt.Fprintf(c.w,
			"%s%s%s",
			colorDim, text, colorReset)

	case strings.HasPrefix(text, "  [Compaction:"):
		return fmt.Fprintf(c.w,
			"%s%s%s%s",
			colorBold, colorMagenta, text, colorReset)

	case c.inAgentResponse && trimmed != "":
		return fmt.Fprintf(c.w,
			"%s%s%s",
			colorGreen, text, colorReset)

	default:
		return c.w.Write(p)
	}
}
