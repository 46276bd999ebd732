// Copyright 2025 The aks-agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/pauldotyu/aks-agent/pkg/agent"
	"github.com/pauldotyu/aks-agent/pkg/journal"
	"github.com/pauldotyu/aks-agent/pkg/llm"
	"github.com/pauldotyu/aks-agent/pkg/mcp"
	"github.com/pauldotyu/aks-agent/pkg/scenario"
	"github.com/pauldotyu/aks-agent/pkg/ui"
)

// Using the defaults from goreleaser as per https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func BuildRootCommand(opt *Options) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "aks-agent",
		Short: "Run an AI agent against an aks-mcp tool server",
		Long:  "aks-agent connects an Azure OpenAI deployment to an aks-mcp tool server and runs a set of AKS management scenarios through it. The server can be spawned locally over stdio or reached over SSE or streamable HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunRootCommand(cmd.Context(), *opt)
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of aks-agent",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
			os.Exit(0)
		},
	})

	if err := opt.bindCLIFlags(rootCmd.Flags()); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

type Options struct {
	// Transport selects how to reach the aks-mcp server: stdio, sse or streamable-http.
	Transport string `json:"transport,omitempty"`
	// Host and Port locate the server for the HTTP transports.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
	// ServerPath is the aks-mcp binary spawned for the stdio transport.
	ServerPath string `json:"serverPath,omitempty"`
	// AccessLevel is passed through to the spawned aks-mcp server.
	AccessLevel string `json:"accessLevel,omitempty"`

	// EnvFile is the dotenv file holding the Azure OpenAI settings.
	EnvFile string `json:"envFile,omitempty"`

	ModelID       string `json:"model,omitempty"`
	MaxIterations int    `json:"maxIterations,omitempty"`

	PromptTemplateFilePath string `json:"promptTemplateFilePath,omitempty"`
	TracePath              string `json:"tracePath,omitempty"`

	// Interactive drops into a prompt after connecting instead of running
	// the fixed scenarios.
	Interactive bool `json:"interactive,omitempty"`
}

var defaultConfigPaths = []string{
	filepath.Join("{CONFIG}", "aks-agent", "config.yaml"),
	filepath.Join("{HOME}", ".config", "aks-agent", "config.yaml"),
}

func (o *Options) InitDefaults() {
	o.Transport = mcp.TransportStdio
	o.Host = "localhost"
	o.Port = 8000
	o.ServerPath = "aks-mcp"
	o.AccessLevel = "admin"
	o.EnvFile = ".env"
	o.ModelID = ""
	o.MaxIterations = 20
	o.PromptTemplateFilePath = ""
	o.TracePath = filepath.Join(os.TempDir(), "aks-agent-trace.yaml")
	o.Interactive = false
}

func (o *Options) LoadConfiguration(b []byte) error {
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}
	return nil
}

func (o *Options) LoadConfigurationFile() error {
	configPaths := defaultConfigPaths
	for _, configPath := range configPaths {
		pathWithPlaceholdersExpanded := configPath

		if strings.Contains(pathWithPlaceholdersExpanded, "{CONFIG}") {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("getting user config directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{CONFIG}", configDir)
		}

		if strings.Contains(pathWithPlaceholdersExpanded, "{HOME}") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("getting user home directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{HOME}", homeDir)
		}

		configPath = filepath.Clean(pathWithPlaceholdersExpanded)
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				// ignore missing config files, they are optional
			} else {
				fmt.Fprintf(os.Stderr, "warning: could not load defaults from %q: %v\n", configPath, err)
			}
		} else if len(configBytes) > 0 {
			if err := o.LoadConfiguration(configBytes); err != nil {
				fmt.Fprintf(os.Stderr, "warning: error loading configuration from %q: %v\n", configPath, err)
			}
		}
	}
	return nil
}

func (opt *Options) bindCLIFlags(f *pflag.FlagSet) error {
	f.StringVar(&opt.Transport, "transport", opt.Transport, "transport to the aks-mcp server. Supported values: stdio, sse, streamable-http")
	f.StringVar(&opt.Host, "host", opt.Host, "host for the SSE and streamable HTTP transports")
	f.IntVar(&opt.Port, "port", opt.Port, "port for the SSE and streamable HTTP transports")
	f.StringVar(&opt.ServerPath, "server-path", opt.ServerPath, "path to the aks-mcp binary spawned for the stdio transport")
	f.StringVar(&opt.AccessLevel, "access-level", opt.AccessLevel, "access level passed to the spawned aks-mcp server. Supported values: readonly, readwrite, admin")
	f.StringVar(&opt.EnvFile, "env-file", opt.EnvFile, "dotenv file with the Azure OpenAI connection settings")
	f.StringVar(&opt.ModelID, "model", opt.ModelID, "model deployment to use, overrides AZURE_OPENAI_DEPLOYMENT_NAME")
	f.IntVar(&opt.MaxIterations, "max-iterations", opt.MaxIterations, "maximum number of iterations agent will try before giving up")
	f.StringVar(&opt.PromptTemplateFilePath, "prompt-template-file-path", opt.PromptTemplateFilePath, "path to custom prompt template file")
	f.StringVar(&opt.TracePath, "trace-path", opt.TracePath, "path to the trace file")
	f.BoolVar(&opt.Interactive, "interactive", opt.Interactive, "start an interactive prompt instead of running the fixed scenarios")
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// restore default behavior for a second signal
		signal.Stop(make(chan os.Signal))
		cancel()
		klog.Flush()
		fmt.Fprintf(os.Stderr, "\nReceived signal, shutting down gracefully... (press Ctrl+C again to force)\n")
	}()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// klog setup must happen before Cobra parses any flags
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.Set("logtostderr", "false")
	klogFlags.Set("log_file", filepath.Join(os.TempDir(), "aks-agent.log"))

	defer klog.Flush()

	var opt Options

	opt.InitDefaults()

	// load YAML config values
	if err := opt.LoadConfigurationFile(); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		return err
	}

	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("alsologtostderr"))

	// do this early, before the third-party code logs anything.
	redirectStdLogToKlog()

	return rootCmd.ExecuteContext(ctx)
}

func RunRootCommand(ctx context.Context, opt Options) error {
	console, err := ui.NewConsole(os.Stdout)
	if err != nil {
		return err
	}
	defer console.Close()

	console.Infof("Starting AKS-MCP agent with %s transport", opt.Transport)
	if opt.Transport != mcp.TransportStdio {
		console.Infof("Server: %s:%d", opt.Host, opt.Port)
	}

	if err := mcp.ValidateTransport(opt.Transport); err != nil {
		console.Errorf("Unsupported transport: %s", opt.Transport)
		console.Infof("Supported transports: %s, %s, %s", mcp.TransportStdio, mcp.TransportSSE, mcp.TransportStreamableHTTP)
		return err
	}

	envConfig, err := LoadEnvConfig(opt.EnvFile)
	if err != nil {
		printEnvGuidance(console, opt.EnvFile, err)
		return err
	}
	if opt.ModelID != "" {
		envConfig.Deployment = opt.ModelID
	}
	console.Successf("Loaded Azure OpenAI settings from %s", opt.EnvFile)

	klog.InfoS("Application started", "pid", os.Getpid(), "transport", opt.Transport)

	clientConfig, err := buildClientConfig(opt, console)
	if err != nil {
		return err
	}

	mcpClient := mcp.NewClient(clientConfig)
	if err := mcpClient.Connect(ctx); err != nil {
		printConnectionGuidance(console, opt)
		return fmt.Errorf("connecting to aks-mcp server: %w", err)
	}
	defer func() {
		if err := mcpClient.Close(); err != nil {
			if mcp.IsBenignShutdownError(err) {
				console.Warningf("Known cleanup issue with %s transport (harmless)", opt.Transport)
			} else {
				console.Warningf("Cleanup warning: %v", err)
			}
			return
		}
		console.Successf("\nMCP server disconnected")
	}()
	console.Successf("MCP client connected via %s", opt.Transport)

	tools, err := mcpClient.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools from aks-mcp server: %w", err)
	}
	console.Infof("Available functions: %d", len(tools))
	for i, tool := range tools {
		if i >= 3 {
			break
		}
		console.Infof("  - %s", tool.Name)
	}

	llmClient, err := llm.NewAzureOpenAIClient(ctx, envConfig)
	if err != nil {
		return fmt.Errorf("creating Azure OpenAI client: %w", err)
	}
	defer llmClient.Close()
	console.Successf("Azure OpenAI client initialized")

	var recorder journal.Recorder
	if opt.TracePath != "" {
		fileRecorder, err := journal.NewFileRecorder(opt.TracePath)
		if err != nil {
			return fmt.Errorf("creating trace recorder: %w", err)
		}
		defer fileRecorder.Close()
		recorder = fileRecorder
	} else {
		recorder = &journal.LogRecorder{}
	}

	conversation := &agent.Conversation{
		LLM:                llmClient,
		Model:              envConfig.Deployment,
		MaxIterations:      opt.MaxIterations,
		PromptTemplateFile: opt.PromptTemplateFilePath,
		Tools:              tools,
		MCP:                mcpClient,
		Recorder:           recorder,
	}
	if err := conversation.Init(ctx); err != nil {
		return fmt.Errorf("initializing agent: %w", err)
	}
	defer conversation.Close()
	console.Infof("Agent created")

	if err := recorder.Write(ctx, &journal.Event{
		Action:  journal.ActionSessionStart,
		Payload: map[string]any{"transport": opt.Transport, "toolCount": len(tools)},
	}); err != nil {
		klog.Warningf("Failed to record session start: %v", err)
	}
	defer func() {
		if err := recorder.Write(ctx, &journal.Event{Action: journal.ActionSessionEnd}); err != nil {
			klog.Warningf("Failed to record session end: %v", err)
		}
	}()

	if opt.Interactive {
		return runInteractive(ctx, console, conversation)
	}

	console.Infof("\nRunning agent scenarios...")
	runner := &scenario.Runner{
		Invoker:  conversation,
		Console:  console,
		Recorder: recorder,
	}
	if err := runner.Run(ctx, scenario.Default()); err != nil {
		return err
	}

	console.Successf("\nAll scenarios completed successfully")
	return nil
}

// buildClientConfig maps the options onto the MCP client configuration for
// the chosen transport.
func buildClientConfig(opt Options, console *ui.Console) (mcp.ClientConfig, error) {
	config := mcp.ClientConfig{Name: "aks-mcp"}

	switch opt.Transport {
	case mcp.TransportStdio:
		serverPath, err := resolveServerPath(opt.ServerPath)
		if err != nil {
			console.Errorf("aks-mcp binary not found at %s", opt.ServerPath)
			console.Infof("Build it with: make build (in the aks-mcp repository), or pass --server-path")
			return mcp.ClientConfig{}, err
		}
		config.Command = serverPath
		config.Args = []string{"--transport", "stdio", "--access-level", opt.AccessLevel}
		config.Env = os.Environ()

	case mcp.TransportSSE, mcp.TransportStreamableHTTP:
		url, err := mcp.EndpointURL(opt.Transport, opt.Host, opt.Port)
		if err != nil {
			return mcp.ClientConfig{}, err
		}
		console.Infof("Connecting to server at %s:%d", opt.Host, opt.Port)
		console.Infof("URL: %s", url)
		config.URL = url
		config.Streaming = opt.Transport == mcp.TransportStreamableHTTP
	}

	return config, nil
}

// resolveServerPath locates the aks-mcp binary: an explicit path must exist,
// a bare name is looked up on PATH.
func resolveServerPath(path string) (string, error) {
	if strings.ContainsRune(path, os.PathSeparator) {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("aks-mcp binary not found at %q: %w", path, err)
		}
		return path, nil
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("aks-mcp binary %q not found on PATH: %w", path, err)
	}
	return resolved, nil
}

func printEnvGuidance(console *ui.Console, envFile string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		console.Warningf("No %s file found", envFile)
		console.Infof("Copy .env.example to %s and configure Azure OpenAI settings", envFile)
		return
	}
	console.Errorf("Error loading %s: %v", envFile, err)
}

func printConnectionGuidance(console *ui.Console, opt Options) {
	console.Errorf("Connection failed. Please ensure:")
	switch opt.Transport {
	case mcp.TransportSSE:
		console.Infof("  1. AKS-MCP server is running with SSE transport:")
		console.Infof("     ./aks-mcp --transport sse --port %d --access-level %s", opt.Port, opt.AccessLevel)
		console.Infof("  2. Server is accessible at http://%s:%d%s", opt.Host, opt.Port, mcp.SSEPathSuffix)
		console.Infof("  3. Check firewall/network settings")
	case mcp.TransportStreamableHTTP:
		console.Infof("  1. AKS-MCP server is running with HTTP transport:")
		console.Infof("     ./aks-mcp --transport streamable-http --port %d --access-level %s", opt.Port, opt.AccessLevel)
		console.Infof("  2. Server is accessible at http://%s:%d", opt.Host, opt.Port)
		console.Infof("  3. Check firewall/network settings")
	case mcp.TransportStdio:
		console.Infof("  1. The aks-mcp binary at %q starts cleanly", opt.ServerPath)
		console.Infof("  2. Azure credentials are available to the spawned process")
	}
}

// runInteractive reads questions from the terminal and runs them through the
// agent until EOF.
func runInteractive(ctx context.Context, console *ui.Console, conversation *agent.Conversation) error {
	console.Infof("\nInteractive mode. Press Ctrl+D to exit.")
	for {
		query, err := console.ReadLine(">>> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			return nil
		}

		if _, err := conversation.Invoke(ctx, query, console.StreamText); err != nil {
			console.EndStream()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			console.Errorf("Error: %v", err)
			continue
		}
		console.EndStream()
	}
}

// redirectStdLogToKlog sends the standard library's global logger to klog so
// third-party libraries don't write directly to stderr.
func redirectStdLogToKlog() {
	log.SetOutput(klogWriter{})
	log.SetFlags(0)
}

type klogWriter struct{}

func (klogWriter) Write(p []byte) (int, error) {
	klog.InfoDepth(1, strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
