package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/acr9/corral/internal/arn"
	"github.com/acr9/corral/internal/awsconf"
	"github.com/acr9/corral/internal/circuitbreaker"
	"github.com/acr9/corral/internal/debug"
	"github.com/acr9/corral/internal/objectstore"
	"github.com/acr9/corral/internal/report"
	"github.com/acr9/corral/internal/rollout"
	"github.com/acr9/corral/internal/stats"
	"github.com/acr9/corral/internal/transport"
	"github.com/acr9/corral/internal/tui"
	"github.com/acr9/corral/pkg/config"
	"github.com/acr9/corral/pkg/models"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcoreruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("\n❌ Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	runtime.GOMAXPROCS(runtime.NumCPU())

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "run":
		runBatch(os.Args[2:])
	case "trace":
		runTrace(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("corral — AgentCore rollout batch dispatcher")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  corral init                      interactively build a batch spec YAML")
	fmt.Println("  corral run -config <file>         submit a batch and watch it run")
	fmt.Println("  corral trace -config <file>       submit one job and trace it step by step")
}

func runInit() {
	if err := tui.RunInit(); err != nil {
		fmt.Printf("❌ Setup error: %v\n", err)
		os.Exit(1)
	}
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		configPath string
		watch      bool
		reportPath string
	)
	fs.StringVar(&configPath, "config", "", "Path to YAML batch spec")
	fs.StringVar(&configPath, "f", "", "Path to YAML batch spec (shorthand)")
	fs.BoolVar(&watch, "watch", true, "Show the live dashboard while the batch runs")
	fs.StringVar(&reportPath, "report", "report.html", "Path to write the HTML report (empty to skip)")
	fs.Parse(args)

	if configPath == "" {
		fmt.Println("❌ -config is required")
		os.Exit(1)
	}

	spec, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n⚠️  Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	client, err := buildClient(ctx, spec)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	breaker, err := circuitbreaker.NewBreaker(spec.Breaker)
	if err != nil {
		fmt.Printf("❌ Circuit breaker error: %v\n", err)
		os.Exit(1)
	}

	payloads := spec.Builder.Build(spec.Count)
	engine := rollout.NewBatchEngine(client, payloads, spec.BatchOptions).
		WithCircuitBreaker(breaker).
		WithAssertions(spec.Assertions)

	items := engine.Run(ctx)

	if watch {
		m := tui.NewModel(spec.ClientConfig.AgentRuntimeARN, spec.Count, items, reportPath)
		p := tea.NewProgram(m)
		if _, err := p.Run(); err != nil {
			fmt.Printf("❌ Error running dashboard: %v\n", err)
			os.Exit(1)
		}
		return
	}

	monitor := stats.NewMonitor()
	for item := range items {
		monitor.Add(item)
	}
	summary := monitor.Snapshot()
	printConsoleSummary(summary)

	if reportPath != "" {
		if err := report.GenerateHTML(summary, reportPath); err != nil {
			fmt.Printf("⚠️  Failed to generate HTML report: %v\n", err)
		} else {
			fmt.Printf("📈 Report saved to %s\n", reportPath)
		}
	}
	saveJSONSummary("summary.json", summary)
}

func runTrace(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	var (
		configPath string
		timeout    time.Duration
	)
	fs.StringVar(&configPath, "config", "", "Path to YAML batch spec")
	fs.DurationVar(&timeout, "timeout", 5*time.Minute, "Max time to wait for the result")
	fs.Parse(args)

	if configPath == "" {
		fmt.Println("❌ -config is required")
		os.Exit(1)
	}

	spec, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout+30*time.Second)
	defer cancel()

	client, err := buildClient(ctx, spec)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	payloads := spec.Builder.Build(1)
	opts := debug.Options{Payload: payloads[0], Timeout: timeout, Assertions: spec.Assertions}
	if err := debug.Trace(ctx, client, opts); err != nil {
		fmt.Printf("❌ Trace error: %v\n", err)
		os.Exit(1)
	}
}

// buildClient resolves the shared aws.Config once and wires up the
// production transport.Runtime and objectstore.Store implementations
// behind a rollout.Client.
func buildClient(ctx context.Context, spec *config.BatchSpec) (*rollout.Client, error) {
	region, err := arn.ParseRegion(spec.ClientConfig.AgentRuntimeARN)
	if err != nil {
		return nil, fmt.Errorf("agent runtime arn: %w", err)
	}

	awsCfg, err := awsconf.Load(ctx, awsconf.Options{
		Region:           region,
		MaxRetryAttempts: spec.ClientConfig.MaxRetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	rt := transport.NewBedrockRuntime(bedrockagentcoreruntime.NewFromConfig(awsCfg))
	store := objectstore.NewS3Store(s3.NewFromConfig(awsCfg))

	client, err := rollout.New(spec.ClientConfig, rt, store)
	if err != nil {
		return nil, fmt.Errorf("rollout client: %w", err)
	}
	return client, nil
}

func printConsoleSummary(s models.BatchSummary) {
	fmt.Println()
	fmt.Println("📊 Batch Summary")
	fmt.Printf("  Total:        %d\n", s.Total)
	fmt.Printf("  Success Rate: %.2f%%\n", s.SuccessRate)
	fmt.Printf("  Succeeded:    %d\n", s.Success)
	fmt.Printf("  Failed:       %d\n", s.Failures)
	fmt.Printf("  Timeouts:     %d\n", s.Timeouts)
	fmt.Printf("  Cancelled:    %d\n", s.Cancelled)
	fmt.Printf("  P50: %s  P99: %s  Max: %s\n", s.P50, s.P99, s.Max)
}

func saveJSONSummary(path string, s models.BatchSummary) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("⚠️  Failed to write %s: %v\n", path, err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		fmt.Printf("⚠️  Failed to encode %s: %v\n", path, err)
		return
	}
	fmt.Printf("📄 Summary saved to %s\n", path)
}
