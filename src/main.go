package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/coapclient"
	"github.com/sandrolain/iotsend/src/clients/httpclient"
	"github.com/sandrolain/iotsend/src/clients/kafkaclient"
	"github.com/sandrolain/iotsend/src/clients/mqttclient"
	"github.com/sandrolain/iotsend/src/clients/natsclient"
	"github.com/sandrolain/iotsend/src/clients/pubsubclient"
	"github.com/sandrolain/iotsend/src/clients/redisclient"
	"github.com/sandrolain/iotsend/src/config"
	"github.com/sandrolain/iotsend/src/display"
	"github.com/sandrolain/iotsend/src/message"
)

type sendOptions struct {
	verbose    bool
	headers    string
	configPath string
	fileName   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := sendOptions{}

	cmd := &cobra.Command{
		Use:   "iotsend [filename]",
		Short: "Send an IOT message to the cloud telemetry endpoint",
		Long: "iotsend reads a message payload from a file or stdin and forwards it,\n" +
			"together with its properties, to the configured telemetry endpoint.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.fileName = args[0]
			}
			return runSend(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().StringVarP(&opts.headers, "headers", "H", "", "message properties as key:value pairs separated by ;")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "endpoint configuration file (YAML or JSON)")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(c.UsageString())
		return err
	})

	return cmd
}

// setupLogger installs the global handler. Diagnostics go to stderr so
// stdout stays clean for the verbose receipt.
func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

// resolveHeaders turns the -H argument into the wire header text. With
// no argument the default header block is used; otherwise every ; is
// rewritten to a newline and nothing else is altered.
func resolveHeaders(flag string) string {
	if flag == "" {
		return message.DefaultHeaders
	}
	return message.NormalizeHeaders(flag)
}

// openInput resolves the payload source: the named file, or stdin when
// no file is given. An oversized file logs a warning and proceeds, the
// client truncates downstream.
func openInput(fileName string) (io.ReadCloser, error) {
	if fileName == "" {
		return io.NopCloser(os.Stdin), nil
	}

	if fi, err := os.Stat(fileName); err == nil && fi.Size() > message.MaxMessageSize {
		slog.Warn("max file size exceeded, file will be truncated",
			"file", fileName,
			"size", fi.Size(),
			"max", message.MaxMessageSize,
		)
	}

	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}
	return f, nil
}

// newClient builds the telemetry client for the configured endpoint.
func newClient(cfg clients.EndpointConfig) (clients.Client, error) {
	switch cfg.Type {
	case clients.ClientTypeMQTT:
		return mqttclient.New(cfg.Options)
	case clients.ClientTypeNATS:
		return natsclient.New(cfg.Options)
	case clients.ClientTypeKafka:
		return kafkaclient.New(cfg.Options)
	case clients.ClientTypeCoAP:
		return coapclient.New(cfg.Options)
	case clients.ClientTypeHTTP:
		return httpclient.New(cfg.Options)
	case clients.ClientTypeRedis:
		return redisclient.New(cfg.Options)
	case clients.ClientTypePubSub:
		return pubsubclient.New(cfg.Options)
	default:
		return nil, &clients.UnsupportedTypeError{Type: cfg.Type}
	}
}

// runSend performs one send: resolve headers and payload source, build
// the endpoint client, stream the message, and on verbose print the
// delivery receipt.
func runSend(opts sendOptions) error {
	headers := resolveHeaders(opts.headers)

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	input, err := openInput(opts.fileName)
	if err != nil {
		return err
	}
	defer func() {
		if err := input.Close(); err != nil {
			slog.Error("failed to close input", "error", err)
		}
	}()

	client, err := newClient(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close client", "error", err)
		}
	}()

	client.SetVerbose(opts.verbose)

	var captured bytes.Buffer
	var payload io.Reader = input
	if opts.verbose {
		payload = io.TeeReader(input, &captured)
	}

	if err := client.Stream(headers, payload); err != nil {
		return fmt.Errorf("failed to stream message: %w", err)
	}

	if opts.verbose {
		printReceipt(cfg.Endpoint, headers, captured.Bytes())
	}
	return nil
}

func printReceipt(endpoint clients.EndpointConfig, headers string, body []byte) {
	msg, err := message.New(headers, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build receipt", "error", err)
		return
	}
	display.PrintReceipt(display.Receipt{
		Endpoint:   string(endpoint.Type),
		Properties: msg.Properties(),
		Body:       msg.Data(),
	})
}
