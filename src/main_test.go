package main

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mmqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/message"
)

func TestResolveHeaders(t *testing.T) {
	tests := []struct {
		name string
		flag string
		want string
	}{
		{name: "default when empty", flag: "", want: "source:iotsend\n\n"},
		{name: "single pair untouched", flag: "a:1", want: "a:1"},
		{name: "semicolons become newlines", flag: "a:1;b:2", want: "a:1\nb:2"},
		{name: "trailing separator", flag: "a:1;", want: "a:1\n"},
		{name: "other bytes preserved", flag: "a:1;;b:2 c", want: "a:1\n\nb:2 c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveHeaders(tt.flag); got != tt.want {
				t.Errorf("resolveHeaders(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestOpenInputStdinFallback(t *testing.T) {
	in, err := openInput("")
	if err != nil {
		t.Fatalf("openInput(\"\") returned error: %v", err)
	}
	if in == nil {
		t.Fatal("expected a reader for stdin")
	}
	if err := in.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenInputFileNotFound(t *testing.T) {
	_, err := openInput(filepath.Join(t.TempDir(), "missing.bin"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenInputReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, []byte("payload-bytes"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	in, err := openInput(path)
	if err != nil {
		t.Fatalf("openInput: %v", err)
	}
	defer in.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(in); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf.String() != "payload-bytes" {
		t.Fatalf("unexpected content: %q", buf.String())
	}
}

func TestNewClientUnsupportedType(t *testing.T) {
	_, err := newClient(clients.EndpointConfig{Type: "ftp"})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	var ute *clients.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTypeError, got %T: %v", err, err)
	}
}

func TestRootCmdFlagWiring(t *testing.T) {
	cmd := newRootCmd()

	for flag, shorthand := range map[string]string{
		"verbose": "v",
		"headers": "H",
		"config":  "c",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Fatalf("flag %q not registered", flag)
		}
		if f.Shorthand != shorthand {
			t.Fatalf("flag %q shorthand = %q, want %q", flag, f.Shorthand, shorthand)
		}
	}
}

func TestRootCmdRejectsExtraArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"one.bin", "two.bin"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for two positional arguments")
	}
}

func TestRootCmdUnknownFlagPrintsUsage(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--nope"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("expected usage on stderr, got %q", errOut.String())
	}
}

func TestRunSendFileNotFoundPerformsNoStream(t *testing.T) {
	// Endpoint would refuse the connection; the error text proves the
	// input failure short-circuits before the client is ever built.
	t.Setenv("IOTSEND_CONFIG_CONTENT", `{"endpoint":{"type":"mqtt","options":{"address":"127.0.0.1:1"}}}`)
	t.Setenv("IOTSEND_CONFIG_FORMAT", "json")

	err := runSend(sendOptions{fileName: filepath.Join(t.TempDir(), "missing.bin")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunSendClientCreateFailure(t *testing.T) {
	t.Setenv("IOTSEND_CONFIG_CONTENT", `{"endpoint":{"type":"redis","options":{"address":"127.0.0.1:1","timeout":"500ms"}}}`)
	t.Setenv("IOTSEND_CONFIG_FORMAT", "json")

	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := runSend(sendOptions{fileName: path})
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
	if !strings.Contains(err.Error(), "failed to create client") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// startMochi starts an in-process mochi-mqtt broker on an ephemeral port.
func startMochi(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot get free port: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Logf("failed to close listener: %v", err)
	}

	server := mmqtt.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("failed to add hook: %v", err)
	}

	port := addr[strings.LastIndex(addr, ":")+1:]
	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: ":" + port})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			t.Logf("server error: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		if err := server.Close(); err != nil {
			t.Logf("failed to close server: %v", err)
		}
	})
	return addr
}

func TestRootCmdSendsFileToMQTTEndpoint(t *testing.T) {
	addr := startMochi(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "endpoint:\n" +
		"  type: mqtt\n" +
		"  options:\n" +
		"    address: " + addr + "\n" +
		"    topic: telemetry/in\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	payloadPath := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(payloadPath, []byte(`{"temp":21.5}`), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	received := make(chan mqtt.Message, 1)
	copts := mqtt.NewClientOptions().AddBroker("tcp://" + addr).SetClientID("main-test-sub")
	sub := mqtt.NewClient(copts)
	if token := sub.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer sub.Disconnect(100)
	if token := sub.Subscribe("telemetry/in", 1, func(_ mqtt.Client, m mqtt.Message) {
		received <- m
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-v", "-c", cfgPath, "-H", "device:th-22;unit:C", payloadPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	select {
	case m := <-received:
		want := "device:th-22\nunit:C\n\n" + `{"temp":21.5}`
		if string(m.Payload()) != want {
			t.Fatalf("unexpected frame:\n got %q\nwant %q", m.Payload(), want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("broker did not receive the message")
	}
}

func TestRootCmdDefaultHeadersOnWire(t *testing.T) {
	addr := startMochi(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "endpoint:\n" +
		"  type: mqtt\n" +
		"  options:\n" +
		"    address: " + addr + "\n" +
		"    topic: telemetry/in\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	payloadPath := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(payloadPath, []byte("plain"), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	received := make(chan mqtt.Message, 1)
	copts := mqtt.NewClientOptions().AddBroker("tcp://" + addr).SetClientID("main-test-sub2")
	sub := mqtt.NewClient(copts)
	if token := sub.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer sub.Disconnect(100)
	if token := sub.Subscribe("telemetry/in", 1, func(_ mqtt.Client, m mqtt.Message) {
		received <- m
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-c", cfgPath, payloadPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	select {
	case m := <-received:
		want := message.DefaultHeaders + "plain"
		if string(m.Payload()) != want {
			t.Fatalf("unexpected frame:\n got %q\nwant %q", m.Payload(), want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("broker did not receive the message")
	}
}
