package mqttclient

import (
	"net"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mmqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// startMochi starts an in-process mochi-mqtt broker on an ephemeral port.
// Returns address (host:port) and a cleanup function.
func startMochi(t *testing.T) (string, func()) {
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

	cleanup := func() {
		if err := server.Close(); err != nil {
			t.Logf("failed to close server: %v", err)
		}
	}
	return addr, cleanup
}

// subscribe attaches a plain paho subscriber to the broker and returns
// the received messages on a channel.
func subscribe(t *testing.T, addr, clientID, topic string) (<-chan mqtt.Message, func()) {
	t.Helper()
	ch := make(chan mqtt.Message, 4)
	copts := mqtt.NewClientOptions().AddBroker("tcp://" + addr).SetClientID(clientID)
	cli := mqtt.NewClient(copts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	token := cli.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		ch <- m
	})
	if token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	return ch, func() { cli.Disconnect(100) }
}
