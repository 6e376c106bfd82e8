package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/sandrolain/iotsend/src/display"
	"github.com/sandrolain/iotsend/src/message"
)

// iotrecv subscribes to an MQTT topic and renders incoming iotsend
// frames: the header block is split off and shown as properties, the
// payload body is pretty-printed by guessed MIME.
func main() {
	const tcpPrefix = "tcp://"
	const sslPrefix = "ssl://"

	var (
		broker   string
		topic    string
		clientID string
		qos      int
	)

	root := &cobra.Command{
		Use:   "iotrecv",
		Short: "Receive and display iotsend messages",
		Long:  "Subscribes to an MQTT topic and prints every received iotsend frame with its properties and payload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.HasPrefix(broker, tcpPrefix) && !strings.HasPrefix(broker, sslPrefix) {
				broker = tcpPrefix + broker
			}
			if clientID == "" {
				clientID = fmt.Sprintf("iotrecv-%d", time.Now().UnixNano())
			}

			opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
			client := mqtt.NewClient(opts)
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				return fmt.Errorf("MQTT connection error: %w", token.Error())
			}
			defer client.Disconnect(250)

			fmt.Printf("Listening on %s, topic '%s'\n", broker, topic)

			if token := client.Subscribe(topic, byte(qos), func(_ mqtt.Client, m mqtt.Message) {
				printFrame(m.Topic(), m.Payload())
			}); token.Wait() && token.Error() != nil {
				return fmt.Errorf("error subscribing to topic: %w", token.Error())
			}

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
			<-sigc
			fmt.Println("\nInterrupted by user")
			return nil
		},
	}

	root.Flags().StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker URL (tcp://host:port)")
	root.Flags().StringVar(&topic, "topic", "iot/messages", "MQTT topic to subscribe to")
	root.Flags().StringVar(&clientID, "clientid", "", "Client ID (auto if empty)")
	root.Flags().IntVar(&qos, "qos", 0, "MQTT QoS level (0,1,2)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// printFrame splits an iotsend frame into its header block and payload
// and renders both. A frame without a blank-line terminator is shown as
// a raw body.
func printFrame(topic string, frame []byte) {
	headerBlock, body, found := bytes.Cut(frame, []byte("\n\n"))
	if !found {
		sections := []display.MessageSection{
			{Title: "Topic", Items: []display.KV{{Key: "Name", Value: topic}}},
		}
		display.PrintColoredMessage("IOT", sections, frame, display.GuessMIME(frame))
		return
	}

	msg, err := message.New(string(headerBlock), bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse frame: %v\n", err)
		return
	}

	props := display.MessageSection{Title: "Properties"}
	for _, p := range msg.Properties() {
		props.Items = append(props.Items, display.KV{Key: p.Key, Value: p.Value})
	}
	sections := []display.MessageSection{
		{Title: "Topic", Items: []display.KV{{Key: "Name", Value: topic}}},
		props,
	}
	display.PrintColoredMessage("IOT", sections, msg.Data(), display.GuessMIME(msg.Data()))
}
