// Command miniredis-cli is a thin interactive REPL over package client.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"miniredis/client"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "miniredis-cli",
	Short: "Interactive miniredis client",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:6379", "server address")
}

func run(cmd *cobra.Command, args []string) error {
	c, err := client.Connect(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("connected to %s\n", addr)
	repl(c)
	return nil
}

// repl reads space-separated commands from stdin until EOF, dispatches
// them against c, and prints the response. A SUBSCRIBE consumes c and
// drains messages until interrupted; there is no way back to command
// mode afterward, mirroring the library's one-way transition.
func repl(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("miniredis> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "get":
			handleGet(c, fields)
		case "set":
			handleSet(c, fields)
		case "publish":
			handlePublish(c, fields)
		case "subscribe":
			handleSubscribe(c, fields[1:])
			return
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func handleGet(c *client.Client, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: get <key>")
		return
	}
	value, ok, err := c.Get(fields[1])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("(nil)")
		return
	}
	fmt.Println(string(value))
}

func handleSet(c *client.Client, fields []string) {
	if len(fields) < 3 {
		fmt.Println("usage: set <key> <value> [EX secs | PX millis] [NX | XX]")
		return
	}
	opts, err := parseSetOptions(fields[3:])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	ok, err := c.Set(fields[1], []byte(fields[2]), opts)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if ok {
		fmt.Println("OK")
	} else {
		fmt.Println("(nil)")
	}
}

func parseSetOptions(tokens []string) (client.SetOptions, error) {
	var opts client.SetOptions
	for i := 0; i < len(tokens); i++ {
		switch strings.ToUpper(tokens[i]) {
		case "EX":
			i++
			if i >= len(tokens) {
				return opts, fmt.Errorf("EX requires a value")
			}
			secs, err := cast.ToIntE(tokens[i])
			if err != nil {
				return opts, err
			}
			opts.Expiry = time.Duration(secs) * time.Second
		case "PX":
			i++
			if i >= len(tokens) {
				return opts, fmt.Errorf("PX requires a value")
			}
			ms, err := cast.ToIntE(tokens[i])
			if err != nil {
				return opts, err
			}
			opts.Expiry = time.Duration(ms) * time.Millisecond
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		default:
			return opts, fmt.Errorf("unsupported option %s", tokens[i])
		}
	}
	return opts, nil
}

func handlePublish(c *client.Client, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: publish <channel> <message>")
		return
	}
	n, err := c.Publish(fields[1], []byte(fields[2]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(n)
}

func handleSubscribe(c *client.Client, channels []string) {
	if len(channels) == 0 {
		fmt.Println("usage: subscribe <channel> [channel...]")
		return
	}
	sub, err := c.Subscribe(channels...)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer sub.Close()

	fmt.Println("subscribed; press Ctrl-C to exit")
	for {
		msg, ok, err := sub.NextMessage()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if !ok {
			return
		}
		fmt.Printf("[%s] %s\n", msg.Channel, string(msg.Payload))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
