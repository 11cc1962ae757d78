// Package command implements the parsed command surface: GET, SET,
// PUBLISH, SUBSCRIBE, UNSUBSCRIBE, and a catch-all Unknown. Parsing
// turns a resp.Frame array into a typed Command; Apply (for the
// non-subscribe commands) executes it against the store and writes the
// response frame.
package command

import (
	"strings"
	"time"

	"miniredis/resp"
	"miniredis/store"
)

// Kind tags which command variant a Command holds.
type Kind int

const (
	KindGet Kind = iota
	KindSet
	KindPublish
	KindSubscribe
	KindUnsubscribe
	KindUnknown
)

// Command is a parsed client request. Only the fields relevant to Kind
// are populated.
type Command struct {
	Kind Kind

	// Get
	Key string

	// Set
	Value  []byte
	Expiry time.Duration
	NX     bool
	XX     bool

	// Publish
	Channel string
	Message []byte

	// Subscribe / Unsubscribe
	Channels []string

	// Unknown
	Name string
}

// GetName returns the command's lowercase name, for logging.
func (c Command) GetName() string {
	switch c.Kind {
	case KindGet:
		return "get"
	case KindSet:
		return "set"
	case KindPublish:
		return "publish"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	default:
		return c.Name
	}
}

// FromFrame parses a Command out of a received Array frame. The command
// name is matched case-insensitively; an unrecognized name becomes
// KindUnknown rather than an error, per the "Unknown command-level
// error" contract, not a protocol error.
func FromFrame(frame resp.Frame) (Command, error) {
	parser, err := resp.NewArgParser(frame)
	if err != nil {
		return Command{}, err
	}

	name, err := parser.NextString()
	if err != nil {
		return Command{}, err
	}
	name = strings.ToLower(name)

	var cmd Command
	switch name {
	case "get":
		cmd, err = parseGet(parser)
	case "set":
		cmd, err = parseSet(parser)
	case "publish":
		cmd, err = parsePublish(parser)
	case "subscribe":
		cmd, err = parseSubscribe(parser)
	case "unsubscribe":
		cmd, err = parseUnsubscribe(parser)
	default:
		return Command{Kind: KindUnknown, Name: name}, nil
	}
	if err != nil {
		return Command{}, err
	}

	if err := parser.Finish(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseGet(p *resp.ArgParser) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindGet, Key: key}, nil
}

func parseSet(p *resp.ArgParser) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return Command{}, err
	}
	value, err := p.NextBytes()
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Kind: KindSet, Key: key, Value: value}

	for i := 0; i < 2; i++ {
		if err := applySetOption(p, &cmd); err != nil {
			if err == resp.ErrEndOfStream {
				break
			}
			return Command{}, err
		}
	}

	if cmd.NX && cmd.XX {
		return Command{}, invalidOption("`NX` and `XX` cannot be given at the same time")
	}
	return cmd, nil
}

func applySetOption(p *resp.ArgParser, cmd *Command) error {
	tok, err := p.NextString()
	if err != nil {
		return err
	}
	switch strings.ToUpper(tok) {
	case "EX":
		secs, err := p.NextInt()
		if err != nil {
			return err
		}
		cmd.Expiry = time.Duration(secs) * time.Second
	case "PX":
		ms, err := p.NextInt()
		if err != nil {
			return err
		}
		cmd.Expiry = time.Duration(ms) * time.Millisecond
	case "NX":
		cmd.NX = true
	case "XX":
		cmd.XX = true
	default:
		return invalidOption("unsupported SET option " + tok)
	}
	return nil
}

func parsePublish(p *resp.ArgParser) (Command, error) {
	channel, err := p.NextString()
	if err != nil {
		return Command{}, err
	}
	message, err := p.NextBytes()
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindPublish, Channel: channel, Message: message}, nil
}

func parseSubscribe(p *resp.ArgParser) (Command, error) {
	channels, err := restChannels(p)
	if err != nil {
		return Command{}, err
	}
	if len(channels) == 0 {
		return Command{}, invalidOption("SUBSCRIBE requires at least one channel")
	}
	return Command{Kind: KindSubscribe, Channels: channels}, nil
}

func parseUnsubscribe(p *resp.ArgParser) (Command, error) {
	channels, err := restChannels(p)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindUnsubscribe, Channels: channels}, nil
}

func restChannels(p *resp.ArgParser) ([]string, error) {
	var channels []string
	for {
		ch, err := p.NextString()
		if err == resp.ErrEndOfStream {
			return channels, nil
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
}

func invalidOption(reason string) error {
	return &resp.ErrInvalid{Reason: reason}
}

// Apply executes a non-subscribe command against s and returns the
// response frame. KindSubscribe and KindUnsubscribe are handled by the
// server's subscribe loop instead; passing one here is a programming
// error.
func Apply(cmd Command, s *store.Store) resp.Frame {
	switch cmd.Kind {
	case KindGet:
		if v, ok := s.Get(cmd.Key); ok {
			return resp.BulkFrame(v)
		}
		return resp.Null()
	case KindSet:
		_, exists := s.Get(cmd.Key)
		if cmd.NX && exists || cmd.XX && !exists {
			return resp.Null()
		}
		s.Set(cmd.Key, cmd.Value, cmd.Expiry)
		return resp.Simple("OK")
	case KindPublish:
		n := s.Publish(cmd.Channel, cmd.Message)
		return resp.Integer(uint64(n))
	case KindUnknown:
		return resp.Err("ERR unknown command '" + cmd.Name + "'")
	default:
		panic("command: Apply called with a subscribe-state command")
	}
}
