package control

import (
	"fmt"
	"strings"

	"github.com/roach88/hades/internal/config"
)

// Key is a console button.
type Key int

const (
	KeyA Key = iota
	KeyB
	KeyL
	KeyR
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyStart
	KeySelect
)

var keyNames = [...]string{
	KeyA:      "a",
	KeyB:      "b",
	KeyL:      "l",
	KeyR:      "r",
	KeyUp:     "up",
	KeyDown:   "down",
	KeyLeft:   "left",
	KeyRight:  "right",
	KeyStart:  "start",
	KeySelect: "select",
}

// Keys lists every key in display order.
var Keys = []Key{KeyA, KeyB, KeyL, KeyR, KeyUp, KeyDown, KeyLeft, KeyRight, KeyStart, KeySelect}

func (k Key) String() string {
	if k >= 0 && int(k) < len(keyNames) {
		return keyNames[k]
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// ParseKey parses a key name (case-insensitive).
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range keyNames {
		if name == s {
			return Key(i), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// CommandKind tags a Command.
type CommandKind int

const (
	CommandExit CommandKind = iota + 1
	CommandReset
	CommandRun
	CommandPause
	CommandKey
)

func (k CommandKind) String() string {
	switch k {
	case CommandExit:
		return "exit"
	case CommandReset:
		return "reset"
	case CommandRun:
		return "run"
	case CommandPause:
		return "pause"
	case CommandKey:
		return "key"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is an instruction for the runner.
//
// Config is set for CommandReset only; ownership passes to the runner on send.
// Key and Pressed are set for CommandKey only.
type Command struct {
	Kind    CommandKind
	Config  *config.Config
	Key     Key
	Pressed bool
}

// Exit stops the runner. There is no acknowledgment: wait on Session.Done.
func Exit() Command { return Command{Kind: CommandExit} }

// Reset replaces all engine state with a fresh engine built from cfg.
func Reset(cfg *config.Config) Command { return Command{Kind: CommandReset, Config: cfg} }

// Run starts advancing the engine.
func Run() Command { return Command{Kind: CommandRun} }

// Pause stops advancing the engine.
func Pause() Command { return Command{Kind: CommandPause} }

// KeyInput forwards a key edge to the engine, in any run state.
func KeyInput(key Key, pressed bool) Command {
	return Command{Kind: CommandKey, Key: key, Pressed: pressed}
}

func (c Command) String() string {
	if c.Kind == CommandKey {
		state := "up"
		if c.Pressed {
			state = "down"
		}
		return fmt.Sprintf("key %s %s", c.Key, state)
	}
	return c.Kind.String()
}
