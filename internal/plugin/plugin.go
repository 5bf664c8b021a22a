// Package plugin runs Lua scripts as engine-notification subscribers.
//
// A script defines a global on_notification(method, params) function. Each
// engine notification is delivered with params decoded to a Lua table.
// Script failures are logged and swallowed; a broken plugin never disturbs
// protocol traffic or the remaining subscribers.
package plugin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// handlerGlobal is the function name a script must define.
const handlerGlobal = "on_notification"

// Script is one loaded notification plugin. Its Notify method matches the
// client's subscriber signature; attach it with client.Subscribe(s.Notify).
type Script struct {
	log  *slog.Logger
	name string

	mu     sync.Mutex
	state  *lua.LState
	fn     lua.LValue
	closed bool
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScriptLogger sets the script's logger.
func WithScriptLogger(log *slog.Logger) ScriptOption {
	return func(s *Script) {
		s.log = log
	}
}

// LoadScript loads a plugin from a Lua file.
func LoadScript(path string, opts ...ScriptOption) (*Script, error) {
	s := newScript(path, opts...)
	if err := s.state.DoFile(path); err != nil {
		s.state.Close()
		return nil, fmt.Errorf("load plugin %s: %w", path, err)
	}
	if err := s.bindHandler(); err != nil {
		s.state.Close()
		return nil, err
	}
	return s, nil
}

// LoadScriptString loads a plugin from Lua source text.
func LoadScriptString(name, code string, opts ...ScriptOption) (*Script, error) {
	s := newScript(name, opts...)
	if err := s.state.DoString(code); err != nil {
		s.state.Close()
		return nil, fmt.Errorf("load plugin %s: %w", name, err)
	}
	if err := s.bindHandler(); err != nil {
		s.state.Close()
		return nil, err
	}
	return s, nil
}

func newScript(name string, opts ...ScriptOption) *Script {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &Script{
		log:   slog.Default(),
		name:  name,
		state: L,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Script) bindHandler() error {
	fn := s.state.GetGlobal(handlerGlobal)
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("plugin %s: global %s is not a function", s.name, handlerGlobal)
	}
	s.fn = fn
	return nil
}

// Name returns the plugin's source path or name.
func (s *Script) Name() string {
	return s.name
}

// Notify delivers one notification to the script. The Lua state is not
// goroutine-safe, so calls are serialized.
func (s *Script) Notify(method string, params json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	var decoded any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &decoded); err != nil {
			s.log.Warn("plugin params not decodable", "plugin", s.name, "method", method, "error", err)
			decoded = nil
		}
	}

	s.state.Push(s.fn)
	s.state.Push(lua.LString(method))
	s.state.Push(toLua(s.state, decoded))
	if err := s.state.PCall(2, 0, nil); err != nil {
		s.log.Warn("plugin handler failed", "plugin", s.name, "method", method, "error", err)
	}
}

// Close releases the Lua state. Further notifications are dropped.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.state.Close()
}

// openSafeLibraries opens only the side-effect-free standard libraries.
// io, os, debug and package stay shut.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// toLua converts a decoded JSON value into its Lua equivalent.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
