package autopilot

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Mshel/neonsnake/internal/game"
	lua "github.com/yuin/gopher-lua"
)

const entryPoint = "nextDirection"

var ErrInvalidDirection = errors.New("autopilot returned an invalid direction")

// Autopilot runs a Lua strategy. A Lua state is single threaded, so an
// Autopilot belongs to one game loop.
type Autopilot struct {
	name  string
	state *lua.LState
}

func NewDefault() (*Autopilot, error) {
	return New("default", defaultStrategy)
}

func LoadFile(path string) (*Autopilot, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read autopilot script %s: %w", path, err)
	}
	return New(path, string(source))
}

// FromScript loads the script at path, or the built-in strategy when path
// is empty.
func FromScript(path string) (*Autopilot, error) {
	if path == "" {
		return NewDefault()
	}
	return LoadFile(path)
}

func New(name, source string) (*Autopilot, error) {
	luaState := lua.NewState()
	if err := luaState.DoString(source); err != nil {
		luaState.Close()
		return nil, fmt.Errorf("could not parse lua strategy %s: %w", name, err)
	}

	if fn, ok := luaState.GetGlobal(entryPoint).(*lua.LFunction); !ok || fn == nil {
		luaState.Close()
		return nil, fmt.Errorf("lua strategy %s does not define %s", name, entryPoint)
	}

	return &Autopilot{name: name, state: luaState}, nil
}

func (a *Autopilot) Name() string { return a.name }

func (a *Autopilot) Close() {
	a.state.Close()
}

func (a *Autopilot) NextDirection(state game.State) (game.Direction, error) {
	err := a.state.CallByParam(lua.P{
		Fn:      a.state.GetGlobal(entryPoint),
		NRet:    1,
		Protect: true,
	}, a.stateTable(state))
	if err != nil {
		return game.Direction{}, fmt.Errorf("could not execute lua strategy %s: %w", a.name, err)
	}

	luaReturn := a.state.Get(-1)
	a.state.Pop(1)

	luaTable, ok := luaReturn.(*lua.LTable)
	if !ok {
		return game.Direction{}, fmt.Errorf("lua strategy %s returned %s, expected table", a.name, luaReturn.Type())
	}

	dir := convertLuaDirectionTableToGoStruct(luaTable)
	if !dir.Valid() {
		return game.Direction{}, fmt.Errorf("%w: %+v", ErrInvalidDirection, dir)
	}
	return dir, nil
}

func (a *Autopilot) stateTable(state game.State) *lua.LTable {
	tbl := a.state.NewTable()
	tbl.RawSetString("size", lua.LNumber(state.GridSize))
	tbl.RawSetString("score", lua.LNumber(state.Score))
	tbl.RawSetString("head", cellTable(a.state, state.Head()))
	tbl.RawSetString("food", cellTable(a.state, state.Food))

	direction := a.state.NewTable()
	direction.RawSetString("Dx", lua.LNumber(state.Direction.Dx))
	direction.RawSetString("Dy", lua.LNumber(state.Direction.Dy))
	tbl.RawSetString("direction", direction)

	body := a.state.NewTable()
	for _, c := range state.Snake {
		body.RawSetString(strconv.Itoa(c.X)+":"+strconv.Itoa(c.Y), lua.LTrue)
	}
	tbl.RawSetString("body", body)

	return tbl
}

func cellTable(luaState *lua.LState, c game.Cell) *lua.LTable {
	tbl := luaState.NewTable()
	tbl.RawSetString("x", lua.LNumber(c.X))
	tbl.RawSetString("y", lua.LNumber(c.Y))
	return tbl
}

func convertLuaDirectionTableToGoStruct(luaTbl *lua.LTable) game.Direction {
	result := game.Direction{}
	luaTbl.ForEach(func(key, value lua.LValue) {
		if key.Type() != lua.LTString {
			return
		}

		switch lua.LVAsString(key) {
		case "Dy":
			result.Dy = int(lua.LVAsNumber(value))
		case "Dx":
			result.Dx = int(lua.LVAsNumber(value))
		}
	})
	return result
}
