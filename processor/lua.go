package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/thisisjab/rulezilla/entity"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

type LuaRecordProcessorConfig struct {
	Name       string `yaml:"-"`
	ScriptPath string `yaml:"script-path"`
}

// LuaRecordProcessor transforms record data with the provided lua script.
// Provided script MUST contain a function named `process_record` which takes
// the record data as a table and returns the table rules are evaluated against.
// Note that user can have access to JSON helper using `local json = require("json")`
type LuaRecordProcessor struct {
	cfg  LuaRecordProcessorConfig
	pool *sync.Pool
}

func NewLuaRecordProcessor(cfg LuaRecordProcessorConfig) (*LuaRecordProcessor, error) {
	if cfg.ScriptPath == "" {
		return nil, errors.New("lua script path is required")
	}

	// Load the script once up front so a broken script fails here and not
	// inside the pool.
	L, err := newLuaState(cfg.ScriptPath)
	if err != nil {
		return nil, err
	}

	if _, ok := L.GetGlobal("process_record").(*lua.LFunction); !ok {
		L.Close()
		return nil, errors.New("lua script must define a `process_record` function")
	}

	pool := &sync.Pool{
		New: func() any {
			L, err := newLuaState(cfg.ScriptPath)
			if err != nil {
				panic(err)
			}
			return L
		},
	}
	pool.Put(L)

	return &LuaRecordProcessor{
		cfg:  cfg,
		pool: pool,
	}, nil
}

func newLuaState(scriptPath string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load anything by default
	})

	// Manually open only the safe libraries
	// We skip 'os' and 'io' to prevent system commands/file access
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},  // Allows 'require'
		{lua.BaseLibName, lua.OpenBase},     // Allows 'print', 'pairs', etc.
		{lua.TabLibName, lua.OpenTable},     // Allows 'table.insert', etc.
		{lua.StringLibName, lua.OpenString}, // Allows string manipulation
		{lua.MathLibName, lua.OpenMath},     // Allows math.floor, etc.
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// Pre-register the JSON module in this VM
	// This allows the user to do: local json = require("json")
	luajson.Preload(L)

	if err := L.DoFile(scriptPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("cannot load lua script: %w", err)
	}

	return L, nil
}

func (lp *LuaRecordProcessor) Name() string {
	return lp.cfg.Name
}

func (lp *LuaRecordProcessor) Process(record entity.Record) (entity.Record, error) {
	input, err := json.Marshal(record.Data)
	if err != nil {
		return record, fmt.Errorf("cannot encode record data: %w", err)
	}

	L := lp.pool.Get().(*lua.LState)
	defer lp.pool.Put(L)

	// A record without data reaches the script as an empty table.
	table := L.NewTable()
	if record.Data != nil {
		decoded, err := luajson.Decode(L, input)
		if err != nil {
			return record, fmt.Errorf("cannot decode record data for lua: %w", err)
		}
		if t, ok := decoded.(*lua.LTable); ok {
			table = t
		}
	}

	// Call the "process_record" function defined in Lua
	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal("process_record"),
		NRet:    1,
		Protect: true,
	}, table)

	if err != nil {
		return record, fmt.Errorf("lua script error: %w", err)
	}

	ret := L.Get(-1)

	// Clean up stack IMMEDIATELY after extraction
	L.Pop(1)

	result, ok := ret.(*lua.LTable)
	if !ok {
		return record, fmt.Errorf("process_record must return a table, got %s", ret.Type())
	}

	record.Data = luaTableToMap(result)

	return record, nil
}
