package processor

import (
	"encoding/json"

	"github.com/valyala/fastjson"
	lua "github.com/yuin/gopher-lua"
)

func fastjsonObjectToMap(obj *fastjson.Object) map[string]any {
	res := make(map[string]any, obj.Len())
	obj.Visit(func(key []byte, v *fastjson.Value) {
		res[string(key)] = convertFastjsonValue(v)
	})
	return res
}

func convertFastjsonValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		return fastjsonObjectToMap(v.GetObject())
	case fastjson.TypeArray:
		items := v.GetArray()
		res := make([]any, len(items))
		for i, item := range items {
			res[i] = convertFastjsonValue(item)
		}
		return res
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.MarshalTo(nil))
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

func luaTableToMap(table *lua.LTable) map[string]any {
	res := make(map[string]any)
	table.ForEach(func(key, value lua.LValue) {
		// Lua keys are usually strings for record data, but we ensure string conversion for the map key
		res[key.String()] = convertLuaValue(value)
	})
	return res
}

func convertLuaValue(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LTable:
		// Treat everything as a map; rules only look at top-level attributes.
		return luaTableToMap(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case lua.LBool:
		return bool(v)
	case *lua.LNilType:
		return nil
	default:
		if value == lua.LNil {
			return nil
		}

		// Fallback for types we don't explicitly handle (like functions or userdata)
		return v.String()
	}
}
