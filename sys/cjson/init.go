// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cjson describes the cJSON API: an ordered JSON tree with explicit ownership.
// Items added to an array or object are owned by the parent and freed together with it,
// lookups return borrowed views.
package cjson

import (
	"embed"
	"math"

	"github.com/seqfuzz/seqfuzz/prog"
)

const cjsonVersion = "1.7.18"

var itemRes = &prog.ResourceDesc{Name: "cJSON", Release: "cJSON_Delete"}

//go:embed test
var testFS embed.FS

var (
	itemType    = prog.Handle(itemRes)
	errNullItem = prog.Errnof(-1, "NULL item")
)

var target = &prog.Target{
	Name:      "cjson",
	Desc:      "cJSON: build, print, parse and query JSON trees",
	Resources: []*prog.ResourceDesc{itemRes},
	Consts: map[string]int64{
		"cJSON_False":  1 << kindFalse,
		"cJSON_True":   1 << kindTrue,
		"cJSON_NULL":   1 << kindNull,
		"cJSON_Number": 1 << kindNumber,
		"cJSON_String": 1 << kindString,
		"cJSON_Array":  1 << kindArray,
		"cJSON_Object": 1 << kindObject,
		"true":         1,
		"false":        0,
	},
	Rules: []string{
		"Only root items are freed with cJSON_Delete: items added with cJSON_AddItemToObject or " +
			"cJSON_AddItemToArray belong to their parent.",
		"Items returned by cJSON_GetObjectItem*, cJSON_GetArrayItem and cJSON_Add*ToObject are " +
			"borrowed and must not be deleted.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

// arg returns a live item argument.
func arg(args []prog.Value, i int) (*item, error) {
	it, ok := prog.ResArg[*item](args, i)
	if !ok {
		return nil, errNullItem
	}
	if it.freed {
		return nil, prog.Errnof(-1, "item used after cJSON_Delete")
	}
	return it, nil
}

func create(fn func(args []prog.Value) *item) prog.OpFunc {
	return func(env prog.Env, args []prog.Value) (prog.Value, error) {
		return fn(args), nil
	}
}

func is(k kind) prog.OpFunc {
	return func(env prog.Env, args []prog.Value) (prog.Value, error) {
		it, err := arg(args, 0)
		if err != nil {
			return int64(0), nil
		}
		return prog.BoolInt(it.kind == k), nil
	}
}

func addToObject(obj *item, name string, c *item) {
	c.name = name
	obj.attach(c)
}

func container(args []prog.Value, i int, kinds ...kind) (*item, error) {
	it, err := arg(args, i)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if it.kind == k {
			return it, nil
		}
	}
	return nil, prog.Errnof(-1, "item is not a container of the right type")
}

func init() {
	target.Ops = []*prog.Op{
		{
			Name: "cJSON_CreateObject",
			Ret:  itemType,
			Fn:   create(func(args []prog.Value) *item { return &item{kind: kindObject} }),
		},
		{
			Name: "cJSON_CreateArray",
			Ret:  itemType,
			Fn:   create(func(args []prog.Value) *item { return &item{kind: kindArray} }),
		},
		{
			Name: "cJSON_CreateString",
			Args: []prog.Field{{Name: "s", Type: prog.Buffer}},
			Ret:  itemType,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				if args[0] == nil {
					return nil, prog.Errnof(-1, "NULL string")
				}
				return &item{kind: kindString, str: string(prog.BufArg(args, 0))}, nil
			},
		},
		{
			Name: "cJSON_CreateNumber",
			Args: []prog.Field{{Name: "num", Type: prog.Int}},
			Ret:  itemType,
			Fn: create(func(args []prog.Value) *item {
				return &item{kind: kindNumber, num: float64(prog.IntArg(args, 0))}
			}),
		},
		{
			Name: "cJSON_CreateFraction",
			Doc:  "creates the number num/den (den != 0)",
			Args: []prog.Field{{Name: "num", Type: prog.Int}, {Name: "den", Type: prog.Int}},
			Ret:  itemType,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				den := prog.IntArg(args, 1)
				if den == 0 {
					return nil, prog.Errnof(-1, "zero denominator")
				}
				return &item{kind: kindNumber, num: float64(prog.IntArg(args, 0)) / float64(den)}, nil
			},
		},
		{
			Name: "cJSON_CreateTrue",
			Ret:  itemType,
			Fn:   create(func(args []prog.Value) *item { return &item{kind: kindTrue} }),
		},
		{
			Name: "cJSON_CreateFalse",
			Ret:  itemType,
			Fn:   create(func(args []prog.Value) *item { return &item{kind: kindFalse} }),
		},
		{
			Name: "cJSON_CreateBool",
			Args: []prog.Field{{Name: "b", Type: prog.Int}},
			Ret:  itemType,
			Fn: create(func(args []prog.Value) *item {
				if prog.IntArg(args, 0) != 0 {
					return &item{kind: kindTrue}
				}
				return &item{kind: kindFalse}
			}),
		},
		{
			Name: "cJSON_CreateNull",
			Ret:  itemType,
			Fn:   create(func(args []prog.Value) *item { return &item{kind: kindNull} }),
		},
		{
			Name:    "cJSON_AddItemToObject",
			Doc:     "adds item to object under name, the object takes ownership of item",
			Args:    []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}, {Name: "item", Type: itemType}},
			Ret:     prog.Int,
			Consume: []int{2},
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				obj, err := container(args, 0, kindObject)
				if err != nil {
					return int64(0), err
				}
				c, err := arg(args, 2)
				if err != nil {
					return int64(0), err
				}
				if args[1] == nil || c == obj || c.parent != nil {
					return int64(0), prog.Errnof(-1, "bad name or item")
				}
				addToObject(obj, string(prog.BufArg(args, 1)), c)
				return int64(1), nil
			},
		},
		{
			Name:    "cJSON_AddItemToArray",
			Doc:     "appends item to array, the array takes ownership of item",
			Args:    []prog.Field{{Name: "array", Type: itemType}, {Name: "item", Type: itemType}},
			Ret:     prog.Int,
			Consume: []int{1},
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				arr, err := container(args, 0, kindArray)
				if err != nil {
					return int64(0), err
				}
				c, err := arg(args, 1)
				if err != nil {
					return int64(0), err
				}
				if c == arr || c.parent != nil {
					return int64(0), prog.Errnof(-1, "item already has a parent")
				}
				c.name = ""
				arr.attach(c)
				return int64(1), nil
			},
		},
		addHelper("cJSON_AddStringToObject", prog.Buffer, func(args []prog.Value) *item {
			return &item{kind: kindString, str: string(prog.BufArg(args, 2))}
		}),
		addHelper("cJSON_AddNumberToObject", prog.Int, func(args []prog.Value) *item {
			return &item{kind: kindNumber, num: float64(prog.IntArg(args, 2))}
		}),
		addHelper("cJSON_AddBoolToObject", prog.Int, func(args []prog.Value) *item {
			if prog.IntArg(args, 2) != 0 {
				return &item{kind: kindTrue}
			}
			return &item{kind: kindFalse}
		}),
		addHelper("cJSON_AddNullToObject", nil, func(args []prog.Value) *item {
			return &item{kind: kindNull}
		}),
		addHelper("cJSON_AddObjectToObject", nil, func(args []prog.Value) *item {
			return &item{kind: kindObject}
		}),
		addHelper("cJSON_AddArrayToObject", nil, func(args []prog.Value) *item {
			return &item{kind: kindArray}
		}),
		{
			Name: "cJSON_Print",
			Doc:  "renders item with tab indentation",
			Args: []prog.Field{{Name: "item", Type: itemType}},
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				return it.print(true), nil
			},
		},
		{
			Name: "cJSON_PrintUnformatted",
			Args: []prog.Field{{Name: "item", Type: itemType}},
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				return it.print(false), nil
			},
		},
		{
			Name: "cJSON_Parse",
			Doc:  "parses the first JSON value of text, returns NULL on syntax errors",
			Args: []prog.Field{{Name: "text", Type: prog.Buffer}},
			Ret:  itemType,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				if args[0] == nil {
					return nil, prog.Errnof(-1, "NULL text")
				}
				it, err := parse(prog.BufArg(args, 0))
				if err != nil {
					return nil, prog.Errnof(-1, "%v", err)
				}
				return it, nil
			},
		},
		getter("cJSON_GetObjectItemCaseSensitive", true),
		getter("cJSON_GetObjectItem", false),
		{
			Name: "cJSON_HasObjectItem",
			Args: []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				obj, err := container(args, 0, kindObject)
				if err != nil {
					return int64(0), nil
				}
				return prog.BoolInt(obj.find(string(prog.BufArg(args, 1)), false) != -1), nil
			},
		},
		{
			Name: "cJSON_GetArraySize",
			Args: []prog.Field{{Name: "array", Type: itemType}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return int64(0), nil
				}
				return int64(len(it.children)), nil
			},
		},
		{
			Name:   "cJSON_GetArrayItem",
			Args:   []prog.Field{{Name: "array", Type: itemType}, {Name: "index", Type: prog.Int}},
			Ret:    itemType,
			Borrow: true,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				idx := prog.IntArg(args, 1)
				if idx < 0 || idx >= int64(len(it.children)) {
					return nil, prog.Errnof(-1, "index %v out of range", idx)
				}
				return it.children[idx], nil
			},
		},
		{
			Name: "cJSON_GetNumberValue",
			Doc:  "returns the number truncated to an integer",
			Args: []prog.Field{{Name: "item", Type: itemType}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				if it.kind != kindNumber {
					return nil, prog.Errnof(-1, "not a number")
				}
				return saturate(it.num), nil
			},
		},
		{
			Name: "cJSON_GetStringValue",
			Args: []prog.Field{{Name: "item", Type: itemType}},
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				if it.kind != kindString {
					return nil, prog.Errnof(-1, "not a string")
				}
				return []byte(it.str), nil
			},
		},
		{
			Name: "cJSON_GetType",
			Doc:  "returns the cJSON_* type flag of item",
			Args: []prog.Field{{Name: "item", Type: itemType}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return int64(0), nil
				}
				return int64(1) << it.kind, nil
			},
		},
		isOp("cJSON_IsNumber", kindNumber),
		isOp("cJSON_IsString", kindString),
		isOp("cJSON_IsArray", kindArray),
		isOp("cJSON_IsObject", kindObject),
		isOp("cJSON_IsNull", kindNull),
		isOp("cJSON_IsTrue", kindTrue),
		isOp("cJSON_IsFalse", kindFalse),
		{
			Name: "cJSON_Duplicate",
			Doc:  "returns an independent copy of item, children are copied when recurse is set",
			Args: []prog.Field{{Name: "item", Type: itemType}, {Name: "recurse", Type: prog.Int}},
			Ret:  itemType,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, err := arg(args, 0)
				if err != nil {
					return nil, err
				}
				dup := it.duplicate(prog.IntArg(args, 1) != 0)
				dup.name = ""
				return dup, nil
			},
		},
		{
			Name: "cJSON_Compare",
			Args: []prog.Field{{Name: "a", Type: itemType}, {Name: "b", Type: itemType}, {Name: "case_sensitive", Type: prog.Int}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				a, err := arg(args, 0)
				if err != nil {
					return int64(0), nil
				}
				b, err := arg(args, 1)
				if err != nil {
					return int64(0), nil
				}
				return prog.BoolInt(compare(a, b, prog.IntArg(args, 2) != 0)), nil
			},
		},
		{
			Name: "cJSON_DetachItemFromObject",
			Doc:  "removes the member from object and returns it, the caller owns the result",
			Args: []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}},
			Ret:  itemType,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				obj, err := container(args, 0, kindObject)
				if err != nil {
					return nil, err
				}
				idx := obj.find(string(prog.BufArg(args, 1)), false)
				if idx == -1 {
					return nil, prog.Errnof(-1, "no member %q", prog.BufArg(args, 1))
				}
				return obj.detach(idx), nil
			},
		},
		{
			Name: "cJSON_DeleteItemFromObject",
			Doc:  "removes and frees the member of object",
			Args: []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}},
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				obj, err := container(args, 0, kindObject)
				if err != nil {
					return nil, err
				}
				if idx := obj.find(string(prog.BufArg(args, 1)), false); idx != -1 {
					obj.detach(idx).free()
				}
				return nil, nil
			},
		},
		{
			Name: "cJSON_DeleteItemFromArray",
			Args: []prog.Field{{Name: "array", Type: itemType}, {Name: "index", Type: prog.Int}},
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				arr, err := container(args, 0, kindArray)
				if err != nil {
					return nil, err
				}
				if idx := prog.IntArg(args, 1); idx >= 0 && idx < int64(len(arr.children)) {
					arr.detach(int(idx)).free()
				}
				return nil, nil
			},
		},
		{
			Name:    "cJSON_ReplaceItemInObject",
			Doc:     "replaces the member of object with item, the object takes ownership of item",
			Args:    []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}, {Name: "item", Type: itemType}},
			Ret:     prog.Int,
			Consume: []int{2},
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				obj, err := container(args, 0, kindObject)
				if err != nil {
					return int64(0), err
				}
				c, err := arg(args, 2)
				if err != nil {
					return int64(0), err
				}
				name := string(prog.BufArg(args, 1))
				idx := obj.find(name, false)
				if idx == -1 || c == obj || c.parent != nil {
					return int64(0), prog.Errnof(-1, "no member %q", name)
				}
				old := obj.children[idx]
				c.name, c.parent = old.name, obj
				obj.children[idx] = c
				old.free()
				return int64(1), nil
			},
		},
		{
			Name: "cJSON_Minify",
			Doc:  "returns json without whitespace and comments",
			Args: []prog.Field{{Name: "json", Type: prog.Buffer}},
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				return minify(prog.BufArg(args, 0)), nil
			},
		},
		{
			Name:    "cJSON_Delete",
			Doc:     "frees item and all its children",
			Args:    []prog.Field{{Name: "item", Type: itemType}},
			Release: true,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				it, ok := prog.ResArg[*item](args, 0)
				if !ok {
					// cJSON_Delete(NULL) is a no-op.
					return nil, nil
				}
				if it.freed {
					return nil, prog.Errnof(-1, "double free")
				}
				it.free()
				return nil, nil
			},
		},
		{
			Name: "cJSON_Version",
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				return []byte(cjsonVersion), nil
			},
		},
	}
	prog.RegisterTarget(target)
	registerFocal()
}

// addHelper describes cJSON_Add*ToObject: creates a value, adds it and returns a borrowed view.
func addHelper(name string, valType *prog.Type, create func(args []prog.Value) *item) *prog.Op {
	fields := []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}}
	if valType != nil {
		fields = append(fields, prog.Field{Name: "value", Type: valType})
	}
	return &prog.Op{
		Name:   name,
		Args:   fields,
		Ret:    itemType,
		Borrow: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			obj, err := container(args, 0, kindObject)
			if err != nil {
				return nil, err
			}
			if args[1] == nil || valType == prog.Buffer && args[2] == nil {
				return nil, prog.Errnof(-1, "NULL argument")
			}
			c := create(args)
			addToObject(obj, string(prog.BufArg(args, 1)), c)
			return c, nil
		},
	}
}

func getter(name string, caseSensitive bool) *prog.Op {
	return &prog.Op{
		Name:   name,
		Doc:    "returns the member of object called name (a borrowed view)",
		Args:   []prog.Field{{Name: "object", Type: itemType}, {Name: "name", Type: prog.Buffer}},
		Ret:    itemType,
		Borrow: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			obj, err := arg(args, 0)
			if err != nil {
				return nil, err
			}
			if obj.kind != kindObject || args[1] == nil {
				return nil, prog.Errnof(-1, "not an object")
			}
			idx := obj.find(string(prog.BufArg(args, 1)), caseSensitive)
			if idx == -1 {
				return nil, prog.Errnof(-1, "no member %q", prog.BufArg(args, 1))
			}
			return obj.children[idx], nil
		},
	}
}

func isOp(name string, k kind) *prog.Op {
	return &prog.Op{
		Name: name,
		Args: []prog.Field{{Name: "item", Type: itemType}},
		Ret:  prog.Int,
		Fn:   is(k),
	}
}

// saturate converts like cJSON's valueint.
func saturate(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int64(v)
}
