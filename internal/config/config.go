// Package config loads paging engine configuration from CUE files.
//
// A config file holds top-level fields that are unified with the embedded
// #Config schema, which supplies defaults and bounds:
//
//	page_size: 10
//	max_items: 200
//	placeholders_on_evict: true
//
// Unknown fields are rejected because #Config is closed.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pagechain/internal/engine"
	"github.com/roach88/pagechain/internal/paging"
)

//go:embed schema.cue
var schemaCUE string

const schemaFile = "schema.cue"

// File is a decoded configuration.
type File struct {
	PageSize            int    `json:"page_size"`
	MaxItems            int    `json:"max_items"`
	MaxCachedPages      int    `json:"max_cached_pages"`
	PlaceholdersOnEvict bool   `json:"placeholders_on_evict"`
	CollectOnlyLatest   bool   `json:"collect_only_latest"`
	StorePageItems      bool   `json:"store_page_items"`
	MaxBackfillPages    int    `json:"max_backfill_pages"`
	DefaultKey          *int   `json:"default_key,omitempty"`
	LogLevel            string `json:"log_level"`
}

// Error is a configuration error located in a CUE source.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Errors is the list of problems found in one configuration.
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Default returns the configuration an empty file produces.
func Default() File {
	f, err := FromValue(map[string]any{})
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema rejects empty config: %v", err))
	}
	return *f
}

// Load reads a .cue file, or every .cue file of a directory, and decodes it
// against the schema.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("config not found: %v", err)}
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &Error{Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, convert(inst.Err, nil)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, convert(err, nil)
	}
	return decode(ctx, v)
}

// Parse decodes CUE source text. name is used in error positions.
func Parse(name string, src []byte) (*File, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, convert(err, nil)
	}
	return decode(ctx, v)
}

// FromValue validates a Go value, typically a decoded YAML mapping, against
// the schema and fills in defaults.
func FromValue(x any) (*File, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(x)
	if err := v.Err(); err != nil {
		return nil, convert(err, nil)
	}
	return decode(ctx, v)
}

func decode(ctx *cue.Context, v cue.Value) (*File, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convert(err, &v)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, convert(err, &v)
	}
	return &f, nil
}

// convert flattens CUE errors into Errors. Each keeps its first position
// outside the embedded schema. When CUE reports none and src is set, the
// position of the offending field in src is used instead.
func convert(err error, src *cue.Value) error {
	var out Errors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ce := &Error{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Pos:     userPos(cueerrors.Positions(e)),
		}
		if !ce.Pos.IsValid() && src != nil {
			ce.Pos = fieldPos(*src, e.Path())
		}
		out = append(out, ce)
	}
	if len(out) == 0 {
		return err
	}
	// Located errors first.
	slices.SortStableFunc(out, func(a, b *Error) int {
		switch {
		case a.Pos.IsValid() == b.Pos.IsValid():
			return 0
		case a.Pos.IsValid():
			return -1
		default:
			return 1
		}
	})
	return out
}

func userPos(positions []token.Pos) token.Pos {
	for _, p := range positions {
		if p.IsValid() && p.Filename() != schemaFile {
			return p
		}
	}
	return token.NoPos
}

// fieldPos locates path in v. Definition selectors such as #Config only
// exist after unification with the schema and are skipped.
func fieldPos(v cue.Value, path []string) token.Pos {
	var sels []cue.Selector
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		sels = append(sels, cue.Str(p))
	}
	if len(sels) == 0 {
		return token.NoPos
	}
	field := v.LookupPath(cue.MakePath(sels...))
	if !field.Exists() {
		return token.NoPos
	}
	return field.Pos()
}

// Engine converts the file into an engine configuration for int-keyed
// sources.
func (f *File) Engine() engine.Config[int] {
	cfg := engine.Config[int]{
		PageSize:            f.PageSize,
		MaxItems:            f.MaxItems,
		MaxCachedPages:      f.MaxCachedPages,
		PlaceholdersOnEvict: f.PlaceholdersOnEvict,
		CollectOnlyLatest:   f.CollectOnlyLatest,
		StorePageItems:      f.StorePageItems,
		MaxBackfillPages:    f.MaxBackfillPages,
	}
	if f.DefaultKey != nil {
		key := *f.DefaultKey
		cfg.DefaultParams = func() paging.LoadParams[int] {
			return paging.LoadParams[int]{Key: paging.Some(key)}
		}
	}
	return cfg
}

// Level returns the slog level named by LogLevel.
func (f *File) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
