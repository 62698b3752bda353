package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/internal/schemafile"
	"github.com/wippyai/rowarena/schema"
	"github.com/wippyai/rowarena/tbl"
	"github.com/wippyai/rowarena/wasmmem"
	"github.com/wippyai/rowarena/witschema"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		tableFile   = flag.String("f", "", "Path to a YAML table description")
		witFile     = flag.String("wit", "", "Path to a WIT resolve in JSON form")
		record      = flag.String("record", "", "Record to lay out from -wit")
		interactive = flag.Bool("i", false, "Browse the table in a TUI")
		linear      = flag.Bool("wasm", false, "Back the table with WebAssembly linear memory")
		maxPages    = flag.Uint("pages", 256, "Linear memory limit in 64KiB pages (with -wasm)")
		verbose     = flag.Bool("v", false, "Log container diagnostics to stderr")
	)
	flag.Parse()

	if *tableFile == "" && *witFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: tblview -f <table.yaml> [-i] [-wasm] [-v]")
		fmt.Fprintln(os.Stderr, "       tblview -wit <resolve.json> -record <name>")
		return 1
	}

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		log = l
		defer log.Sync()
	}

	var err error
	if *witFile != "" {
		err = runWIT(os.Stdout, *witFile, *record, log)
	} else {
		err = run(*tableFile, *interactive, *linear, uint32(*maxPages), log)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func run(tableFile string, interactive, linear bool, maxPages uint32, log *zap.Logger) error {
	ctx := context.Background()
	opts := []rowarena.Option{rowarena.WithLogger(log)}

	if linear {
		mem, err := wasmmem.New(ctx, wasmmem.Config{MaxPages: maxPages}, opts...)
		if err != nil {
			return fmt.Errorf("linear memory: %w", err)
		}
		defer mem.Close(ctx)
		opts = append(opts, rowarena.WithAllocator(mem))
		defer func() {
			log.Info("linear memory usage", zap.Int("bytes", mem.Used()), zap.Uint32("pages", mem.Pages()))
		}()
	}

	f, err := schemafile.Load(tableFile)
	if err != nil {
		return err
	}
	t, err := f.Build(opts...)
	if err != nil {
		return err
	}
	defer t.Free()

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("-i needs a terminal on stdout")
		}
		return runInteractive(tableFile, t)
	}
	return t.Print(os.Stdout)
}

func runWIT(w io.Writer, witFile, record string, log *zap.Logger) error {
	if record == "" {
		return fmt.Errorf("-wit needs -record")
	}
	fh, err := os.Open(witFile)
	if err != nil {
		return err
	}
	defer fh.Close()

	res, err := wit.DecodeJSON(fh)
	if err != nil {
		return fmt.Errorf("decode resolve: %w", err)
	}
	td, err := witschema.FindRecord(res, record)
	if err != nil {
		return err
	}

	s, err := schema.New(rowarena.WithLogger(log))
	if err != nil {
		return err
	}
	defer s.Free()

	layout, err := witschema.New(s, rowarena.WithLogger(log)).AddRecord(td)
	if err != nil {
		return err
	}
	return printLayout(w, s, layout)
}

func printLayout(w io.Writer, s *schema.Schema, layout int) error {
	l, err := s.Layout(layout)
	if err != nil {
		return err
	}
	t, err := tbl.New()
	if err != nil {
		return err
	}
	defer t.Free()

	// The layout listing is itself a table.
	cols := []struct {
		name string
		typ  schema.FieldType
		size int
	}{
		{"field", schema.Str, 0},
		{"type", schema.Str, 0},
		{"offset", schema.Int, 4},
		{"size", schema.Int, 4},
		{"values", schema.Str, 0},
	}
	l0, _ := t.AddLayout(len(cols))
	for _, c := range cols {
		def, err := t.AddDef(c.typ, c.name, c.size, 0)
		if err != nil {
			return err
		}
		if _, err := t.AddField(l0, def, 0); err != nil {
			return err
		}
	}
	if err := t.InitRows(l.Fields.Len()); err != nil {
		return err
	}

	for _, f := range l.Fields.All() {
		d, _ := s.Def(f.Def)
		r, err := t.AddRow()
		if err != nil {
			return err
		}
		for _, err := range []error{
			t.SetCellStr(r, 0, 0, s.DefName(f.Def)),
			t.SetCellStr(r, 0, 1, d.Type.String()),
			t.SetCellUint(r, 0, 2, uint64(f.Offset)),
			t.SetCellUint(r, 0, 3, uint64(f.Size)),
			t.SetCellStr(r, 0, 4, strings.Join(s.Labels(f.Def), ",")),
		} {
			if err != nil {
				return err
			}
		}
	}
	if err := t.Print(w); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "row size %d\n", l.RowSize)
	return err
}
