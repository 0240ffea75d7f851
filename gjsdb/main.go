package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/dop251/gjsdb"
	"github.com/dop251/gjsdb/console"
)

var configFile = flag.String("config", "", "read settings from a YAML `file`")
var stopOnEntry = flag.Bool("stop-on-entry", false, "pause before the first statement")
var hitprofile = flag.String("hitprofile", "", "write statement hit counts as a pprof profile to file")
var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
var timelimit = flag.Int("timelimit", 0, "max time to run (in seconds)")
var noColor = flag.Bool("no-color", false, "do not color source listings")
var prompt = flag.String("prompt", gjsdb.DefaultPrompt, "console prompt")

type breakpointFlags []string

func (b *breakpointFlags) String() string {
	return strings.Join(*b, ",")
}

func (b *breakpointFlags) Set(s string) error {
	if _, err := gjsdb.ParseLocation(s); err != nil {
		return err
	}
	*b = append(*b, s)
	return nil
}

var breaks breakpointFlags

func init() {
	flag.Var(&breaks, "break", "set a breakpoint at `location` (FUNC, URL:LINE or /RE/:LINE); may be repeated")
}

func loadConfig() (*gjsdb.Config, error) {
	cfg, err := gjsdb.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stop-on-entry":
			cfg.StopOnEntry = *stopOnEntry
		case "hitprofile":
			cfg.HitProfile = *hitprofile
		case "no-color":
			cfg.Color = !*noColor
		case "prompt":
			cfg.Prompt = *prompt
		}
	})
	cfg.Breakpoints = append(cfg.Breakpoints, breaks...)
	return cfg, nil
}

func run() error {
	filename := flag.Arg(0)
	if filename == "" {
		return fmt.Errorf("usage: %s [flags] script.js", os.Args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	debuggee := gjsdb.NewDebuggee(gjsdb.WithLogger(logger), gjsdb.WithModulePaths(cfg.ModulePaths...))

	opts := []gjsdb.Option{gjsdb.WithLogger(logger)}
	if cfg.Bootstrap != "" {
		b, err := os.ReadFile(cfg.Bootstrap)
		if err != nil {
			return err
		}
		opts = append(opts, gjsdb.WithBootstrap(cfg.Bootstrap, string(b)))
	}
	realm, err := gjsdb.NewRealm(debuggee, opts...)
	if err != nil {
		return err
	}
	defer realm.Close()

	con, err := console.Setup(realm,
		console.WithPrompt(cfg.Prompt),
		console.WithColor(cfg.Color),
		console.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer con.Close()

	dbg := realm.Debugger()
	for _, spec := range cfg.Breakpoints {
		loc, err := gjsdb.ParseLocation(spec)
		if err != nil {
			return err
		}
		if _, err := loc.Apply(dbg); err != nil {
			return err
		}
	}
	dbg.SetStopOnEntry(cfg.StopOnEntry)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		for range sig {
			dbg.Pause()
		}
	}()

	if *timelimit > 0 {
		time.AfterFunc(time.Duration(*timelimit)*time.Second, func() {
			debuggee.Interrupt("timeout")
		})
	}

	_, err = debuggee.RunFile(filename)

	if cfg.HitProfile != "" {
		f, perr := os.Create(cfg.HitProfile)
		if perr != nil {
			return perr
		}
		defer f.Close()
		if perr := dbg.WriteProfile(f); perr != nil {
			return perr
		}
	}
	return err
}

// dumpPanic writes x with the current stack. Called from a deferred
// recover it shows where the panic happened, which is lost once it is
// re-raised.
func dumpPanic(w io.Writer, x any) {
	fmt.Fprintf(w, "panic: %v\n%s", x, debug.Stack())
}

func main() {
	defer func() {
		if x := recover(); x != nil {
			dumpPanic(os.Stderr, x)
			panic(x)
		}
	}()
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := run(); err != nil {
		switch err := err.(type) {
		case *goja.Exception:
			fmt.Println(err.String())
		case *goja.InterruptedError:
			fmt.Println(err.String())
		default:
			fmt.Println(err)
		}
		os.Exit(64)
	}
}
