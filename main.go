package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ako-systems/autoplayer/internal/clock"
	"github.com/ako-systems/autoplayer/internal/config"
	"github.com/ako-systems/autoplayer/internal/display"
	"github.com/ako-systems/autoplayer/internal/keymap"
	"github.com/ako-systems/autoplayer/internal/midiparse"
	"github.com/ako-systems/autoplayer/internal/playback"
	"github.com/ako-systems/autoplayer/internal/scheduler"
)

// Global flags, set by parseArgs (the teacher's hand-rolled switch style,
// main.go's --soundfont handling, generalized to this domain's options).
var (
	keymapPath string
	configPath string
	tempoFlag  float64
)

func main() {
	args := parseArgs(os.Args[1:])

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]

	switch command {
	case "play":
		if len(args) < 2 {
			fmt.Println("Error: play requires a MIDI file")
			printUsage()
			os.Exit(1)
		}
		playFile(args[1])
	case "export":
		if len(args) < 3 {
			fmt.Println("Error: export requires a format (csv|notation) and a MIDI file")
			printUsage()
			os.Exit(1)
		}
		outputPath := ""
		if len(args) >= 4 {
			outputPath = args[3]
		}
		exportFile(args[1], args[2], outputPath)
	case "keymap":
		if len(args) < 2 {
			fmt.Println("Error: keymap requires an output path")
			printUsage()
			os.Exit(1)
		}
		writeDefaultKeyMap(args[1])
	case "config":
		if len(args) < 2 {
			fmt.Println("Error: config requires an output path")
			printUsage()
			os.Exit(1)
		}
		writeDefaultConfig(args[1])
	case "serve":
		addr := ":8080"
		if len(args) >= 2 {
			addr = args[1]
		}
		serve(addr)
	default:
		printUsage()
		os.Exit(1)
	}
}

// parseArgs extracts flags and returns remaining args (mirrors the
// teacher's parseArgs: scan for recognized flags, fall through
// unrecognized tokens into the positional remainder).
func parseArgs(args []string) []string {
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--keymap" || arg == "-k":
			if i+1 < len(args) {
				keymapPath = args[i+1]
				i++
			} else {
				fmt.Println("Error: --keymap requires a path")
				os.Exit(1)
			}
		case strings.HasPrefix(arg, "--keymap="):
			keymapPath = strings.TrimPrefix(arg, "--keymap=")
		case arg == "--config" || arg == "-c":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			} else {
				fmt.Println("Error: --config requires a path")
				os.Exit(1)
			}
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--tempo" || arg == "-t":
			if i+1 < len(args) {
				tempoFlag, _ = strconv.ParseFloat(args[i+1], 64)
				i++
			} else {
				fmt.Println("Error: --tempo requires a number")
				os.Exit(1)
			}
		case strings.HasPrefix(arg, "--tempo="):
			tempoFlag, _ = strconv.ParseFloat(strings.TrimPrefix(arg, "--tempo="), 64)
		case arg == "--help" || arg == "-h":
			printUsage()
			os.Exit(0)
		default:
			remaining = append(remaining, arg)
		}
	}

	if configPath == "" {
		configPath = os.Getenv("AUTOPLAYER_CONFIG")
	}

	return remaining
}

func loadServiceConfig() config.Config {
	if configPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Warning: could not load config %s: %v (using defaults)\n", configPath, err)
		defaults := config.Default()
		return defaults
	}
	return *cfg
}

func buildClock(cfg config.Config, log *logrus.Entry) clock.Clock {
	if !cfg.NTP.Enabled {
		return clock.NewLocalClock()
	}
	ncfg := clock.DefaultNetworkClockConfig()
	ncfg.Servers = cfg.NTP.Servers
	ncfg.MaxTries = cfg.NTP.MaxTries
	ncfg.AdjustThresholdMs = cfg.NTP.AdjustThresholdMs
	ncfg.IncludeDelta = cfg.NTP.IncludeDelta
	if cfg.NTP.TimeoutSeconds > 0 {
		ncfg.Timeout = time.Duration(cfg.NTP.TimeoutSeconds * float64(time.Second))
	}
	if cfg.NTP.ResyncIntervalSec > 0 {
		ncfg.ResyncInterval = time.Duration(cfg.NTP.ResyncIntervalSec * float64(time.Second))
	}
	nc := clock.NewNetworkClock(ncfg, log)
	nc.Start()
	return nc
}

func buildService(cfg config.Config, log *logrus.Entry) (*playback.Service, error) {
	clk := buildClock(cfg, log)
	svc := playback.NewService(nil, clk, log)

	km := keymap.Default21Key()
	if keymapPath != "" {
		loaded, err := keymap.LoadKeyMap(keymapPath)
		if err != nil {
			return nil, fmt.Errorf("loading keymap: %w", err)
		}
		km = loaded
	}
	svc.SetKeyMap(km)

	tempo := cfg.Playback.TempoDefault
	if tempoFlag > 0 {
		tempo = tempoFlag
	}
	svc.SetTempo(tempo)

	return svc, nil
}

func playFile(path string) {
	log := logrus.NewEntry(logrus.StandardLogger())
	cfg := loadServiceConfig()
	svc, err := buildService(cfg, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	svc.SetCallbacks(scheduler.Callbacks{
		OnComplete: func() { close(done) },
		OnError: func(err error) {
			fmt.Printf("Error during playback: %v\n", err)
		},
	})

	if err := svc.StartFromPath(path); err != nil {
		fmt.Printf("Error starting playback: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("♪ Playing... (Press Ctrl+C to stop)")

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		<-done
		fmt.Println("\n✓ Playback complete!")
		return
	}

	model := display.NewProgressModel(filepath.Base(path), svc)
	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-done
		p.Send(tea.Quit())
	}()
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running display: %v\n", err)
	}
	fmt.Println("\n✓ Playback complete!")
}

func exportFile(format, midiFile, outputPath string) {
	pr, err := midiparse.Parse(midiFile)
	if err != nil {
		fmt.Printf("Error parsing MIDI: %v\n", err)
		os.Exit(1)
	}

	base := filepath.Base(midiFile)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	switch format {
	case "csv":
		if outputPath == "" {
			outputPath = stem + ".csv"
		}
		f, err := os.Create(outputPath)
		if err != nil {
			fmt.Printf("Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := display.ExportCSV(pr.Events, f); err != nil {
			fmt.Printf("Error exporting CSV: %v\n", err)
			os.Exit(1)
		}
	case "notation":
		if outputPath == "" {
			outputPath = stem + ".notation.txt"
		}
		km := keymap.Default21Key()
		if keymapPath != "" {
			if loaded, err := keymap.LoadKeyMap(keymapPath); err == nil {
				km = loaded
			}
		}
		mapper := keymap.NewMapper(km)
		dispatchEvents := mapper.Map(pr.Events, nil)
		notation := display.ExportKeyNotation(dispatchEvents)
		if err := os.WriteFile(outputPath, []byte(notation), 0o644); err != nil {
			fmt.Printf("Error writing notation: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Error: unknown export format %q (want csv or notation)\n", format)
		os.Exit(1)
	}

	fmt.Printf("\n✓ Exported to: %s\n", outputPath)
}

func writeDefaultKeyMap(path string) {
	km := keymap.Default21Key()
	if err := km.Save(path); err != nil {
		fmt.Printf("Error writing keymap: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Wrote default keymap to %s\n", path)
}

func writeDefaultConfig(path string) {
	cfg := config.Default()
	if err := cfg.Save(path); err != nil {
		fmt.Printf("Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Wrote default config to %s\n", path)
}

func serve(addr string) {
	log := logrus.NewEntry(logrus.StandardLogger())
	cfg := loadServiceConfig()
	svc, err := buildService(cfg, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	api := playback.NewHTTPAPI(svc)
	fmt.Printf("Listening on %s\n", addr)
	if err := http.ListenAndServe(addr, api.Handler()); err != nil {
		fmt.Printf("Error: server failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Autoplayer v0.1")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  autoplayer play <file.mid>                    Play a MIDI file as keystrokes")
	fmt.Println("  autoplayer export csv <file.mid> [out.csv]    Export the event table as CSV")
	fmt.Println("  autoplayer export notation <file.mid> [out]   Export key notation text")
	fmt.Println("  autoplayer keymap <out.json>                  Write the default 21-key map")
	fmt.Println("  autoplayer config <out.json>                  Write the default config")
	fmt.Println("  autoplayer serve [addr]                       Run the HTTP command channel")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --keymap, -k <path>       Key map JSON to use instead of the default layout")
	fmt.Println("  --config, -c <path>       Config JSON (ntp.*, playback.*)")
	fmt.Println("  --tempo, -t <multiplier>  Tempo multiplier (0.25-3.0), overrides config")
	fmt.Println("  --help, -h                Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  AUTOPLAYER_CONFIG         Default config path")
}
