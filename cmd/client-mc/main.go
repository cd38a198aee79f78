package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/logging"
	"github.com/danmuck/mosaicctl/internal/mosaic"
)

var (
	// ErrNavigateBack signals caller-intent to return to the previous menu.
	ErrNavigateBack = errors.New("navigate back")
	// ErrNavigateExit signals caller-intent to exit the interactive client.
	ErrNavigateExit = errors.New("navigate exit")
)

// App drives the interactive operator console against one mosaic admin
// endpoint.
type App struct {
	reader *bufio.Reader
	addr   string
	admin  *mosaic.AdminClient
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:4080", "mosaic admin address")
	flag.Parse()

	logging.ConfigureRuntime()
	app, err := NewApp(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client-mc: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "client-mc: %v\n", err)
		os.Exit(1)
	}
}

func NewApp(addr string) (*App, error) {
	admin, err := mosaic.NewAdminClient(addr)
	if err != nil {
		return nil, err
	}
	return &App{
		reader: bufio.NewReader(os.Stdin),
		addr:   strings.TrimSpace(addr),
		admin:  admin,
	}, nil
}

// Run executes the main interactive menu loop.
func (a *App) Run() error {
	log.Info().Str("addr", a.addr).Msg("client-mc connected target")
	for {
		a.printMainMenu()
		choice, err := a.promptInt("Choose", 1, 12, false, true)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) {
				return a.exitClient()
			}
			return err
		}
		switch choice {
		case 1:
			if err := a.showStatus(); err != nil {
				log.Error().Err(err).Msg("status failed")
			}
		case 2:
			if err := a.listTiles(); err != nil {
				log.Error().Err(err).Msg("list tiles failed")
			}
		case 3:
			if err := a.showQueues(); err != nil {
				log.Error().Err(err).Msg("show queues failed")
			}
		case 4:
			if err := a.showCallbacks(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("show callbacks failed")
			}
		case 5:
			if err := a.addTile(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("add tile failed")
			}
		case 6:
			if err := a.removeTile(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("remove tile failed")
			}
		case 7:
			if err := a.runTile(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("run tile failed")
			}
		case 8:
			if err := a.requestAction(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("request action failed")
			}
		case 9:
			if err := a.checkQueue(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("check queue failed")
			}
		case 10:
			if err := a.popQueue(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				log.Error().Err(err).Msg("pop queue failed")
			}
		case 11:
			if err := a.stopManager(); err != nil {
				log.Error().Err(err).Msg("stop manager failed")
			}
		case 12:
			return a.exitClient()
		}
	}
}

func (a *App) exitClient() error {
	log.Info().Msg("client-mc exiting")
	return nil
}

func (a *App) printMainMenu() {
	fmt.Println()
	fmt.Println("Client MC")
	fmt.Printf("  target: %s\n", a.addr)
	fmt.Println("  1) Show manager status")
	fmt.Println("  2) List tiles")
	fmt.Println("  3) Show queues")
	fmt.Println("  4) Show recent callbacks")
	fmt.Println("  5) Add tile")
	fmt.Println("  6) Remove tile")
	fmt.Println("  7) Run tile")
	fmt.Println("  8) Request action")
	fmt.Println("  9) Check queue head")
	fmt.Println("  10) Pop queue head")
	fmt.Println("  11) Stop manager listener")
	fmt.Println("  12) Exit")
}

func (a *App) showStatus() error {
	payload, err := a.admin.Status()
	if err != nil {
		return err
	}
	return printPayload("Manager Status", payload)
}

func (a *App) listTiles() error {
	payload, err := a.admin.Tiles()
	if err != nil {
		return err
	}
	return printPayload("Tiles", payload)
}

func (a *App) showQueues() error {
	payload, err := a.admin.Queues()
	if err != nil {
		return err
	}
	return printPayload("Queues", payload)
}

func (a *App) showCallbacks() error {
	limit, err := a.promptOptionalLimit()
	if err != nil {
		return err
	}
	payload, err := a.admin.Callbacks(limit)
	if err != nil {
		return err
	}
	return printPayload("Recent Callbacks", payload)
}

func (a *App) addTile() error {
	path, err := a.promptRequired("program path")
	if err != nil {
		return err
	}
	payload, err := a.admin.AddTile(path)
	if err != nil {
		return err
	}
	return printPayload("Added Tile", payload)
}

func (a *App) removeTile() error {
	name, err := a.promptRequired("tile name")
	if err != nil {
		return err
	}
	if err := a.admin.RemoveTile(name); err != nil {
		return err
	}
	fmt.Printf("Removed tile %q\n", name)
	return nil
}

func (a *App) runTile() error {
	name, err := a.promptRequired("tile name")
	if err != nil {
		return err
	}
	path, err := a.promptLine("program path (empty when already tracked)")
	if err != nil {
		return err
	}
	if err := a.admin.RunTile(name, strings.TrimSpace(path)); err != nil {
		return err
	}
	fmt.Printf("Launch requested for tile %q\n", name)
	return nil
}

func (a *App) requestAction() error {
	name, err := a.promptRequired("tile name")
	if err != nil {
		return err
	}
	kind, err := a.promptRequired("action kind")
	if err != nil {
		return err
	}
	raw, err := a.promptLine("values (JSON array, empty for none)")
	if err != nil {
		return err
	}
	values, err := parseValues(raw)
	if err != nil {
		return err
	}
	if err := a.admin.RequestAction(name, kind, values); err != nil {
		return err
	}
	fmt.Printf("Queued %q for tile %q\n", kind, name)
	return nil
}

func (a *App) checkQueue() error {
	name, err := a.promptRequired("tile name")
	if err != nil {
		return err
	}
	payload, err := a.admin.CheckQueue(name)
	if err != nil {
		return err
	}
	return printPayload("Queue Head", payload)
}

func (a *App) popQueue() error {
	name, err := a.promptRequired("tile name")
	if err != nil {
		return err
	}
	if err := a.admin.PopQueue(name); err != nil {
		return err
	}
	fmt.Printf("Popped queue head for tile %q\n", name)
	return nil
}

func (a *App) stopManager() error {
	if err := a.admin.Stop(); err != nil {
		return err
	}
	fmt.Println("Stop requested; the manager keeps its port for a later run.")
	return nil
}

// promptRequired re-prompts until a non-empty line or a back request.
func (a *App) promptRequired(label string) (string, error) {
	for {
		line, err := a.promptLine(fmt.Sprintf("%s [back|b]", label))
		if err != nil {
			return "", err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "back" || trimmed == "b" {
			return "", ErrNavigateBack
		}
		if trimmed != "" {
			return trimmed, nil
		}
		fmt.Println("Value required.")
	}
}

func (a *App) promptOptionalLimit() (int, error) {
	limitRaw, err := a.promptLine("limit (default 20)")
	if err != nil {
		return 0, err
	}
	limit := 20
	if strings.TrimSpace(limitRaw) != "" {
		parsed, parseErr := strconv.Atoi(strings.TrimSpace(limitRaw))
		if parseErr != nil || parsed <= 0 {
			return 0, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	return limit, nil
}

func (a *App) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Printf("%s: ", label)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) promptInt(label string, min int, max int, allowBack bool, allowExit bool) (int, error) {
	for {
		rangePrompt := fmt.Sprintf("%s [%d-%d", label, min, max)
		if allowBack {
			rangePrompt += "|back|b"
		}
		if allowExit {
			rangePrompt += "|exit|e"
		}
		rangePrompt += "]"
		line, err := a.promptLine(rangePrompt)
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if allowBack && (trimmed == "back" || trimmed == "b") {
			return 0, ErrNavigateBack
		}
		if allowExit && (trimmed == "exit" || trimmed == "e") {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Println("Invalid selection.")
			continue
		}
		return v, nil
	}
}

// parseValues reads an action value list from operator input. Empty
// input means an empty list.
func parseValues(raw string) ([]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var values []any
	if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
		return nil, fmt.Errorf("values must be a JSON array: %w", err)
	}
	return values, nil
}

func printPayload(title string, payload any) error {
	rendered, err := formatPayload(payload)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(title)
	fmt.Println(rendered)
	return nil
}

func formatPayload(payload any) (string, error) {
	if payload == nil {
		return "  (none)", nil
	}
	data, err := json.MarshalIndent(payload, "  ", "  ")
	if err != nil {
		return "", fmt.Errorf("render payload: %w", err)
	}
	return "  " + string(data), nil
}
