package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
	"github.com/calvinalkan/eeflash/pkg/flash"
)

// REPL is the interactive command loop over one image.
type REPL struct {
	path   string
	mem    *flash.Mem
	engine *eeprom.EEPROM
	liner  *liner.State
	dirty  bool
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".eep_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	params := r.engine.Params()

	fmt.Printf("eep - emulated EEPROM CLI (page_size=%d, sectors=%d, pages/sector=%d, capacity=%d)\n",
		params.PageSize, params.Sectors, params.PagesPerSector, params.Capacity())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("eep> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()

			if err := r.flush(); err != nil {
				return err
			}

			fmt.Println("Bye!")

			return nil

		case "help", "?":
			r.printHelp()

		case "read", "r":
			r.cmdRead(args)

		case "write", "w":
			r.cmdWrite(args)

		case "fill":
			r.cmdFill(args)

		case "info":
			r.cmdInfo()

		case "pages":
			r.cmdPages()

		case "dump":
			r.cmdDump(args)

		case "swap-demo":
			r.cmdSwapDemo(args)

		case "save":
			if err := r.flush(); err != nil {
				fmt.Printf("Error saving: %v\n", err)
			} else {
				fmt.Printf("OK: saved %s\n", r.path)
			}

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return r.flush()
}

// flush persists the image if any write happened since the last save.
func (r *REPL) flush() error {
	if !r.dirty {
		return nil
	}

	if err := flash.SaveImage(r.path, r.mem); err != nil {
		return err
	}

	r.dirty = false

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"read", "write", "fill",
		"info", "pages", "dump", "swap-demo", "save",
		"clear", "cls", "help",
		"exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  read <addr>              Read a logical address")
	fmt.Println("  write <addr> <value>     Write a logical address")
	fmt.Println("  fill <count> [start]     Write count sequential test values")
	fmt.Println("  info                     Show engine parameters and sector stats")
	fmt.Println("  pages                    Show the page status map")
	fmt.Println("  dump <sector> <page>     Hex-dump a page's entries")
	fmt.Println("  swap-demo [sector]       Churn one key until the sector swaps pages")
	fmt.Println("  save                     Persist the image file")
	fmt.Println("  help                     Show this help")
	fmt.Println("  exit / quit / q          Save and exit")
	fmt.Println()
	fmt.Println("Addresses and values accept decimal or 0x-prefixed hex.")
}

// parseU16 parses a decimal or 0x-prefixed 16-bit number.
func parseU16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("not a 16-bit number: %q", s)
	}

	return uint16(v), nil
}

func (r *REPL) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: read <addr>")

		return
	}

	addr, err := parseU16(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	value, status, err := r.engine.Read(addr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	switch status {
	case eeprom.Found:
		fmt.Printf("%#06x = %#06x\n", addr, value)
	case eeprom.Empty:
		fmt.Printf("%#06x = (empty)\n", addr)
	case eeprom.Fault:
		fmt.Printf("%#06x: sector faulted and was re-initialized\n", addr)

		r.dirty = true
	}
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: write <addr> <value>")

		return
	}

	addr, err := parseU16(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	value, err := parseU16(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if err := r.engine.Write(addr, value); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.dirty = true

	fmt.Printf("OK: %#06x = %#06x\n", addr, value)
}

func (r *REPL) cmdFill(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fill <count> [start]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Println("Error: count must be a positive integer")

		return
	}

	start := uint16(0)

	if len(args) >= 2 {
		start, err = parseU16(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)

			return
		}
	}

	capacity := r.engine.Params().Capacity()

	written := 0

	for i := 0; i < count; i++ {
		addr := int(start) + i
		if addr >= capacity {
			fmt.Printf("Stopping at capacity (%d addresses)\n", capacity)

			break
		}

		if err := r.engine.Write(uint16(addr), uint16(addr)); err != nil {
			fmt.Printf("Error at %#06x: %v\n", addr, err)

			break
		}

		written++
	}

	if written > 0 {
		r.dirty = true
	}

	fmt.Printf("OK: wrote %d entries\n", written)
}

func (r *REPL) cmdInfo() {
	params := r.engine.Params()

	fmt.Printf("Image: %s\n", r.path)
	fmt.Printf("  Page size:        %d bytes\n", params.PageSize)
	fmt.Printf("  Sectors:          %d\n", params.Sectors)
	fmt.Printf("  Pages per sector: %d\n", params.PagesPerSector)
	fmt.Printf("  Entries per page: %d\n", params.EntriesPerPage())
	fmt.Printf("  Capacity:         %d halfwords\n", params.Capacity())
	fmt.Println()

	for _, s := range r.engine.Stats() {
		fmt.Printf("  Sector %d: active page %d, %d/%d slots used, %d live keys\n",
			s.Sector, s.ActivePage, s.UsedSlots, params.EntriesPerPage(), s.LiveKeys)
	}
}

// pageBase mirrors the engine's on-flash layout: the emulated region
// ends at EndAddr and pages are laid out sector-major.
func (r *REPL) pageBase(sector, page int) uint32 {
	params := r.engine.Params()
	start := params.EndAddr - uint32(params.Sectors*params.PagesPerSector)*params.PageSize

	return start + uint32(sector*params.PagesPerSector+page)*params.PageSize
}

func (r *REPL) cmdPages() {
	params := r.engine.Params()

	for sector := 0; sector < params.Sectors; sector++ {
		fmt.Printf("Sector %d:\n", sector)

		for page := 0; page < params.PagesPerSector; page++ {
			status := r.mem.Uint16(r.pageBase(sector, page))

			var label string

			switch status {
			case 0x0000:
				label = "ACTIVE"
			case 0xFFFF:
				label = "erased"
			default:
				label = fmt.Sprintf("stale (%#06x)", status)
			}

			fmt.Printf("  page %d @ %#010x: %s\n", page, r.pageBase(sector, page), label)
		}
	}
}

func (r *REPL) cmdDump(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: dump <sector> <page>")

		return
	}

	params := r.engine.Params()

	sector, err := strconv.Atoi(args[0])
	if err != nil || sector < 0 || sector >= params.Sectors {
		fmt.Printf("Error: sector must be in [0,%d)\n", params.Sectors)

		return
	}

	page, err := strconv.Atoi(args[1])
	if err != nil || page < 0 || page >= params.PagesPerSector {
		fmt.Printf("Error: page must be in [0,%d)\n", params.PagesPerSector)

		return
	}

	base := r.pageBase(sector, page)

	fmt.Printf("Sector %d page %d @ %#010x, status %#06x\n", sector, page, base, r.mem.Uint16(base))

	for i := 0; i < params.EntriesPerPage(); i++ {
		addr := base + 4 + uint32(i)*4

		word := r.mem.Uint32(addr)
		if word == 0xFFFFFFFF {
			fmt.Printf("  [%3d] (empty, %d slots follow)\n", i, params.EntriesPerPage()-i)

			break
		}

		fmt.Printf("  [%3d] addr=%#06x value=%#06x\n", i, uint16(word), uint16(word>>16))
	}
}

// cmdSwapDemo appends alternating values to the sector's first logical
// address until the active page rotates, showing the wear-leveling swap
// end to end.
func (r *REPL) cmdSwapDemo(args []string) {
	params := r.engine.Params()

	sector := 0

	if len(args) >= 1 {
		var err error

		sector, err = strconv.Atoi(args[0])
		if err != nil || sector < 0 || sector >= params.Sectors {
			fmt.Printf("Error: sector must be in [0,%d)\n", params.Sectors)

			return
		}
	}

	before := r.engine.Stats()[sector]
	key := uint16(sector * params.EntriesPerPage())

	fmt.Printf("Before: active page %d, %d/%d slots used\n",
		before.ActivePage, before.UsedSlots, params.EntriesPerPage())

	// Alternating values so every write appends a fresh entry. At most
	// one extra iteration is lost to an idempotent no-op up front.
	values := []uint16{0xA5A5, 0x5A5A}
	writes := 0

	for i := 0; i <= params.EntriesPerPage()+1; i++ {
		if err := r.engine.Write(key, values[i%2]); err != nil {
			fmt.Printf("Error at write %d: %v\n", writes+1, err)

			return
		}

		writes++
		r.dirty = true

		if r.engine.Stats()[sector].ActivePage != before.ActivePage {
			break
		}
	}

	after := r.engine.Stats()[sector]

	if after.ActivePage == before.ActivePage {
		fmt.Println("No swap occurred (page did not fill)")

		return
	}

	fmt.Printf("After:  active page %d, %d/%d slots used, %d live keys (%d writes to %#06x)\n",
		after.ActivePage, after.UsedSlots, params.EntriesPerPage(), after.LiveKeys, writes, key)
	fmt.Printf("Old page %d is erased; run 'pages' to see the ring.\n", before.ActivePage)
}
