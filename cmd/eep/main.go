// eep is a CLI for inspecting and manipulating emulated-EEPROM flash images.
//
// Usage:
//
//	eep <image>              Open an existing image file
//	eep new [opts] <image>   Create a new image file
//
// Options for 'new':
//
//	-p, --page-size    Flash page size in bytes (default: prompts)
//	-n, --pages        Pages per sector (default: prompts)
//	-s, --sectors      Sector count (default: prompts)
//
// Geometry defaults may also come from an .eep.json config file (JSONC);
// flags win over config, config wins over built-in defaults.
//
// Commands (in REPL):
//
//	read <addr>              Read a logical address
//	write <addr> <value>     Write a logical address
//	fill <count> [start]     Write count sequential test values
//	info                     Show engine parameters and sector stats
//	pages                    Show the page status map
//	dump <sector> <page>     Hex-dump a page's entries
//	swap-demo [sector]       Churn one key until the sector swaps pages
//	save                     Persist the image file
//	help                     Show this help
//	exit / quit / q          Save and exit
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
	"github.com/calvinalkan/eeflash/pkg/flash"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()

		return errors.New("missing command or image file path")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting work dir: %w", err)
	}

	cfg, err := LoadConfig(workDir, os.Environ())
	if err != nil {
		return err
	}

	if os.Args[1] == "new" {
		return runNew(cfg, os.Args[2:])
	}

	return runOpen(cfg, os.Args[1:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  eep <image>              Open an existing image file\n")
	fmt.Fprintf(os.Stderr, "  eep new [opts] <image>   Create a new image file\n")
	fmt.Fprintf(os.Stderr, "\nRun 'eep new --help' for options when creating a new image.\n")
}

func runNew(cfg Config, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)

	pageSize := fs.Uint32P("page-size", "p", 0, "flash page size in bytes")
	pages := fs.IntP("pages", "n", 0, "pages per sector")
	sectors := fs.IntP("sectors", "s", 0, "sector count")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eep new [options] <image>\n\n")
		fmt.Fprintf(os.Stderr, "Create a new flash image. Unset options fall back to the\n")
		fmt.Fprintf(os.Stderr, "config file, then to interactive prompts.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errors.New("missing image file path")
	}

	imagePath := fs.Arg(0)

	if _, err := os.Stat(imagePath); err == nil {
		return fmt.Errorf("image already exists: %s (use 'eep %s' to open it)", imagePath, imagePath)
	}

	reader := bufio.NewReader(os.Stdin)

	if *pageSize == 0 {
		*pageSize = cfg.PageSize
	}

	if *pageSize == 0 {
		*pageSize = uint32(promptInt(reader, "Page size in bytes", 2048))
	}

	if *pages == 0 {
		*pages = cfg.PagesPerSector
	}

	if *pages == 0 {
		*pages = promptInt(reader, "Pages per sector", 6)
	}

	if *sectors == 0 {
		*sectors = cfg.Sectors
	}

	if *sectors == 0 {
		*sectors = promptInt(reader, "Sectors", 1)
	}

	totalPages := *sectors * *pages
	geo := flash.Geometry{
		PageSize: *pageSize,
		Pages:    totalPages,
		EndAddr:  uint32(totalPages) * *pageSize,
	}

	mem, err := flash.NewMem(geo)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	params := eeprom.Params{
		PageSize:       *pageSize,
		EndAddr:        geo.EndAddr,
		Sectors:        *sectors,
		PagesPerSector: *pages,
	}

	fmt.Printf("\nCreating image with:\n")
	fmt.Printf("  Path:             %s\n", imagePath)
	fmt.Printf("  Page size:        %d bytes\n", *pageSize)
	fmt.Printf("  Pages per sector: %d\n", *pages)
	fmt.Printf("  Sectors:          %d\n", *sectors)
	fmt.Printf("  Capacity:         %d halfwords\n", params.Capacity())
	fmt.Println()

	engine, err := eeprom.Open(mem, params)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	if err := flash.SaveImage(imagePath, mem); err != nil {
		return err
	}

	repl := &REPL{
		path:   imagePath,
		mem:    mem,
		engine: engine,
	}

	return repl.Run()
}

func runOpen(cfg Config, args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eep <image>\n\n")
		fmt.Fprintf(os.Stderr, "Open an existing flash image.\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errors.New("missing image file path")
	}

	imagePath := fs.Arg(0)

	mem, err := flash.LoadImage(imagePath)
	if err != nil {
		if errors.Is(err, flash.ErrImageCorrupt) || errors.Is(err, flash.ErrImageVersion) {
			return fmt.Errorf("%w (use 'eep new %s' to start over)", err, imagePath)
		}

		return err
	}

	geo := mem.Geometry()

	// Sector count is not stored in the image; the geometry plus the
	// config's pages-per-sector recover it. A lone sector is the default.
	pagesPerSector := cfg.PagesPerSector
	if pagesPerSector == 0 || geo.Pages%pagesPerSector != 0 {
		pagesPerSector = geo.Pages
	}

	if cfg.Sectors > 0 && geo.Pages%cfg.Sectors == 0 {
		pagesPerSector = geo.Pages / cfg.Sectors
	}

	params := eeprom.Params{
		PageSize:       geo.PageSize,
		EndAddr:        geo.EndAddr,
		Sectors:        geo.Pages / pagesPerSector,
		PagesPerSector: pagesPerSector,
	}

	engine, err := eeprom.Open(mem, params)
	if err != nil {
		return fmt.Errorf("recovering engine: %w", err)
	}

	repl := &REPL{
		path:   imagePath,
		mem:    mem,
		engine: engine,
	}

	return repl.Run()
}

// promptInt prompts the user for an integer value with a default.
func promptInt(reader *bufio.Reader, prompt string, defaultVal int) int {
	for {
		fmt.Printf("%s [%d]: ", prompt, defaultVal)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "" {
			return defaultVal
		}

		val, err := strconv.Atoi(input)
		if err != nil || val < 0 {
			fmt.Println("Please enter a valid non-negative integer.")

			continue
		}

		return val
	}
}
