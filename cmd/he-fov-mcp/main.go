package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/he-fov-mcp/internal/config"
	"github.com/ironsheep/he-fov-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version, --help and --print-config
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("he-fov-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("he-fov-mcp - MCP server for H&E to optical slide registration")
			fmt.Println()
			fmt.Println("Usage: he-fov-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v       Print version information")
			fmt.Println("  --print-config      Print the effective configuration as TOML")
			fmt.Println("  --help, -h          Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  HE_FOV_LOG_LEVEL=debug    Enable debug logging")
			fmt.Printf("  %s=<path>        Config file (default ~/.he-fov/config.toml)\n", config.EnvConfigPath)
			fmt.Printf("  %s=<float>        Override the MLS alpha\n", config.EnvAlpha)
			fmt.Printf("  %s=<int>       Override the default FOV size in microns\n", config.EnvFOVSize)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		case "--print-config":
			cfg, err := config.FromEnv()
			if err != nil {
				fmt.Fprintf(os.Stderr, "config error: %v\n", err)
				os.Exit(1)
			}
			if err := cfg.Write(os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "config error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debug := os.Getenv("HE_FOV_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("H&E FOV MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if debug {
		log.Printf("Loaded config: %d slides, FOV sizes %v", len(cfg.Slides), cfg.Tiling.FOVSizes)
	}

	srv := server.New(cfg, server.WithDebug(debug))
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
