package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "bilitrack",
	Short: "BiliTrack - video and creator statistics tracker",
	Long: `BiliTrack monitors Bilibili videos and creators, collecting
counter snapshots on a schedule so you can chart how a video or a
channel develops over time.

Available Commands:
  serve      Start the BiliTrack server (scheduler + HTTP API)
  keygen     Generate an encryption key for cookie secrets

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --db string       Path to SQLite database (overrides config)
  --verbose         Enable verbose output

Use "bilitrack [command] --help" for more information about a command.`,
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("BILITRACK_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", "", "Path to SQLite database (overrides config)")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of BiliTrack",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		cmd.Println("BiliTrack Version:", info.Version)
		cmd.Println("Go Version:", info.GoVersion)
		cmd.Println("OS/Arch:", info.OS+"/"+info.Arch)
	},
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
