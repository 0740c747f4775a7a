package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// pathNames are looked up in PATH when no well-known install location exists.
var pathNames = []string{
	"google-chrome", "google-chrome-stable", "chrome",
	"chromium", "chromium-browser",
	"microsoft-edge", "microsoft-edge-stable", "msedge",
}

// DetectBrowser attempts to find a Chromium-based executable on the system.
// Returns the path to the executable, or empty string if not found.
func DetectBrowser() string {
	return detect(candidates(runtime.GOOS), fileExists, exec.LookPath)
}

func detect(paths []string, exists func(string) bool, lookPath func(string) (string, error)) string {
	for _, path := range paths {
		if path == "" {
			continue
		}
		// Expand environment variables (for Windows %LOCALAPPDATA% etc.)
		expanded := os.ExpandEnv(path)
		if exists(expanded) {
			return expanded
		}
	}

	for _, name := range pathNames {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// candidates returns install locations for goos.
// Priority: Chrome > Chromium > Edge
func candidates(goos string) []string {
	switch goos {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		programFiles := os.Getenv("ProgramFiles")
		programFilesX86 := os.Getenv("ProgramFiles(x86)")
		return []string{
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Chromium", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Chromium", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFilesX86, "Microsoft", "Edge", "Application", "msedge.exe"),
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			os.ExpandEnv("$HOME/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	default: // linux and others
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/usr/bin/microsoft-edge-stable",
			"/usr/bin/microsoft-edge",
			"/opt/microsoft/msedge/msedge",
		}
	}
}

// DefaultProfilePath returns a dedicated profile directory so runs never
// share state with the user's everyday browser.
func DefaultProfilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "enotifikasi-exporter", "profile")
}
