package util

import (
	"bytes"
	"math"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	homeDir     string
	homeDirErr  error
	homeDirOnce sync.Once
)

// Home returns the home directory of the local user. The result is cached.
func Home() (string, error) {
	homeDirOnce.Do(func() {
		if u, err := user.Current(); err == nil && u.HomeDir != "" {
			homeDir = u.HomeDir
			return
		}
		homeDir, homeDirErr = homeFromShell()
	})
	return homeDir, homeDirErr
}

func homeFromShell() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}

	var stdout bytes.Buffer
	cmd := exec.Command("sh", "-c", "eval echo ~$USER")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(err, "failed to run shell command for home directory")
	}

	result := strings.TrimSpace(stdout.String())
	if result == "" {
		return "", errors.New("blank output when reading home directory via shell")
	}
	return result, nil
}

// Round rounds val to precision decimal places. NaN and Inf are returned
// unchanged.
func Round(val float64, precision int) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	p := math.Pow10(precision)
	if math.IsInf(p, 0) {
		return val
	}
	return math.Round(val*p) / p
}

// UniqueStrings drops empty and repeated entries, keeping first appearances
// in order.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}

// FirstNonEmpty returns the first non-empty string, or "".
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
