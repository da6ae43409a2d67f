package external

import (
	"context"
	"os"
	"os/exec"
	"runtime"
)

// Command launches the platform's URL handler as a child process.
type Command struct {
	// GOOS defaults to runtime.GOOS.
	GOOS string

	// start is swapped in tests.
	start func(cmd *exec.Cmd) error
}

func (c Command) Open(ctx context.Context, rawURL string) error {
	cmd := c.command(ctx, rawURL)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if c.start != nil {
		return c.start(cmd)
	}
	return cmd.Start()
}

func (c Command) command(ctx context.Context, rawURL string) *exec.Cmd {
	goos := c.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	switch goos {
	case "darwin":
		return exec.CommandContext(ctx, "open", rawURL)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", rawURL)
	}

	// linux, bsd — when running as root via sudo, run xdg-open
	// as the original user so it can reach their desktop session.
	if os.Getuid() == 0 {
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			args := []string{"-u", sudoUser}
			for _, key := range []string{"DISPLAY", "WAYLAND_DISPLAY", "XDG_RUNTIME_DIR", "DBUS_SESSION_BUS_ADDRESS"} {
				if val := os.Getenv(key); val != "" {
					args = append(args, key+"="+val)
				}
			}
			args = append(args, "xdg-open", rawURL)
			return exec.CommandContext(ctx, "sudo", args...)
		}
	}
	return exec.CommandContext(ctx, "xdg-open", rawURL)
}
