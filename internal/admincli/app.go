package admincli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// ErrUsage is returned for unknown commands and malformed arguments.
var ErrUsage = errors.New("usage error")

// Admin is the part of services.AdminService the CLI calls.
type Admin interface {
	Block(ctx context.Context, accountID int64, reason string) error
	Unblock(ctx context.Context, accountID int64) error
	ConfirmEmail(ctx context.Context, accountID int64) error
	SetPassword(ctx context.Context, accountID int64, password string) error
	AssignRole(ctx context.Context, accountID int64, roleName string) error
	RemoveRole(ctx context.Context, accountID int64, roleName string) error
	LoginHistory(ctx context.Context, accountID int64, limit int) ([]models.LoginAttempt, error)
}

// Sweeper is the part of services.MaintenanceService the CLI calls.
type Sweeper interface {
	Sweep(ctx context.Context) (*services.SweepReport, error)
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"block":        {"block <account-id> <reason...>", (*App).block},
	"unblock":      {"unblock <account-id>", (*App).unblock},
	"confirm":      {"confirm <account-id>", (*App).confirm},
	"set-password": {"set-password <account-id>", (*App).setPassword},
	"assign-role":  {"assign-role <account-id> <role>", (*App).assignRole},
	"remove-role":  {"remove-role <account-id> <role>", (*App).removeRole},
	"history":      {"history [-limit N] <account-id>", (*App).history},
	"sweep":        {"sweep", (*App).sweep},
	"migrate":      {"migrate", (*App).migrate},
}

type App struct {
	admin     Admin
	sweeper   Sweeper
	migrateFn func(ctx context.Context) error
	out       io.Writer
	stdin     int
}

func NewApp(admin Admin, sweeper Sweeper, migrate func(ctx context.Context) error, out io.Writer) *App {
	return &App{
		admin:     admin,
		sweeper:   sweeper,
		migrateFn: migrate,
		out:       out,
		stdin:     int(os.Stdin.Fd()),
	}
}

// SplitCommand drops the global configuration flags in front of the first
// known command name and returns the command with its arguments.
func SplitCommand(args []string) (string, []string) {
	return flagx.Command(args, func(s string) bool {
		_, ok := commands[s]
		return ok
	})
}

// Usage writes the list of commands.
func Usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: credkeeper-admin [config flags] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		fmt.Fprintln(w, "  "+commands[name].usage)
	}
}

// Run executes one command.
func (a *App) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if err := cmd.run(a, ctx, args); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w\nusage: %s", err, cmd.usage)
		}
		return err
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

func joinReason(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
