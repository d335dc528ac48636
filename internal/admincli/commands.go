package admincli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

func parseAccountID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid account id %q", ErrUsage, s)
	}
	return id, nil
}

// accountArgs expects the account id followed by exactly extra arguments,
// or at least extra when variadic is set.
func accountArgs(args []string, extra int, variadic bool) (int64, []string, error) {
	rest := len(args) - 1
	if rest < 0 || rest < extra || (!variadic && rest != extra) {
		return 0, nil, fmt.Errorf("%w: wrong number of arguments", ErrUsage)
	}
	id, err := parseAccountID(args[0])
	if err != nil {
		return 0, nil, err
	}
	return id, args[1:], nil
}

func (a *App) block(ctx context.Context, args []string) error {
	id, rest, err := accountArgs(args, 0, true)
	if err != nil {
		return err
	}
	if err := a.admin.Block(ctx, id, joinReason(rest)); err != nil {
		return err
	}
	a.printf("account %d blocked", id)
	return nil
}

func (a *App) unblock(ctx context.Context, args []string) error {
	id, _, err := accountArgs(args, 0, false)
	if err != nil {
		return err
	}
	if err := a.admin.Unblock(ctx, id); err != nil {
		return err
	}
	a.printf("account %d unblocked", id)
	return nil
}

func (a *App) confirm(ctx context.Context, args []string) error {
	id, _, err := accountArgs(args, 0, false)
	if err != nil {
		return err
	}
	if err := a.admin.ConfirmEmail(ctx, id); err != nil {
		return err
	}
	a.printf("email of account %d confirmed", id)
	return nil
}

func (a *App) setPassword(ctx context.Context, args []string) error {
	id, _, err := accountArgs(args, 0, false)
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, "New password: ")
	pw, err := readPassword(a.stdin)
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer clear(pw)

	if err := a.admin.SetPassword(ctx, id, string(pw)); err != nil {
		return err
	}
	a.printf("password of account %d set", id)
	return nil
}

func (a *App) assignRole(ctx context.Context, args []string) error {
	id, rest, err := accountArgs(args, 1, false)
	if err != nil {
		return err
	}
	if err := a.admin.AssignRole(ctx, id, rest[0]); err != nil {
		return err
	}
	a.printf("role %s assigned to account %d", rest[0], id)
	return nil
}

func (a *App) removeRole(ctx context.Context, args []string) error {
	id, rest, err := accountArgs(args, 1, false)
	if err != nil {
		return err
	}
	if err := a.admin.RemoveRole(ctx, id, rest[0]); err != nil {
		return err
	}
	a.printf("role %s removed from account %d", rest[0], id)
	return nil
}

func (a *App) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", services.DefaultHistoryLimit, "number of attempts to show")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	id, _, err := accountArgs(fs.Args(), 0, false)
	if err != nil {
		return err
	}

	attempts, err := a.admin.LoginHistory(ctx, id, *limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		a.printf("no login attempts for account %d", id)
		return nil
	}

	for _, at := range attempts {
		outcome := "ok"
		if !at.IsSuccessful {
			outcome = "FAILED " + at.FailureReason
		}
		a.printf("%s  %-15s  %s  %s", at.CreatedAt.UTC().Format(time.RFC3339), at.IPAddress, outcome, at.UserAgent)
	}
	return nil
}

func (a *App) sweep(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: sweep takes no arguments", ErrUsage)
	}
	report, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	a.printf("sessions deactivated: %d", report.SessionsDeactivated)
	a.printf("expired unused tokens: %d", report.ExpiredTokens)
	return nil
}

func (a *App) migrate(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: migrate takes no arguments", ErrUsage)
	}
	if err := a.migrateFn(ctx); err != nil {
		return err
	}
	a.printf("migrations applied")
	return nil
}
