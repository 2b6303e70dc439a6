package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/larixai/settingsstore"
)

type cli struct {
	settings      *settingsstore.Settings
	store         *settingsstore.Store
	out           io.Writer
	sweepInterval time.Duration
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "keys":
		return c.cmdKeys(ctx)
	case "get":
		return c.cmdGet(ctx, args)
	case "set":
		return c.cmdSet(ctx, args)
	case "rm":
		return c.cmdRemove(ctx, args)
	case "usage":
		return c.cmdUsage(ctx)
	case "settings":
		return c.cmdSettings(ctx, args)
	case "theme":
		return c.cmdTheme(ctx, args)
	case "prefs":
		return c.cmdPrefs(ctx, args)
	case "cache-get":
		return c.cmdCacheGet(ctx, args)
	case "cache-set":
		return c.cmdCacheSet(ctx, args)
	case "clear-cache":
		return check(c.store.ClearCache(ctx), "clearing cache")
	case "sweep":
		fmt.Fprintf(c.out, "removed %d expired cache entries\n", c.store.SweepExpired(ctx))
		return nil
	case "sweeper":
		return c.cmdSweeper(ctx)
	case "export":
		return c.cmdExport(ctx, args)
	case "import":
		return c.cmdImport(ctx, args)
	case "clear":
		return check(c.store.ClearAll(ctx), "clearing namespace")
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func check(ok bool, action string) error {
	if !ok {
		return fmt.Errorf("%s failed (see log)", action)
	}
	return nil
}

func (c *cli) cmdKeys(ctx context.Context) error {
	for _, k := range c.store.ListKeys(ctx) {
		fmt.Fprintln(c.out, k)
	}
	return nil
}

func (c *cli) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <key>")
	}
	env, ok := c.store.Envelope(ctx, args[0])
	if !ok {
		return fmt.Errorf("key %q not found", args[0])
	}
	return c.printRaw(env.Value)
}

func (c *cli) cmdSet(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: set <key> <value> [ttl]")
	}
	ttl, err := parseTTL(args[2:])
	if err != nil {
		return err
	}
	return check(c.store.Set(ctx, args[0], parseValue(args[1]), ttl), "writing "+args[0])
}

func (c *cli) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <key>")
	}
	return check(c.store.Remove(ctx, args[0]), "removing "+args[0])
}

func (c *cli) cmdUsage(ctx context.Context) error {
	u := c.store.Usage(ctx)
	line := fmt.Sprintf("%s used of %s (%.1f%%), %s available",
		humanize.IBytes(uint64(u.Used)), humanize.IBytes(uint64(u.Total)), u.Percent(), humanize.IBytes(uint64(u.Available)))

	switch {
	case u.Percent() >= 90:
		color.New(color.FgRed).Fprintln(c.out, line)
	case u.Percent() >= 75:
		color.New(color.FgYellow).Fprintln(c.out, line)
	default:
		color.New(color.FgGreen).Fprintln(c.out, line)
	}
	return nil
}

func (c *cli) cmdSettings(ctx context.Context, args []string) error {
	if len(args) > 0 {
		partial, err := parseAssignments[settingsstore.PartialAppSettings](args)
		if err != nil {
			return err
		}
		if err := check(c.settings.SetAppSettings(ctx, partial), "updating settings"); err != nil {
			return err
		}
	}
	return c.printJSON(c.settings.AppSettings(ctx))
}

func (c *cli) cmdTheme(ctx context.Context, args []string) error {
	if len(args) > 0 {
		partial, err := parseAssignments[settingsstore.PartialThemeSettings](args)
		if err != nil {
			return err
		}
		if err := check(c.settings.SetThemeSettings(ctx, partial), "updating theme"); err != nil {
			return err
		}
	}
	return c.printJSON(c.settings.ThemeSettings(ctx))
}

func (c *cli) cmdPrefs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: prefs <user> [field=value ...]")
	}
	user := args[0]
	if len(args) > 1 {
		partial, err := parseAssignments[settingsstore.PartialAppSettings](args[1:])
		if err != nil {
			return err
		}
		if err := check(c.settings.SetUserPreferences(ctx, user, partial), "updating preferences"); err != nil {
			return err
		}
	}
	prefs, ok := c.settings.UserPreferences(ctx, user)
	if !ok {
		return fmt.Errorf("no preferences stored for %q", user)
	}
	return c.printJSON(prefs)
}

func (c *cli) cmdCacheGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cache-get <key>")
	}
	data, ok := settingsstore.GetCacheData[json.RawMessage](ctx, c.store, args[0])
	if !ok {
		return fmt.Errorf("cache entry %q not found", args[0])
	}
	return c.printRaw(data)
}

func (c *cli) cmdCacheSet(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: cache-set <key> <value> [ttl]")
	}
	ttl, err := parseTTL(args[2:])
	if err != nil {
		return err
	}
	return check(c.store.SetCacheData(ctx, args[0], parseValue(args[1]), ttl), "caching "+args[0])
}

func (c *cli) cmdSweeper(ctx context.Context) error {
	if c.sweepInterval <= 0 {
		return errors.New("cache.sweep_interval is not set")
	}
	color.New(color.FgCyan).Fprintf(c.out, "sweeping every %s, press Ctrl+C to stop\n", c.sweepInterval)
	c.store.RunSweeper(ctx, c.sweepInterval)
	return nil
}

func (c *cli) cmdExport(ctx context.Context, args []string) error {
	data := c.settings.ExportSettings(ctx)
	if len(args) == 0 {
		_, err := fmt.Fprintln(c.out, data)
		return err
	}
	if err := os.WriteFile(args[0], []byte(data+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(c.out, "exported %d keys to %s\n", len(c.store.ListKeys(ctx)), args[0])
	return nil
}

func (c *cli) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: import <file|->")
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}
	return check(c.settings.ImportSettings(ctx, string(data)), "importing")
}

func (c *cli) printRaw(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	_, err := fmt.Fprintln(c.out, buf.String())
	return err
}

func (c *cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

// parseValue treats valid JSON literally and anything else as a string.
func parseValue(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func parseTTL(args []string) (time.Duration, error) {
	if len(args) == 0 {
		return 0, nil
	}
	ttl, err := time.ParseDuration(args[0])
	if err != nil {
		return 0, fmt.Errorf("parsing ttl %q: %w", args[0], err)
	}
	return ttl, nil
}

// parseAssignments decodes field=value pairs into T, rejecting unknown
// fields. Values are parsed with parseValue.
func parseAssignments[T any](args []string) (T, error) {
	var out T
	fields := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return out, fmt.Errorf("expected field=value, got %q", a)
		}
		fields[k] = parseValue(v)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("invalid settings update: %w", err)
	}
	return out, nil
}
