package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/igolaizola/sunokit"
	"github.com/igolaizola/sunokit/pkg/suno"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "SUNOKIT"

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("sunokit", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "sunokit [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newGenerateCommand(),
			newCustomCommand(),
			newBatchCommand(),
			newLyricsCommand(),
			newLyricsGetCommand(),
			newSongsCommand(),
			newCreditsCommand(),
			newJobsCommand(),
			newDownloadCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "sunokit version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

// clientFlags registers the flags shared by every command that talks to
// the api.
func clientFlags(fs *flag.FlagSet, cfg *sunokit.Config) {
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format (text, json)")
	fs.StringVar(&cfg.Accounts, "accounts", "accounts.yaml", "yaml file with services and relays")
	fs.StringVar(&cfg.Account, "account", "", "account name or cookie to use (random if empty)")
	fs.StringVar(&cfg.Model, "model", "", "model the account must serve")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.BoolVar(&cfg.TLSClient, "tls-client", false, "use a browser-like tls fingerprint")
	fs.IntVar(&cfg.Concurrency, "concurrency", suno.DefaultConcurrency, "maximum number of generation requests in flight")
	fs.DurationVar(&cfg.Timeout, "timeout", suno.DefaultTimeout, "timeout for each api call")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres), empty to disable")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.CookieFile, "cookie-file", "", "file to persist the account cookie (ignored if db-type is set)")
}

func command(name, help string, fs *flag.FlagSet, exec func(context.Context, []string) error) *ffcli.Command {
	return &ffcli.Command{
		Name:       name,
		ShortUsage: fmt.Sprintf("sunokit %s [flags]", name),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix(envPrefix),
		},
		ShortHelp: help,
		FlagSet:   fs,
		Exec:      exec,
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var prompt string
	var instrumental bool
	fs.StringVar(&prompt, "prompt", "", "description of the song")
	fs.BoolVar(&instrumental, "instrumental", false, "instrumental song")

	return command(cmd, "generate a song from a description", fs, func(ctx context.Context, args []string) error {
		if prompt == "" {
			return errors.New("prompt is required")
		}
		return sunokit.Generate(ctx, cfg, prompt, instrumental)
	})
}

func newCustomCommand() *ffcli.Command {
	cmd := "custom"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var prompt, tags, title string
	var instrumental bool
	fs.StringVar(&prompt, "prompt", "", "lyrics of the song")
	fs.StringVar(&tags, "tags", "", "style tags of the song")
	fs.StringVar(&title, "title", "", "title of the song")
	fs.BoolVar(&instrumental, "instrumental", false, "instrumental song (lyrics are ignored)")

	return command(cmd, "generate a song with lyrics, tags and title", fs, func(ctx context.Context, args []string) error {
		if prompt == "" && !instrumental {
			return errors.New("prompt is required")
		}
		return sunokit.CustomGenerate(ctx, cfg, prompt, tags, title, instrumental)
	})
}

func newBatchCommand() *ffcli.Command {
	cmd := "batch"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var input string
	var instrumental bool
	fs.StringVar(&input, "input", "", "csv or json with items (fields: prompt,tags,title,instrumental), or text file with one description per line")
	fs.BoolVar(&instrumental, "instrumental", false, "instrumental songs (text input only)")

	return command(cmd, "generate one song per input item", fs, func(ctx context.Context, args []string) error {
		if input == "" {
			return errors.New("input is required")
		}
		return sunokit.Batch(ctx, cfg, input, instrumental)
	})
}

func newLyricsCommand() *ffcli.Command {
	cmd := "lyrics"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var prompt string
	fs.StringVar(&prompt, "prompt", "", "description of the lyrics")

	return command(cmd, "generate lyrics", fs, func(ctx context.Context, args []string) error {
		return sunokit.GenerateLyrics(ctx, cfg, prompt)
	})
}

func newLyricsGetCommand() *ffcli.Command {
	cmd := "lyrics-get"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var id string
	fs.StringVar(&id, "id", "", "lyrics job id")

	return command(cmd, "get generated lyrics", fs, func(ctx context.Context, args []string) error {
		if id == "" {
			return errors.New("id is required")
		}
		return sunokit.Lyrics(ctx, cfg, id)
	})
}

func newSongsCommand() *ffcli.Command {
	cmd := "songs"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var ids string
	fs.StringVar(&ids, "ids", "", "comma separated clip ids (pending jobs from the db if empty)")

	return command(cmd, "get generated songs", fs, func(ctx context.Context, args []string) error {
		return sunokit.Songs(ctx, cfg, splitList(ids))
	})
}

func newCreditsCommand() *ffcli.Command {
	cmd := "credits"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	return command(cmd, "print credits left", fs, func(ctx context.Context, args []string) error {
		return sunokit.Credits(ctx, cfg)
	})
}

func newJobsCommand() *ffcli.Command {
	cmd := "jobs"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	var dbType, dbConn string
	var page, size int
	fs.StringVar(&dbType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&dbConn, "db-conn", "sunokit.db", "path for sqlite, dsn for mysql or postgres")
	fs.IntVar(&page, "page", 1, "page number")
	fs.IntVar(&size, "size", 20, "page size")

	return command(cmd, "list recorded jobs", fs, func(ctx context.Context, args []string) error {
		return sunokit.Jobs(ctx, dbType, dbConn, page, size)
	})
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunokit.Config{}
	clientFlags(fs, cfg)

	var ids, output string
	fs.StringVar(&ids, "ids", "", "comma separated clip ids")
	fs.StringVar(&output, "output", ".", "output folder")

	return command(cmd, "download generated songs", fs, func(ctx context.Context, args []string) error {
		list := splitList(ids)
		if len(list) == 0 {
			return errors.New("ids are required")
		}
		return sunokit.Download(ctx, cfg, list, output)
	})
}

func splitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		list = append(list, v)
	}
	return list
}
