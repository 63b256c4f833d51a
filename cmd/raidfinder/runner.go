package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/language"

	"github.com/Its-donkey/raidfinder/internal/ui/app"
	"github.com/Its-donkey/raidfinder/internal/ui/client"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/Its-donkey/raidfinder/internal/ui/render"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9146FF")).Bold(true).MarginBottom(1)
	rankStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Width(4)
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// Runner holds the dependencies of the CLI commands.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
}

// RunnerOpts configures a Runner. Nil fields take defaults.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		// A cold search walks several hundred follower lists.
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Runner{logger: opts.Logger, output: opts.Output, httpClient: opts.HTTPClient}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{searchCommand(r)}
}

// Search validates a username against the server, fetches its ranked live
// channels and prints them.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.StringArg("username"))
	if username == "" {
		return cli.Exit("usage: raidfinder search <username>", 2)
	}
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}
	tag, err := language.Parse(cmd.String("lang"))
	if err != nil {
		return fmt.Errorf("parse --lang: %w", err)
	}

	backend := client.New(cmd.String("api"), r.httpClient).WithLog(func(_, message string) {
		r.logger.Warn(message)
	})
	start := time.Now()

	info, err := backend.Validate(ctx, username)
	if err != nil {
		return r.fail(err, username)
	}
	r.logger.Debug("validated", "uid", info.UID, "name", info.Name, "broadcaster_type", info.BroadcasterType)

	ranked, err := backend.FetchStreams(ctx, username)
	if err != nil {
		return r.fail(err, username)
	}
	r.logger.Debug("fetched", "results", len(ranked), "elapsed", time.Since(start).Truncate(time.Millisecond))

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(ranked)
	case cmd.Bool("html"):
		_, err := fmt.Fprintln(r.output, render.New(tag).Render(ranked))
		return err
	default:
		return r.printList(displayName(info, username), ranked)
	}
}

func (r *Runner) fail(err error, username string) error {
	message := app.StatusMessage(err, username)
	if errors.Is(err, client.ErrEmptyResult) {
		_, werr := fmt.Fprintln(r.output, helpStyle.Render(message))
		return werr
	}
	r.logger.Error(message, "err", err)
	return cli.Exit(message, 1)
}

func (r *Runner) writeJSON(ranked model.Ranked) error {
	data, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.output, string(data))
	return err
}

func (r *Runner) printList(name string, ranked model.Ranked) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Live now in %s's community", name)))
	b.WriteString("\n")
	for i, rec := range ranked {
		line := rankStyle.Render(fmt.Sprintf("%d.", i+1)) +
			nameStyle.Render(rec.Name) + "  " +
			metaStyle.Render(humanize.Comma(int64(rec.ViewerCount))+" viewers")
		if rec.StreamDuration != "" {
			line += "  " + helpStyle.Render(rec.StreamDuration)
		}
		b.WriteString(line)
		b.WriteString("\n")
		if title := strings.TrimSpace(rec.StreamTitle); title != "" {
			b.WriteString(strings.Repeat(" ", 4) + title + "\n")
		}
		if rec.StreamURL != "" {
			b.WriteString(strings.Repeat(" ", 4) + helpStyle.Render(rec.StreamURL) + "\n")
		}
	}
	_, err := io.WriteString(r.output, b.String())
	return err
}

func displayName(info model.UserInfo, fallback string) string {
	if info.DisplayName != "" {
		return info.DisplayName
	}
	return fallback
}
